package catalog

import "strings"

// countries is the ISO 3166-1 alpha-2 code set accepted by player setup.
var countries = map[string]bool{
	"ad": true, "ae": true, "af": true, "ag": true, "al": true, "am": true,
	"ao": true, "ar": true, "at": true, "au": true, "az": true, "ba": true,
	"bd": true, "be": true, "bg": true, "bh": true, "bo": true, "br": true,
	"bw": true, "by": true, "ca": true, "ch": true, "cl": true, "cn": true,
	"co": true, "cr": true, "cu": true, "cy": true, "cz": true, "de": true,
	"dk": true, "do": true, "dz": true, "ec": true, "ee": true, "eg": true,
	"es": true, "et": true, "fi": true, "fj": true, "fr": true, "gb": true,
	"ge": true, "gh": true, "gr": true, "gt": true, "hk": true, "hn": true,
	"hr": true, "hu": true, "id": true, "ie": true, "il": true, "in": true,
	"iq": true, "ir": true, "is": true, "it": true, "jm": true, "jo": true,
	"jp": true, "ke": true, "kg": true, "kh": true, "kr": true, "kw": true,
	"kz": true, "lb": true, "lk": true, "lt": true, "lu": true, "lv": true,
	"ma": true, "md": true, "mk": true, "mn": true, "mt": true, "mx": true,
	"my": true, "ng": true, "ni": true, "nl": true, "no": true, "np": true,
	"nz": true, "om": true, "pa": true, "pe": true, "ph": true, "pk": true,
	"pl": true, "pt": true, "py": true, "qa": true, "ro": true, "rs": true,
	"ru": true, "sa": true, "se": true, "sg": true, "si": true, "sk": true,
	"sv": true, "th": true, "tn": true, "tr": true, "tw": true, "ua": true,
	"us": true, "uy": true, "uz": true, "ve": true, "vn": true, "za": true,
}

// IsValidCountry reports whether code is a known ISO-2 country code.
func IsValidCountry(code string) bool {
	return countries[strings.ToLower(code)]
}
