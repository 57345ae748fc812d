package catalog

import "strings"

// Region codes are the server regions a match can be hosted on.
const (
	RegionNA = "na"
	RegionEU = "eu"
	RegionKR = "kr"
	RegionSA = "sa"
	RegionOC = "oc"
	RegionAS = "as"
)

// DefaultRegion is used when a region pair has no table entry.
const DefaultRegion = RegionNA

var regions = []string{RegionNA, RegionEU, RegionKR, RegionSA, RegionOC, RegionAS}

// Regions returns all region codes.
func Regions() []string {
	out := make([]string, len(regions))
	copy(out, regions)
	return out
}

// IsValidRegion reports whether code names a known region.
func IsValidRegion(code string) bool {
	code = strings.ToLower(code)
	for _, r := range regions {
		if r == code {
			return true
		}
	}
	return false
}

type regionPair struct {
	a, b string
}

// orderedPair normalizes a pair so lookups are unordered.
func orderedPair(a, b string) regionPair {
	if a > b {
		a, b = b, a
	}
	return regionPair{a, b}
}

// serverTable maps an unordered region pair to the server region that
// minimizes joint latency. Missing pairs fall back to DefaultRegion.
var serverTable = map[regionPair]string{
	orderedPair(RegionNA, RegionNA): RegionNA,
	orderedPair(RegionNA, RegionEU): RegionEU,
	orderedPair(RegionNA, RegionKR): RegionNA,
	orderedPair(RegionNA, RegionSA): RegionNA,
	orderedPair(RegionNA, RegionOC): RegionNA,
	orderedPair(RegionNA, RegionAS): RegionNA,
	orderedPair(RegionEU, RegionEU): RegionEU,
	orderedPair(RegionEU, RegionKR): RegionAS,
	orderedPair(RegionEU, RegionSA): RegionNA,
	orderedPair(RegionEU, RegionOC): RegionAS,
	orderedPair(RegionEU, RegionAS): RegionAS,
	orderedPair(RegionKR, RegionKR): RegionKR,
	orderedPair(RegionKR, RegionSA): RegionNA,
	orderedPair(RegionKR, RegionOC): RegionKR,
	orderedPair(RegionKR, RegionAS): RegionKR,
	orderedPair(RegionSA, RegionSA): RegionSA,
	orderedPair(RegionSA, RegionOC): RegionNA,
	orderedPair(RegionSA, RegionAS): RegionNA,
	orderedPair(RegionOC, RegionOC): RegionOC,
	orderedPair(RegionOC, RegionAS): RegionAS,
	orderedPair(RegionAS, RegionAS): RegionAS,
}

// BestServer returns the server region for a pair of player regions.
func BestServer(regionA, regionB string) string {
	if server, ok := serverTable[orderedPair(strings.ToLower(regionA), strings.ToLower(regionB))]; ok {
		return server
	}
	return DefaultRegion
}
