package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ladder-platform/backend/internal/catalog"
)

// Common validation errors
var (
	ErrInvalidName     = errors.New("invalid player name")
	ErrReservedName    = errors.New("player name is reserved")
	ErrInvalidTag      = errors.New("invalid battletag format")
	ErrInvalidCountry  = errors.New("invalid country code")
	ErrInvalidRegion   = errors.New("invalid region code")
	ErrInvalidRace     = errors.New("invalid race selection")
	ErrNoRacesSelected = errors.New("at least one race must be selected")
	ErrStringTooLong   = errors.New("string exceeds maximum length")
	ErrStringTooShort  = errors.New("string below minimum length")
)

var (
	playerNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,12}$`)
	battletagRegex  = regexp.MustCompile(`^[^#\s]+#[0-9]+$`)
)

// reservedNames cannot be taken as display names.
var reservedNames = map[string]bool{
	"admin":     true,
	"moderator": true,
	"system":    true,
	"ladder":    true,
	"owner":     true,
	"bot":       true,
}

// ValidatePlayerName validates a display name: 3-12 chars, letters,
// numbers, underscore, hyphen, and not reserved. Name uniqueness is
// deliberately not enforced.
func ValidatePlayerName(name string) error {
	if name == "" {
		return errors.New("player name is required")
	}
	if len(name) < 3 {
		return fmt.Errorf("%w: name must be >= 3 characters", ErrStringTooShort)
	}
	if len(name) > 12 {
		return fmt.Errorf("%w: name must be <= 12 characters", ErrStringTooLong)
	}
	if !playerNameRegex.MatchString(name) {
		return fmt.Errorf("%w: name can only contain letters, numbers, underscore, and hyphen", ErrInvalidName)
	}
	if reservedNames[strings.ToLower(name)] {
		return ErrReservedName
	}
	return nil
}

// ValidateBattletag validates an optional in-game tag of the form
// name#digits, at most 20 characters total. Empty is allowed.
func ValidateBattletag(tag string) error {
	if tag == "" {
		return nil
	}
	if len(tag) > 20 {
		return fmt.Errorf("%w: battletag must be <= 20 characters", ErrStringTooLong)
	}
	if !battletagRegex.MatchString(tag) {
		return fmt.Errorf("%w: expected name#digits", ErrInvalidTag)
	}
	return nil
}

// ValidateAltName validates an optional alternate in-game name.
func ValidateAltName(alt string) error {
	if alt == "" {
		return nil
	}
	if len(alt) > 20 {
		return fmt.Errorf("%w: alt name must be <= 20 characters", ErrStringTooLong)
	}
	return nil
}

// ValidateCountry validates an ISO-2 country code.
func ValidateCountry(code string) error {
	if !catalog.IsValidCountry(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCountry, code)
	}
	return nil
}

// ValidateRegion validates a server region code.
func ValidateRegion(code string) error {
	if !catalog.IsValidRegion(code) {
		return fmt.Errorf("%w: %q", ErrInvalidRegion, code)
	}
	return nil
}

// ValidateRaceSelection validates a queue race selection: non-empty,
// no duplicates, every code known.
func ValidateRaceSelection(races []string) ([]catalog.Race, error) {
	if len(races) == 0 {
		return nil, ErrNoRacesSelected
	}
	seen := make(map[string]bool, len(races))
	out := make([]catalog.Race, 0, len(races))
	for _, code := range races {
		code = strings.ToLower(strings.TrimSpace(code))
		if !catalog.IsValidRace(code) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRace, code)
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, catalog.Race(code))
	}
	return out, nil
}
