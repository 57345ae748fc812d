package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ladder-platform/backend/internal/catalog"
)

func TestValidatePlayerName(t *testing.T) {
	valid := []string{"abc", "Flash", "Jae_Dong", "by-sun", "x1y2z3w4x5y6"}
	for _, name := range valid {
		assert.NoError(t, ValidatePlayerName(name), name)
	}

	invalid := []string{"", "ab", "thirteenchars", "has space", "dot.name", "émigré"}
	for _, name := range invalid {
		assert.Error(t, ValidatePlayerName(name), name)
	}

	assert.ErrorIs(t, ValidatePlayerName("Admin"), ErrReservedName)
	assert.ErrorIs(t, ValidatePlayerName("SYSTEM"), ErrReservedName)
}

func TestValidateBattletag(t *testing.T) {
	assert.NoError(t, ValidateBattletag(""))
	assert.NoError(t, ValidateBattletag("Serral#1234"))
	assert.Error(t, ValidateBattletag("Serral"))
	assert.Error(t, ValidateBattletag("Serral#12ab"))
	assert.Error(t, ValidateBattletag("averyverylongname#1234"))
}

func TestValidateCountryAndRegion(t *testing.T) {
	assert.NoError(t, ValidateCountry("kr"))
	assert.NoError(t, ValidateCountry("FI"))
	assert.Error(t, ValidateCountry("xx"))

	assert.NoError(t, ValidateRegion("eu"))
	assert.Error(t, ValidateRegion("moon"))
}

func TestValidateRaceSelection(t *testing.T) {
	races, err := ValidateRaceSelection([]string{"bw_terran", "SC2_Zerg"})
	assert.NoError(t, err)
	assert.Equal(t, []catalog.Race{catalog.BWTerran, catalog.SC2Zerg}, races)

	// Duplicates collapse instead of erroring.
	races, err = ValidateRaceSelection([]string{"bw_zerg", "bw_zerg"})
	assert.NoError(t, err)
	assert.Len(t, races, 1)

	_, err = ValidateRaceSelection(nil)
	assert.ErrorIs(t, err, ErrNoRacesSelected)

	_, err = ValidateRaceSelection([]string{"bw_random"})
	assert.ErrorIs(t, err, ErrInvalidRace)
}
