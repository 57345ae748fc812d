package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ladder-platform/backend/internal/models"
)

func verifyFixture() (models.Match1v1, models.Player, models.Player) {
	m := models.Match1v1{
		ID:                7,
		Player1DiscordUID: 1,
		Player2DiscordUID: 2,
		Player1Race:       "bw_terran",
		Player2Race:       "sc2_zerg",
		MapPlayed:         "polypoid",
	}
	p1 := models.Player{DiscordUID: 1, PlayerName: "Flash", AltName1: "FlashFan99"}
	p2 := models.Player{DiscordUID: 2, PlayerName: "Serral"}
	return m, p1, p2
}

func cleanMeta() Metadata {
	return Metadata{
		Players: []ParsedPlayer{
			{Name: "Flash", Race: "Terran"},
			{Name: "Serral", Race: "Zerg"},
		},
		MapName:         "Polypoid",
		WinnerName:      "Flash",
		DurationSeconds: 1200,
	}
}

func TestVerifyCleanReplay(t *testing.T) {
	m, p1, p2 := verifyFixture()
	report := models.ReportPlayer1Win

	v := Verify(cleanMeta(), m, p1, p2, &report)
	assert.True(t, v.Clean())
	assert.False(t, v.HasObservers)
	assert.False(t, v.ExcessiveDuration)
	assert.False(t, v.CacheAnomaly)
}

func TestVerifyAcceptsSwappedOrderAndAlts(t *testing.T) {
	m, p1, p2 := verifyFixture()
	meta := cleanMeta()
	meta.Players[0], meta.Players[1] = meta.Players[1], meta.Players[0]
	meta.Players[1].Name = "flashfan99" // registered alt, case folded
	meta.WinnerName = ""

	v := Verify(meta, m, p1, p2, nil)
	assert.True(t, v.PlayerNamesMatch)
	assert.True(t, v.RacesMatch)
}

func TestVerifyFlagsMismatches(t *testing.T) {
	m, p1, p2 := verifyFixture()

	meta := cleanMeta()
	meta.Players[1].Name = "SomeoneElse"
	v := Verify(meta, m, p1, p2, nil)
	assert.False(t, v.PlayerNamesMatch)
	// Races cannot be checked without a name alignment.
	assert.False(t, v.RacesMatch)

	meta = cleanMeta()
	meta.Players[0].Race = "Protoss"
	v = Verify(meta, m, p1, p2, nil)
	assert.True(t, v.PlayerNamesMatch)
	assert.False(t, v.RacesMatch)

	meta = cleanMeta()
	meta.MapName = "Eclipse"
	v = Verify(meta, m, p1, p2, nil)
	assert.False(t, v.MapMatches)
}

func TestVerifyMapFuzzyEquality(t *testing.T) {
	m, p1, p2 := verifyFixture()
	m.MapPlayed = "neo_sylphid"
	meta := cleanMeta()
	meta.MapName = " Neo Sylphid "

	v := Verify(meta, m, p1, p2, nil)
	assert.True(t, v.MapMatches)
}

func TestVerifyWinnerConsistency(t *testing.T) {
	m, p1, p2 := verifyFixture()

	// Uploader claimed a player-2 win but the replay shows player 1.
	report := models.ReportPlayer2Win
	v := Verify(cleanMeta(), m, p1, p2, &report)
	assert.False(t, v.WinnerConsistent)

	// A draw report carries no winner claim to contradict.
	report = models.ReportDraw
	v = Verify(cleanMeta(), m, p1, p2, &report)
	assert.True(t, v.WinnerConsistent)

	// A winner unknown to the match is inconsistent on its own.
	meta := cleanMeta()
	meta.WinnerName = "SomeoneElse"
	report = models.ReportPlayer1Win
	v = Verify(meta, m, p1, p2, &report)
	assert.False(t, v.WinnerConsistent)

	// No report yet: nothing to contradict.
	v = Verify(cleanMeta(), m, p1, p2, nil)
	assert.True(t, v.WinnerConsistent)
}

func TestVerifyNonBlockingFlags(t *testing.T) {
	m, p1, p2 := verifyFixture()
	meta := cleanMeta()
	meta.Observers = []string{"Tasteless"}
	meta.DurationSeconds = 7200
	meta.CacheHandleCount = 9

	v := Verify(meta, m, p1, p2, nil)
	assert.True(t, v.HasObservers)
	assert.True(t, v.ExcessiveDuration)
	assert.True(t, v.CacheAnomaly)
	// Anomaly flags never break a clean verification.
	assert.True(t, v.Clean())
}
