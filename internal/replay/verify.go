package replay

import (
	"strings"

	"ladder-platform/backend/internal/catalog"
	"ladder-platform/backend/internal/models"
)

// excessiveDurationSeconds flags suspiciously long games.
const excessiveDurationSeconds = 5400

// Verification is the per-field comparison of parsed replay metadata
// against the match record. Mismatches never auto-reject an upload;
// the booleans are surfaced to players and admins, who adjudicate.
type Verification struct {
	PlayerNamesMatch bool `json:"player_names_match"`
	RacesMatch       bool `json:"races_match"`
	MapMatches       bool `json:"map_matches"`
	WinnerConsistent bool `json:"winner_consistent"`

	// Non-blocking anomaly flags.
	HasObservers      bool `json:"has_observers"`
	ExcessiveDuration bool `json:"excessive_duration"`
	CacheAnomaly      bool `json:"cache_anomaly"`
}

// Clean reports whether every verified field matched.
func (v Verification) Clean() bool {
	return v.PlayerNamesMatch && v.RacesMatch && v.MapMatches && v.WinnerConsistent
}

// nameMatches compares a replay player name against a player's display
// name and registered alts, case-insensitively.
func nameMatches(parsed string, p models.Player) bool {
	parsed = strings.ToLower(strings.TrimSpace(parsed))
	if parsed == strings.ToLower(p.PlayerName) {
		return true
	}
	for _, alt := range p.AltNames() {
		if parsed == strings.ToLower(alt) {
			return true
		}
	}
	return false
}

// baseRace strips the game prefix from a catalog race code, leaving
// the name parsers report (bw_terran -> terran).
func baseRace(code string) string {
	if i := strings.IndexByte(code, '_'); i >= 0 {
		return code[i+1:]
	}
	return code
}

func raceMatches(parsed, matchRace string) bool {
	return strings.EqualFold(strings.TrimSpace(parsed), baseRace(matchRace))
}

// Verify compares parsed metadata against the match. uploaderReport is
// the uploader's stored player-1-frame report, nil if they have not
// reported yet.
func Verify(meta Metadata, m models.Match1v1, p1, p2 models.Player, uploaderReport *int) Verification {
	v := Verification{
		HasObservers:      len(meta.Observers) > 0,
		ExcessiveDuration: meta.DurationSeconds > excessiveDurationSeconds,
		CacheAnomaly:      meta.CacheHandleCount > len(meta.Players)+len(meta.Observers),
	}

	// Exactly two humans, one per side, in either order.
	var slot1, slot2 *ParsedPlayer
	if len(meta.Players) == 2 {
		a, b := meta.Players[0], meta.Players[1]
		switch {
		case nameMatches(a.Name, p1) && nameMatches(b.Name, p2):
			slot1, slot2 = &a, &b
		case nameMatches(b.Name, p1) && nameMatches(a.Name, p2):
			slot1, slot2 = &b, &a
		}
	}
	v.PlayerNamesMatch = slot1 != nil

	if slot1 != nil {
		v.RacesMatch = raceMatches(slot1.Race, m.Player1Race) && raceMatches(slot2.Race, m.Player2Race)
	}

	v.MapMatches = catalog.SameMap(meta.MapName, m.MapPlayed)
	v.WinnerConsistent = winnerConsistent(meta, m, p1, p2, uploaderReport)
	return v
}

// winnerConsistent checks the parsed winner against the uploader's
// report. With no parsed winner or no report there is nothing to
// contradict.
func winnerConsistent(meta Metadata, m models.Match1v1, p1, p2 models.Player, uploaderReport *int) bool {
	if meta.WinnerName == "" || uploaderReport == nil {
		return true
	}
	var parsedResult int
	switch {
	case nameMatches(meta.WinnerName, p1):
		parsedResult = models.ReportPlayer1Win
	case nameMatches(meta.WinnerName, p2):
		parsedResult = models.ReportPlayer2Win
	default:
		return false
	}
	switch *uploaderReport {
	case models.ReportPlayer1Win, models.ReportPlayer2Win:
		return parsedResult == *uploaderReport
	}
	// Draw or abort reports carry no winner claim.
	return true
}
