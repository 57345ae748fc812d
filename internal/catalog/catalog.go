// Package catalog holds the static reference data the ladder is built
// on: playable races, the active map pool, regions and the
// region-pair server table. Everything here is immutable after process
// start.
package catalog

import "strings"

// Race identifies a playable race in a specific game. The digit suffix
// of the short name encodes the game (1 = Brood War, 2 = StarCraft II).
type Race string

const (
	BWTerran   Race = "bw_terran"
	BWZerg     Race = "bw_zerg"
	BWProtoss  Race = "bw_protoss"
	SC2Terran  Race = "sc2_terran"
	SC2Zerg    Race = "sc2_zerg"
	SC2Protoss Race = "sc2_protoss"
)

// races is the canonical display order.
var races = []Race{BWTerran, BWZerg, BWProtoss, SC2Terran, SC2Zerg, SC2Protoss}

var raceShortNames = map[Race]string{
	BWTerran:   "T1",
	BWZerg:     "Z1",
	BWProtoss:  "P1",
	SC2Terran:  "T2",
	SC2Zerg:    "Z2",
	SC2Protoss: "P2",
}

// Races returns all race codes in canonical display order.
func Races() []Race {
	out := make([]Race, len(races))
	copy(out, races)
	return out
}

// IsValidRace reports whether code names a known race.
func IsValidRace(code string) bool {
	_, ok := raceShortNames[Race(code)]
	return ok
}

// RaceShortName returns the 2-char abbreviation for a race (e.g. "T1").
func RaceShortName(r Race) string {
	return raceShortNames[r]
}

// IsBW reports whether the race belongs to Brood War.
func IsBW(r Race) bool {
	return strings.HasPrefix(string(r), "bw_")
}

// IsSC2 reports whether the race belongs to StarCraft II.
func IsSC2(r Race) bool {
	return strings.HasPrefix(string(r), "sc2_")
}

// activeMaps is the current 1v1 map rotation, in rotation order.
var activeMaps = []string{
	"polypoid",
	"eclipse",
	"vermeer",
	"radeon",
	"goodnight",
	"neo_sylphid",
	"shakuras_temple",
}

// ActiveMaps returns the active map pool in rotation order.
func ActiveMaps() []string {
	out := make([]string, len(activeMaps))
	copy(out, activeMaps)
	return out
}

// MapForMatch deterministically picks a map for a match id by walking
// the rotation.
func MapForMatch(matchID int64) string {
	return activeMaps[int(matchID%int64(len(activeMaps)))]
}

// NormalizeMapName lowercases and strips separators so that replay map
// names compare fuzzily against catalog codes.
func NormalizeMapName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for _, cut := range []string{" ", "_", "-", "'", "."} {
		s = strings.ReplaceAll(s, cut, "")
	}
	return s
}

// SameMap reports fuzzy equality between a replay map name and a
// catalog map code.
func SameMap(a, b string) bool {
	return NormalizeMapName(a) == NormalizeMapName(b)
}
