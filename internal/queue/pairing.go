package queue

import (
	"sort"

	"ladder-platform/backend/internal/catalog"
)

// Profile is one matchmaking tuning: per-pressure-band window
// parameters plus the wait bonus coefficient.
type Profile struct {
	Name string

	// Window = base + growth*waves, selected by pressure band.
	HighBase, HighGrowth int // pressure >= 0.20
	ModBase, ModGrowth   int // pressure >= 0.10
	LowBase, LowGrowth   int // otherwise

	WaitCoefficient int
}

// Tuning profiles selected by MATCH_WINDOW_PROFILE.
var (
	ProfileBalanced = Profile{
		Name:     "balanced",
		HighBase: 75, HighGrowth: 25,
		ModBase: 100, ModGrowth: 35,
		LowBase: 125, LowGrowth: 45,
		WaitCoefficient: 20,
	}
	ProfileAggressive = Profile{
		Name:     "aggressive",
		HighBase: 100, HighGrowth: 35,
		ModBase: 125, ModGrowth: 45,
		LowBase: 150, LowGrowth: 60,
		WaitCoefficient: 30,
	}
	ProfileStrict = Profile{
		Name:     "strict",
		HighBase: 50, HighGrowth: 15,
		ModBase: 75, ModGrowth: 25,
		LowBase: 100, LowGrowth: 35,
		WaitCoefficient: 10,
	}
)

// ProfileByName resolves a profile name, defaulting to balanced.
func ProfileByName(name string) Profile {
	switch name {
	case ProfileAggressive.Name:
		return ProfileAggressive
	case ProfileStrict.Name:
		return ProfileStrict
	default:
		return ProfileBalanced
	}
}

// Pressure is the queue-size-to-population ratio, scaled by population
// band and clamped to [0, 1]. Small populations get a generosity boost.
func Pressure(queueSize, population int) float64 {
	scale := 0.8
	switch {
	case population <= 10:
		scale = 1.2
	case population <= 25:
		scale = 1.0
	}
	if population < 1 {
		population = 1
	}
	p := scale * float64(queueSize) / float64(population)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Window returns the maximum admissible MMR difference for an entry
// that has waited the given number of waves under the given pressure.
func (p Profile) Window(waves int, pressure float64) int {
	switch {
	case pressure >= 0.20:
		return p.HighBase + p.HighGrowth*waves
	case pressure >= 0.10:
		return p.ModBase + p.ModGrowth*waves
	default:
		return p.LowBase + p.LowGrowth*waves
	}
}

// side categorization of an entry by its selected races.
const (
	sideBWOnly = iota
	sideSC2Only
	sideBoth
)

func (e *Entry) category() int {
	bw, sc2 := false, false
	for _, r := range e.Races {
		if catalog.IsBW(r) {
			bw = true
		} else {
			sc2 = true
		}
	}
	switch {
	case bw && sc2:
		return sideBoth
	case bw:
		return sideBWOnly
	default:
		return sideSC2Only
	}
}

// SideRace picks the race the entry would play on the given side: the
// selected race of that game with the highest recorded MMR.
func (e *Entry) SideRace(bwSide bool) (catalog.Race, int) {
	var best catalog.Race
	bestMmr := -1
	for _, r := range e.Races {
		if catalog.IsBW(r) != bwSide {
			continue
		}
		if mmr := e.Ratings[r]; mmr > bestMmr {
			best, bestMmr = r, mmr
		}
	}
	return best, bestMmr
}

// SplitSides distributes a wave snapshot into the BW and SC2 lists.
// Game-locked entries go to their side; cross-game entries balance the
// list sizes (ties pushed to the SC2 side), except when everyone is
// cross-game, in which case they alternate starting with BW.
func SplitSides(entries []*Entry) (bwSide, sc2Side []*Entry) {
	var both []*Entry
	for _, e := range entries {
		switch e.category() {
		case sideBWOnly:
			bwSide = append(bwSide, e)
		case sideSC2Only:
			sc2Side = append(sc2Side, e)
		default:
			both = append(both, e)
		}
	}

	if len(bwSide) == 0 && len(sc2Side) == 0 {
		for i, e := range both {
			if i%2 == 0 {
				bwSide = append(bwSide, e)
			} else {
				sc2Side = append(sc2Side, e)
			}
		}
		return bwSide, sc2Side
	}

	for _, e := range both {
		if len(bwSide) < len(sc2Side) {
			bwSide = append(bwSide, e)
		} else {
			sc2Side = append(sc2Side, e)
		}
	}
	return bwSide, sc2Side
}

// Pair is one pairing produced by a wave. Lead is always drawn from
// the shorter side.
type Pair struct {
	Lead, Follow *Entry
	// LeadIsBW reports which game the lead side plays.
	LeadIsBW bool
	// LeadRace / FollowRace are the races chosen at pair time.
	LeadRace   catalog.Race
	FollowRace catalog.Race
	// LeadMmr / FollowMmr are the rating samples the pairing used.
	LeadMmr   int
	FollowMmr int
}

type candidate struct {
	lead, follow int // indexes into the side lists
	score        int
}

// MatchWave runs the locally-optimal pairing pass over a snapshot.
// population is the recent-active player count feeding the pressure
// metric. Unmatched entries simply stay queued.
func MatchWave(entries []*Entry, population int, profile Profile) []Pair {
	bwSide, sc2Side := SplitSides(entries)

	lead, follow := bwSide, sc2Side
	leadIsBW := true
	if len(sc2Side) < len(bwSide) {
		lead, follow = sc2Side, bwSide
		leadIsBW = false
	}
	if len(lead) == 0 || len(follow) == 0 {
		return nil
	}

	pressure := Pressure(len(entries), population)

	// Enumerate admissible candidates. Enumeration order (lead
	// insertion order, then follow insertion order) is the tie-break
	// for equal scores, and sort stability preserves it.
	var candidates []candidate
	leadMmrs := make([]int, len(lead))
	followMmrs := make([]int, len(follow))
	for i, e := range lead {
		_, leadMmrs[i] = e.SideRace(leadIsBW)
	}
	for j, e := range follow {
		_, followMmrs[j] = e.SideRace(!leadIsBW)
	}

	for i, le := range lead {
		for j, fe := range follow {
			diff := leadMmrs[i] - followMmrs[j]
			if diff < 0 {
				diff = -diff
			}
			if diff > profile.Window(le.Waves, pressure) || diff > profile.Window(fe.Waves, pressure) {
				continue
			}
			waitPriority := le.Waves + fe.Waves
			candidates = append(candidates, candidate{
				lead:   i,
				follow: j,
				score:  diff*diff - profile.WaitCoefficient*waitPriority,
			})
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score < candidates[b].score
	})

	usedLead := make([]bool, len(lead))
	usedFollow := make([]bool, len(follow))
	var pairs []Pair
	for _, c := range candidates {
		if usedLead[c.lead] || usedFollow[c.follow] {
			continue
		}
		usedLead[c.lead] = true
		usedFollow[c.follow] = true

		le, fe := lead[c.lead], follow[c.follow]
		leadRace, leadMmr := le.SideRace(leadIsBW)
		followRace, followMmr := fe.SideRace(!leadIsBW)
		pairs = append(pairs, Pair{
			Lead: le, Follow: fe,
			LeadIsBW: leadIsBW,
			LeadRace: leadRace, FollowRace: followRace,
			LeadMmr: leadMmr, FollowMmr: followMmr,
		})
	}
	return pairs
}
