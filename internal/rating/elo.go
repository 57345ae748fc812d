// Package rating implements the per-race Elo computation used when a
// match reaches a terminal result.
package rating

import "math"

// Result codes for a finished match, in the player-1 frame.
const (
	ResultPlayer1Win = 1
	ResultPlayer2Win = 2
	ResultDraw       = 0
	ResultInvalid    = -1
)

// K-factor tiers by games played of the affected player.
const (
	KProvisional = 40 // fewer than 30 games
	KEstablished = 32 // 30-99 games
	KVeteran     = 24 // 100+ games
)

// KFactor returns the K tier for a player with the given game count.
func KFactor(gamesPlayed int) int {
	switch {
	case gamesPlayed < 30:
		return KProvisional
	case gamesPlayed < 100:
		return KEstablished
	default:
		return KVeteran
	}
}

// ExpectedScore is the standard Elo expectation for player 1.
func ExpectedScore(r1, r2 int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(r2-r1)/400.0))
}

// Change computes the signed MMR change for player 1. Player 2's
// change is the negation. The effective K is the mean of both players'
// tiers so the delta stays zero-sum. Result -1 (invalidated) yields 0.
func Change(r1, r2, result, p1Games, p2Games int) int {
	var score float64
	switch result {
	case ResultPlayer1Win:
		score = 1
	case ResultPlayer2Win:
		score = 0
	case ResultDraw:
		score = 0.5
	default:
		return 0
	}

	k := float64(KFactor(p1Games)+KFactor(p2Games)) / 2
	return int(math.Round(k * (score - ExpectedScore(r1, r2))))
}

// Clamp floors a rating at zero.
func Clamp(mmr int) int {
	if mmr < 0 {
		return 0
	}
	return mmr
}
