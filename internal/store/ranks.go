package store

import (
	"time"

	"ladder-platform/backend/internal/catalog"
	"ladder-platform/backend/internal/models"
	"ladder-platform/backend/internal/writelog"
)

// rankInsertLocked inserts uid into the per-race MMR-descending index.
// Equal ratings keep insertion order.
func (s *Store) rankInsertLocked(race catalog.Race, uid int64) {
	mmr := s.ratings[RatingKey{uid, race}].Mmr
	ids := s.ranks[race]
	pos := len(ids)
	for i, other := range ids {
		if s.ratings[RatingKey{other, race}].Mmr < mmr {
			pos = i
			break
		}
	}
	ids = append(ids, 0)
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = uid
	s.ranks[race] = ids
}

// rankRemoveLocked removes uid from the per-race index.
func (s *Store) rankRemoveLocked(race catalog.Race, uid int64) {
	ids := s.ranks[race]
	for i, other := range ids {
		if other == uid {
			s.ranks[race] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// Leaderboard returns up to limit rating rows for a race, MMR
// descending. limit <= 0 returns the whole ladder.
func (s *Store) Leaderboard(race catalog.Race, limit int) []models.Mmr1v1 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.ranks[race]
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}
	out := make([]models.Mmr1v1, 0, limit)
	for _, uid := range ids[:limit] {
		out = append(out, *s.ratings[RatingKey{uid, race}])
	}
	return out
}

// RankOf returns the 1-based ladder position of a player for a race,
// or 0 when unranked.
func (s *Store) RankOf(uid int64, race catalog.Race) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, other := range s.ranks[race] {
		if other == uid {
			return i + 1
		}
	}
	return 0
}

// ActivePopulation counts players who played any race since the given
// time. It is the fallback population signal when presence tracking is
// unavailable.
func (s *Store) ActivePopulation(since time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]bool)
	for key, r := range s.ratings {
		if r.LastPlayed != nil && r.LastPlayed.After(since) {
			seen[key.UID] = true
		}
	}
	return len(seen)
}

// LogAdminAction appends an admin audit record.
func (s *Store) LogAdminAction(a models.AdminAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.PerformedAt.IsZero() {
		a.PerformedAt = time.Now().UTC()
	}
	if err := s.log.Append(writelog.JobLogAdminAction, writelog.AdminActionPayload{Action: a}); err != nil {
		return err
	}
	s.adminActions = append(s.adminActions, a)
	return nil
}

// AdminActions returns copies of the in-memory admin audit trail.
func (s *Store) AdminActions() []models.AdminAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AdminAction, len(s.adminActions))
	copy(out, s.adminActions)
	return out
}

// LogPlayerAction appends a player audit record.
func (s *Store) LogPlayerAction(a models.PlayerAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.PerformedAt.IsZero() {
		a.PerformedAt = time.Now().UTC()
	}
	if err := s.log.Append(writelog.JobLogPlayerAction, writelog.PlayerActionPayload{Action: a}); err != nil {
		return err
	}
	s.playerActions = append(s.playerActions, a)
	return nil
}

// LogCommandCall appends a command audit record.
func (s *Store) LogCommandCall(uid int64, command string) error {
	call := models.CommandCall{DiscordUID: uid, Command: command, CalledAt: time.Now().UTC()}
	return s.log.Append(writelog.JobLogCommandCall, writelog.CommandCallPayload{Call: call})
}
