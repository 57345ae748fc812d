package store

import (
	"time"

	"ladder-platform/backend/internal/catalog"
	"ladder-platform/backend/internal/models"
	"ladder-platform/backend/internal/writelog"
)

// CreateMatch assigns the next monotonic match id, persists the match
// and returns the stored copy.
func (s *Store) CreateMatch(m models.Match1v1) (models.Match1v1, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextMatchID
	now := time.Now().UTC()
	m.PlayedAt = now
	m.UpdatedAt = now
	// Map selection depends on the assigned id, so it happens here.
	if m.MapPlayed == "" {
		m.MapPlayed = catalog.MapForMatch(m.ID)
	}

	if err := s.log.Append(writelog.JobCreateMatch, writelog.MatchPayload{Match: m}); err != nil {
		return models.Match1v1{}, err
	}
	s.nextMatchID++
	s.matches[m.ID] = &m
	return m, nil
}

// Match returns a copy of the match row.
func (s *Store) Match(id int64) (models.Match1v1, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return models.Match1v1{}, false
	}
	return *m, true
}

// Matches returns copies of all match rows.
func (s *Store) Matches() []models.Match1v1 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Match1v1, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, *m)
	}
	return out
}

// NonTerminalMatches returns matches that still need supervision
// (used at startup to restore abandonment monitors).
func (s *Store) NonTerminalMatches() []models.Match1v1 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Match1v1
	for _, m := range s.matches {
		if !m.IsTerminal() {
			out = append(out, *m)
		}
	}
	return out
}

// LiveMatchOf returns the non-terminal, non-conflict match a player is
// currently bound to, if any.
func (s *Store) LiveMatchOf(uid int64) (models.Match1v1, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.matches {
		if m.MatchResult == nil && m.HasPlayer(uid) {
			return *m, true
		}
	}
	return models.Match1v1{}, false
}

// SetMatchReport records one player's report (slot 1 or 2, player-1
// frame) atomically with its write-log job so restart recovery
// reconstructs partial reporting accurately.
func (s *Store) SetMatchReport(matchID int64, slot int, report *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	now := time.Now().UTC()
	payload := writelog.MatchReportPayload{MatchID: matchID, Slot: slot, Report: report, UpdatedAt: now}
	if err := s.log.Append(writelog.JobUpdateMatchReport, payload); err != nil {
		return err
	}
	if slot == 1 {
		m.Player1Report = report
	} else {
		m.Player2Report = report
	}
	m.UpdatedAt = now
	return nil
}

// SetMatchResult records the terminal (or conflict) result and signed
// MMR change.
func (s *Store) SetMatchResult(matchID int64, result, mmrChange int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	now := time.Now().UTC()
	payload := writelog.MatchResultPayload{MatchID: matchID, Result: result, MmrChange: mmrChange, UpdatedAt: now}
	if err := s.log.Append(writelog.JobUpdateMatchResultAndMmr, payload); err != nil {
		return err
	}
	m.MatchResult = &result
	m.MmrChange = &mmrChange
	m.UpdatedAt = now
	return nil
}

// SetMatchReplayPath links an uploaded replay artifact to a side of
// the match.
func (s *Store) SetMatchReplayPath(matchID int64, slot int, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	now := time.Now().UTC()
	payload := writelog.MatchReplayPathPayload{MatchID: matchID, Slot: slot, Path: path, UpdatedAt: now}
	if err := s.log.Append(writelog.JobUpdateMatchReplayPath, payload); err != nil {
		return err
	}
	if slot == 1 {
		m.Player1ReplayPath = &path
	} else {
		m.Player2ReplayPath = &path
	}
	m.UpdatedAt = now
	return nil
}

// AdminResolveMatch applies an administrative resolution: the match
// result and mmr_change change, both rating rows are overwritten with
// absolute values, and the players' historical reports stay untouched.
func (s *Store) AdminResolveMatch(matchID int64, result, mmrChange int, p1, p2 models.Mmr1v1) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	now := time.Now().UTC()
	payload := writelog.AdminResolvePayload{MatchID: matchID, Result: result, MmrChange: mmrChange, UpdatedAt: now}
	if err := s.log.Append(writelog.JobAdminResolveMatch, payload); err != nil {
		return err
	}
	m.MatchResult = &result
	m.MmrChange = &mmrChange
	m.UpdatedAt = now

	if err := s.setRatingLocked(p1); err != nil {
		return err
	}
	return s.setRatingLocked(p2)
}

// UpsertReplay stores a parsed replay entity.
func (s *Store) UpsertReplay(r models.Replay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.UploadedAt.IsZero() {
		r.UploadedAt = time.Now().UTC()
	}
	if err := s.log.Append(writelog.JobUpsertReplay, writelog.ReplayPayload{Replay: r}); err != nil {
		return err
	}
	s.replays[r.Path] = &r
	return nil
}

// Replay returns a copy of a stored replay entity.
func (s *Store) Replay(path string) (models.Replay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.replays[path]
	if !ok {
		return models.Replay{}, false
	}
	return *r, true
}
