package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"ladder-platform/backend/internal/catalog"
	"ladder-platform/backend/internal/match"
	"ladder-platform/backend/internal/models"
	"ladder-platform/backend/internal/queue"
	"ladder-platform/backend/internal/rating"
	"ladder-platform/backend/internal/store"
)

var (
	// ErrNotAdmin occurs when a non-admin calls a privileged command.
	ErrNotAdmin = errors.New("caller is not an admin")
	// ErrNotOwner occurs when a non-owner calls an owner command.
	ErrNotOwner = errors.New("caller is not an owner")
	// ErrNegativeValue occurs when an adjustment would produce a
	// negative MMR or abort count.
	ErrNegativeValue = errors.New("value cannot be negative")
	// ErrBadResolution occurs on an unknown resolution code.
	ErrBadResolution = errors.New("invalid resolution result")
	// ErrNotQueued occurs when force-dequeuing a player who is not
	// waiting.
	ErrNotQueued = errors.New("player is not in the queue")
)

// MMR adjustment modes.
const (
	AdjustSet      = "set"
	AdjustAdd      = "add"
	AdjustSubtract = "subtract"
)

// Service is the privileged command surface. Every successful call
// appends an audit row.
type Service struct {
	store   *store.Store
	matches *match.Manager
	queue   *queue.Engine
	allow   *Allowlist
}

// NewService creates the admin service.
func NewService(st *store.Store, mg *match.Manager, q *queue.Engine, allow *Allowlist) *Service {
	return &Service{store: st, matches: mg, queue: q, allow: allow}
}

// Allowlist exposes the underlying allowlist for auth checks.
func (s *Service) Allowlist() *Allowlist {
	return s.allow
}

func (s *Service) requireAdmin(uid int64) error {
	if !s.allow.IsAdmin(uid) {
		return ErrNotAdmin
	}
	return nil
}

func (s *Service) audit(adminUID int64, action string, targetPlayer, targetMatch *int64, details interface{}, reason string) {
	detailsJSON := "{}"
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			detailsJSON = string(raw)
		}
	}
	a := models.AdminAction{
		AdminDiscordUID:   adminUID,
		AdminUsername:     s.allow.Name(adminUID),
		ActionType:        action,
		TargetPlayerUID:   targetPlayer,
		TargetMatchID:     targetMatch,
		ActionDetailsJSON: detailsJSON,
		Reason:            reason,
		PerformedAt:       time.Now().UTC(),
	}
	if err := s.store.LogAdminAction(a); err != nil {
		log.Printf("[ADMIN] failed to record audit row for %s by %d: %v", action, adminUID, err)
	}
}

// Resolve forces a match result. Result must be 1, 2, 0 or -1.
//
// Terminal matches re-resolve from the frozen MMR snapshot: the
// previous delta is undone by assigning the snapshot values back (not
// by subtracting), the new delta computes from the snapshot, and game
// counters never move. Re-resolving N times therefore lands on the
// same final MMRs as resolving once with the last result.
//
// Fresh and conflicted matches instead drive the normal completion
// flow with the chosen result, so counters increment exactly as in an
// organic completion; the players' original reports are preserved.
func (s *Service) Resolve(adminUID, matchID int64, result int, reason string) error {
	if err := s.requireAdmin(adminUID); err != nil {
		return err
	}
	switch result {
	case models.MatchResultPlayer1Win, models.MatchResultPlayer2Win,
		models.MatchResultDraw, models.MatchResultInvalidated:
	default:
		return ErrBadResolution
	}

	m, ok := s.store.Match(matchID)
	if !ok {
		return store.ErrMatchNotFound
	}

	var err error
	switch {
	case m.IsTerminal():
		err = s.reResolveTerminal(m, result)
	case result == models.MatchResultInvalidated:
		err = s.matches.Invalidate(matchID)
	default:
		err = s.matches.ResolveAsReported(matchID, result)
	}
	if err != nil {
		return err
	}

	s.clearQueueLocks(m.Player1DiscordUID)
	s.clearQueueLocks(m.Player2DiscordUID)

	s.audit(adminUID, "resolve_match", nil, &matchID, map[string]int{"result": result}, reason)
	log.Printf("[ADMIN] %d resolved match %d as %d", adminUID, matchID, result)
	return nil
}

// reResolveTerminal recomputes a terminal match from its immutable MMR
// snapshot. Reports and game counters are untouched.
func (s *Service) reResolveTerminal(m models.Match1v1, result int) error {
	rat1, ok := s.store.Rating(m.Player1DiscordUID, catalog.Race(m.Player1Race))
	if !ok {
		return store.ErrRatingNotFound
	}
	rat2, ok := s.store.Rating(m.Player2DiscordUID, catalog.Race(m.Player2Race))
	if !ok {
		return store.ErrRatingNotFound
	}

	// Undo the original application by assignment to the snapshot.
	if m.MmrChange != nil && *m.MmrChange != 0 {
		rat1.Mmr = m.Player1Mmr
		rat2.Mmr = m.Player2Mmr
	}

	delta := 0
	if result != models.MatchResultInvalidated {
		delta = rating.Change(m.Player1Mmr, m.Player2Mmr, result, rat1.GamesPlayed, rat2.GamesPlayed)
	}
	if delta != 0 {
		rat1.Mmr = rating.Clamp(m.Player1Mmr + delta)
		rat2.Mmr = rating.Clamp(m.Player2Mmr - delta)
	}

	return s.store.AdminResolveMatch(m.ID, result, delta, rat1, rat2)
}

func (s *Service) clearQueueLocks(uid int64) {
	s.queue.Remove(uid, queue.RemoveAdmin)
	if p, ok := s.store.Player(uid); ok && p.State != models.StateIdle {
		if _, live := s.store.LiveMatchOf(uid); !live {
			_ = s.store.SetPlayerState(uid, models.StateIdle)
		}
	}
}

// AdjustMMR sets, adds to or subtracts from a player's rating for one
// race. Game counters never change; a negative outcome is rejected.
func (s *Service) AdjustMMR(adminUID, targetUID int64, race catalog.Race, mode string, value int, reason string) error {
	if err := s.requireAdmin(adminUID); err != nil {
		return err
	}
	rat, ok := s.store.Rating(targetUID, race)
	if !ok {
		return store.ErrRatingNotFound
	}

	var next int
	switch mode {
	case AdjustSet:
		next = value
	case AdjustAdd:
		next = rat.Mmr + value
	case AdjustSubtract:
		next = rat.Mmr - value
	default:
		return fmt.Errorf("unknown MMR adjustment mode %q", mode)
	}
	if next < 0 {
		return ErrNegativeValue
	}

	before := rat.Mmr
	rat.Mmr = next
	if err := s.store.SetRating(rat); err != nil {
		return err
	}
	s.audit(adminUID, "adjust_mmr", &targetUID, nil, map[string]interface{}{
		"race": string(race), "mode": mode, "value": value, "before": before, "after": next,
	}, reason)
	log.Printf("[ADMIN] %d adjusted MMR of %d (%s): %d -> %d", adminUID, targetUID, race, before, next)
	return nil
}

// RemoveFromQueue force-dequeues a player.
func (s *Service) RemoveFromQueue(adminUID, targetUID int64, reason string) error {
	if err := s.requireAdmin(adminUID); err != nil {
		return err
	}
	if !s.queue.Remove(targetUID, queue.RemoveAdmin) {
		return ErrNotQueued
	}
	if p, ok := s.store.Player(targetUID); ok && p.State == models.StateQueued {
		_ = s.store.SetPlayerState(targetUID, models.StateIdle)
	}
	s.audit(adminUID, "remove_from_queue", &targetUID, nil, nil, reason)
	return nil
}

// ResetAborts sets a player's abort credit to an explicit value.
func (s *Service) ResetAborts(adminUID, targetUID int64, value int, reason string) error {
	if err := s.requireAdmin(adminUID); err != nil {
		return err
	}
	if value < 0 {
		return ErrNegativeValue
	}
	if err := s.store.SetRemainingAborts(targetUID, value); err != nil {
		return err
	}
	s.audit(adminUID, "reset_aborts", &targetUID, nil, map[string]int{"value": value}, reason)
	return nil
}

// ToggleBan flips a player's ban flag. Banning also removes them from
// the queue. Returns the new banned state.
func (s *Service) ToggleBan(adminUID, targetUID int64, reason string) (bool, error) {
	if err := s.requireAdmin(adminUID); err != nil {
		return false, err
	}
	p, ok := s.store.Player(targetUID)
	if !ok {
		return false, store.ErrPlayerNotFound
	}
	banned := !p.IsBanned
	if err := s.store.SetBanned(targetUID, banned); err != nil {
		return false, err
	}
	if banned {
		s.queue.Remove(targetUID, queue.RemoveAdmin)
	}
	s.audit(adminUID, "toggle_ban", &targetUID, nil, map[string]bool{"banned": banned}, reason)
	log.Printf("[ADMIN] %d set banned=%v for player %d", adminUID, banned, targetUID)
	return banned, nil
}

// Unblock resets a stuck player to idle and clears their queue locks.
func (s *Service) Unblock(adminUID, targetUID int64, reason string) error {
	if err := s.requireAdmin(adminUID); err != nil {
		return err
	}
	if _, ok := s.store.Player(targetUID); !ok {
		return store.ErrPlayerNotFound
	}
	s.queue.Remove(targetUID, queue.RemoveAdmin)
	if err := s.store.SetPlayerState(targetUID, models.StateIdle); err != nil {
		return err
	}
	s.audit(adminUID, "unblock_player", &targetUID, nil, nil, reason)
	return nil
}

// ClearQueue dequeues every waiting player. Returns how many were
// removed.
func (s *Service) ClearQueue(adminUID int64, reason string) (int, error) {
	if err := s.requireAdmin(adminUID); err != nil {
		return 0, err
	}
	uids := s.queue.Clear(queue.RemoveQueueCleared)
	for _, uid := range uids {
		if p, ok := s.store.Player(uid); ok && p.State == models.StateQueued {
			_ = s.store.SetPlayerState(uid, models.StateIdle)
		}
	}
	s.audit(adminUID, "clear_queue", nil, nil, map[string]int{"removed": len(uids)}, reason)
	log.Printf("[ADMIN] %d cleared the queue (%d players)", adminUID, len(uids))
	return len(uids), nil
}

// ToggleAdmin grants or revokes admin membership. Owner only. Returns
// whether the target is an admin afterwards.
func (s *Service) ToggleAdmin(ownerUID, targetUID int64, targetName string) (bool, error) {
	if !s.allow.IsOwner(ownerUID) {
		return false, ErrNotOwner
	}
	isAdmin, err := s.allow.Toggle(targetUID, targetName)
	if err != nil {
		return isAdmin, err
	}
	s.audit(ownerUID, "toggle_admin", &targetUID, nil, map[string]bool{"admin": isAdmin}, "")
	log.Printf("[ADMIN] owner %d set admin=%v for %d", ownerUID, isAdmin, targetUID)
	return isAdmin, nil
}
