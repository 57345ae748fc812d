// Package match owns the match lifecycle: creation from pairing
// output, player reporting, the completion rules, abandonment timers
// and terminal rating application.
package match

import (
	"errors"
	"log"
	"sync"
	"time"

	"ladder-platform/backend/internal/catalog"
	"ladder-platform/backend/internal/models"
	"ladder-platform/backend/internal/queue"
	"ladder-platform/backend/internal/rating"
	"ladder-platform/backend/internal/store"
)

// Outcome is a report as submitted by a player, from their own frame.
type Outcome int

const (
	OutcomeDraw  Outcome = 0
	OutcomeWin   Outcome = 1
	OutcomeLoss  Outcome = 2
	OutcomeAbort Outcome = -3
)

var (
	// ErrNotParticipant occurs when a player reports on a match they
	// are not part of.
	ErrNotParticipant = errors.New("player is not a participant of this match")
	// ErrMatchClosed occurs when reporting on a match that already has
	// a result (terminal or conflict).
	ErrMatchClosed = errors.New("match already has a result")
	// ErrNoAbortCredit occurs when a player with no remaining aborts
	// tries to abort.
	ErrNoAbortCredit = errors.New("no abort credits remaining")
	// ErrInvalidOutcome occurs on an unrecognized report value.
	ErrInvalidOutcome = errors.New("invalid report outcome")
)

// Notification types emitted by the manager.
const (
	NoticeMatchFound       = "match_found"
	NoticeMatchResult      = "match_result"
	NoticeMatchConflict    = "match_conflict"
	NoticeMatchInvalidated = "match_invalidated"
)

// Notifier delivers match lifecycle notifications to a player.
type Notifier interface {
	Notify(uid int64, noticeType string, payload interface{})
}

// MatchFoundNotice is the payload of a match_found notification.
type MatchFoundNotice struct {
	MatchID      int64  `json:"match_id"`
	OpponentUID  int64  `json:"opponent_uid"`
	OpponentName string `json:"opponent_name"`
	OpponentRace string `json:"opponent_race"`
	OwnRace      string `json:"own_race"`
	Map          string `json:"map"`
	Server       string `json:"server"`
}

// ResultNotice is the payload of a match_result notification.
type ResultNotice struct {
	MatchID   int64  `json:"match_id"`
	Result    int    `json:"result"`
	Race      string `json:"race"`
	MmrBefore int    `json:"mmr_before"`
	MmrAfter  int    `json:"mmr_after"`
}

// ConflictNotice is the payload of a match_conflict notification.
type ConflictNotice struct {
	MatchID int64 `json:"match_id"`
}

// Manager runs the match state machine. A single mutex serializes all
// report and completion transitions; creation and reads go straight to
// the store.
type Manager struct {
	store        *store.Store
	notifier     Notifier
	abandonAfter time.Duration

	mu     sync.Mutex
	timers map[int64]*time.Timer

	onTerminal func(m models.Match1v1)
}

// NewManager creates a match manager. abandonAfter is the deadline for
// unreported matches.
func NewManager(st *store.Store, notifier Notifier, abandonAfter time.Duration) *Manager {
	return &Manager{
		store:        st,
		notifier:     notifier,
		abandonAfter: abandonAfter,
		timers:       make(map[int64]*time.Timer),
	}
}

// SetOnTerminalCallback sets the callback invoked after a match
// reaches a terminal result (players released, ratings applied).
func (mg *Manager) SetOnTerminalCallback(cb func(m models.Match1v1)) {
	mg.onTerminal = cb
}

// CreateFromPair turns one pairing into a persisted match: MMRs frozen
// from the pair samples, map picked deterministically from the match
// id, server resolved from both players' regions.
func (mg *Manager) CreateFromPair(p queue.Pair) (models.Match1v1, error) {
	p1, ok := mg.store.Player(p.Lead.UID)
	if !ok {
		return models.Match1v1{}, store.ErrPlayerNotFound
	}
	p2, ok := mg.store.Player(p.Follow.UID)
	if !ok {
		return models.Match1v1{}, store.ErrPlayerNotFound
	}

	m, err := mg.store.CreateMatch(models.Match1v1{
		Player1DiscordUID: p1.DiscordUID,
		Player2DiscordUID: p2.DiscordUID,
		Player1Race:       string(p.LeadRace),
		Player2Race:       string(p.FollowRace),
		Player1Mmr:        p.LeadMmr,
		Player2Mmr:        p.FollowMmr,
		ServerUsed:        catalog.BestServer(p1.Region, p2.Region),
	})
	if err != nil {
		return models.Match1v1{}, err
	}

	if err := mg.store.SetPlayerState(p1.DiscordUID, models.StateMatched); err != nil {
		return models.Match1v1{}, err
	}
	if err := mg.store.SetPlayerState(p2.DiscordUID, models.StateMatched); err != nil {
		return models.Match1v1{}, err
	}

	mg.scheduleAbandonment(m.ID, mg.abandonAfter)
	log.Printf("[MATCH] created match %d: %d (%s, %d) vs %d (%s, %d) on %s @ %s",
		m.ID, p1.DiscordUID, m.Player1Race, m.Player1Mmr,
		p2.DiscordUID, m.Player2Race, m.Player2Mmr, m.MapPlayed, m.ServerUsed)

	if mg.notifier != nil {
		mg.notifier.Notify(p1.DiscordUID, NoticeMatchFound, MatchFoundNotice{
			MatchID: m.ID, OpponentUID: p2.DiscordUID, OpponentName: p2.PlayerName,
			OpponentRace: m.Player2Race, OwnRace: m.Player1Race,
			Map: m.MapPlayed, Server: m.ServerUsed,
		})
		mg.notifier.Notify(p2.DiscordUID, NoticeMatchFound, MatchFoundNotice{
			MatchID: m.ID, OpponentUID: p1.DiscordUID, OpponentName: p1.PlayerName,
			OpponentRace: m.Player1Race, OwnRace: m.Player2Race,
			Map: m.MapPlayed, Server: m.ServerUsed,
		})
	}
	return m, nil
}

// frameReport converts a player's own-frame outcome into the stored
// player-1 frame for the given slot.
func frameReport(slot int, outcome Outcome) (int, error) {
	switch outcome {
	case OutcomeWin:
		if slot == 1 {
			return models.ReportPlayer1Win, nil
		}
		return models.ReportPlayer2Win, nil
	case OutcomeLoss:
		if slot == 1 {
			return models.ReportPlayer2Win, nil
		}
		return models.ReportPlayer1Win, nil
	case OutcomeDraw:
		return models.ReportDraw, nil
	case OutcomeAbort:
		return models.ReportManualAbort, nil
	}
	return 0, ErrInvalidOutcome
}

// Report records one player's result claim and runs the completion
// check. Reports may be changed until the match acquires a result.
func (mg *Manager) Report(matchID, uid int64, outcome Outcome) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	m, ok := mg.store.Match(matchID)
	if !ok {
		return store.ErrMatchNotFound
	}
	if !m.HasPlayer(uid) {
		return ErrNotParticipant
	}
	if m.MatchResult != nil {
		return ErrMatchClosed
	}

	// The abort-credit guard runs before any write so a rejected abort
	// leaves no trace.
	if outcome == OutcomeAbort {
		p, ok := mg.store.Player(uid)
		if !ok {
			return store.ErrPlayerNotFound
		}
		if p.RemainingAborts <= 0 {
			return ErrNoAbortCredit
		}
	}

	slot := 1
	if m.Player2DiscordUID == uid {
		slot = 2
	}
	framed, err := frameReport(slot, outcome)
	if err != nil {
		return err
	}
	if err := mg.store.SetMatchReport(matchID, slot, &framed); err != nil {
		return err
	}
	if err := mg.store.SetPlayerState(uid, models.StateReporting); err != nil {
		return err
	}
	log.Printf("[MATCH] match %d: player %d (slot %d) reported %d", matchID, uid, slot, framed)

	m, _ = mg.store.Match(matchID)
	return mg.completeLocked(m)
}

// completeLocked applies the completion rules whenever a report
// changed. Caller holds mg.mu.
func (mg *Manager) completeLocked(m models.Match1v1) error {
	if m.Player1Report == nil || m.Player2Report == nil {
		return nil
	}
	r1, r2 := *m.Player1Report, *m.Player2Report

	switch {
	case r1 == r2 && (r1 == models.ReportPlayer1Win || r1 == models.ReportPlayer2Win || r1 == models.ReportDraw):
		return mg.finalizeLocked(m, r1)

	case r1 == models.ReportManualAbort && r2 == models.ReportManualAbort:
		if err := mg.decrementAborts(m.Player1DiscordUID); err != nil {
			return err
		}
		if err := mg.decrementAborts(m.Player2DiscordUID); err != nil {
			return err
		}
		return mg.invalidateLocked(m)

	case r1 == models.ReportManualAbort:
		if err := mg.decrementAborts(m.Player1DiscordUID); err != nil {
			return err
		}
		return mg.finalizeLocked(m, models.MatchResultPlayer2Win)

	case r2 == models.ReportManualAbort:
		if err := mg.decrementAborts(m.Player2DiscordUID); err != nil {
			return err
		}
		return mg.finalizeLocked(m, models.MatchResultPlayer1Win)

	case r1 == models.ReportNoResponse && r2 == models.ReportNoResponse:
		return mg.invalidateLocked(m)

	default:
		return mg.conflictLocked(m)
	}
}

func (mg *Manager) decrementAborts(uid int64) error {
	p, ok := mg.store.Player(uid)
	if !ok {
		return store.ErrPlayerNotFound
	}
	return mg.store.SetRemainingAborts(uid, p.RemainingAborts-1)
}

// finalizeLocked applies a decisive result: rating deltas, game
// counters, last-played, notifications.
func (mg *Manager) finalizeLocked(m models.Match1v1, result int) error {
	race1 := catalog.Race(m.Player1Race)
	race2 := catalog.Race(m.Player2Race)
	rat1, ok := mg.store.Rating(m.Player1DiscordUID, race1)
	if !ok {
		return store.ErrRatingNotFound
	}
	rat2, ok := mg.store.Rating(m.Player2DiscordUID, race2)
	if !ok {
		return store.ErrRatingNotFound
	}

	delta := rating.Change(m.Player1Mmr, m.Player2Mmr, result, rat1.GamesPlayed, rat2.GamesPlayed)
	if err := mg.store.SetMatchResult(m.ID, result, delta); err != nil {
		return err
	}

	now := time.Now().UTC()
	before1, before2 := rat1.Mmr, rat2.Mmr
	rat1.Mmr = rating.Clamp(rat1.Mmr + delta)
	rat2.Mmr = rating.Clamp(rat2.Mmr - delta)
	rat1.GamesPlayed++
	rat2.GamesPlayed++
	switch result {
	case models.MatchResultPlayer1Win:
		rat1.GamesWon++
		rat2.GamesLost++
	case models.MatchResultPlayer2Win:
		rat1.GamesLost++
		rat2.GamesWon++
	case models.MatchResultDraw:
		rat1.GamesDrawn++
		rat2.GamesDrawn++
	}
	rat1.LastPlayed = &now
	rat2.LastPlayed = &now
	if err := mg.store.SetRating(rat1); err != nil {
		return err
	}
	if err := mg.store.SetRating(rat2); err != nil {
		return err
	}

	mg.releaseLocked(m)
	log.Printf("[MATCH] match %d finalized: result=%d mmr_change=%d", m.ID, result, delta)

	if mg.notifier != nil {
		mg.notifier.Notify(m.Player1DiscordUID, NoticeMatchResult, ResultNotice{
			MatchID: m.ID, Result: result, Race: m.Player1Race,
			MmrBefore: before1, MmrAfter: rat1.Mmr,
		})
		mg.notifier.Notify(m.Player2DiscordUID, NoticeMatchResult, ResultNotice{
			MatchID: m.ID, Result: result, Race: m.Player2Race,
			MmrBefore: before2, MmrAfter: rat2.Mmr,
		})
	}
	if mg.onTerminal != nil {
		if final, ok := mg.store.Match(m.ID); ok {
			mg.onTerminal(final)
		}
	}
	return nil
}

// invalidateLocked closes a match with no rating effect.
func (mg *Manager) invalidateLocked(m models.Match1v1) error {
	if err := mg.store.SetMatchResult(m.ID, models.MatchResultInvalidated, 0); err != nil {
		return err
	}
	mg.releaseLocked(m)
	log.Printf("[MATCH] match %d invalidated", m.ID)

	if mg.notifier != nil {
		mg.notifier.Notify(m.Player1DiscordUID, NoticeMatchInvalidated, ConflictNotice{MatchID: m.ID})
		mg.notifier.Notify(m.Player2DiscordUID, NoticeMatchInvalidated, ConflictNotice{MatchID: m.ID})
	}
	if mg.onTerminal != nil {
		if final, ok := mg.store.Match(m.ID); ok {
			mg.onTerminal(final)
		}
	}
	return nil
}

// conflictLocked parks a match for admin adjudication. Players are
// released so they can queue again while admins review.
func (mg *Manager) conflictLocked(m models.Match1v1) error {
	if err := mg.store.SetMatchResult(m.ID, models.MatchResultConflict, 0); err != nil {
		return err
	}
	mg.releaseLocked(m)
	log.Printf("[MATCH] match %d in conflict, awaiting admin", m.ID)

	if mg.notifier != nil {
		mg.notifier.Notify(m.Player1DiscordUID, NoticeMatchConflict, ConflictNotice{MatchID: m.ID})
		mg.notifier.Notify(m.Player2DiscordUID, NoticeMatchConflict, ConflictNotice{MatchID: m.ID})
	}
	return nil
}

// releaseLocked frees both players and cancels the abandonment timer.
func (mg *Manager) releaseLocked(m models.Match1v1) {
	if t, ok := mg.timers[m.ID]; ok {
		t.Stop()
		delete(mg.timers, m.ID)
	}
	// Best effort: a missing player row only affects the state flag.
	_ = mg.store.SetPlayerState(m.Player1DiscordUID, models.StateIdle)
	_ = mg.store.SetPlayerState(m.Player2DiscordUID, models.StateIdle)
}

func (mg *Manager) scheduleAbandonment(matchID int64, after time.Duration) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	if after < 0 {
		after = 0
	}
	mg.timers[matchID] = time.AfterFunc(after, func() {
		if err := mg.Abandon(matchID); err != nil {
			log.Printf("[MATCH] abandonment of match %d failed: %v", matchID, err)
		}
	})
}

// Abandon marks every missing report as no-response and runs the
// completion check. Invoked by the abandonment timer; exported for
// deterministic tests.
func (mg *Manager) Abandon(matchID int64) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	m, ok := mg.store.Match(matchID)
	if !ok {
		return store.ErrMatchNotFound
	}
	if m.MatchResult != nil {
		return nil
	}
	noResponse := models.ReportNoResponse
	if m.Player1Report == nil {
		if err := mg.store.SetMatchReport(matchID, 1, &noResponse); err != nil {
			return err
		}
	}
	if m.Player2Report == nil {
		if err := mg.store.SetMatchReport(matchID, 2, &noResponse); err != nil {
			return err
		}
	}
	log.Printf("[MATCH] match %d hit the abandonment deadline", matchID)

	m, _ = mg.store.Match(matchID)
	return mg.completeLocked(m)
}

// ResolveAsReported drives the normal completion flow with an imposed
// mutual report, then restores the players' original reports so the
// historical record of what they claimed survives. Used for
// administrative resolution of fresh and conflicted matches; game
// counters increment exactly as in an organic completion.
func (mg *Manager) ResolveAsReported(matchID int64, result int) error {
	if result != models.MatchResultPlayer1Win && result != models.MatchResultPlayer2Win && result != models.MatchResultDraw {
		return ErrInvalidOutcome
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()

	m, ok := mg.store.Match(matchID)
	if !ok {
		return store.ErrMatchNotFound
	}
	orig1, orig2 := m.Player1Report, m.Player2Report

	imposed := result
	if err := mg.store.SetMatchReport(matchID, 1, &imposed); err != nil {
		return err
	}
	if err := mg.store.SetMatchReport(matchID, 2, &imposed); err != nil {
		return err
	}
	m, _ = mg.store.Match(matchID)
	if err := mg.completeLocked(m); err != nil {
		return err
	}

	if err := mg.store.SetMatchReport(matchID, 1, orig1); err != nil {
		return err
	}
	return mg.store.SetMatchReport(matchID, 2, orig2)
}

// Invalidate closes a match with result -1 and no rating effect,
// regardless of reports. No abort credits are touched.
func (mg *Manager) Invalidate(matchID int64) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	m, ok := mg.store.Match(matchID)
	if !ok {
		return store.ErrMatchNotFound
	}
	return mg.invalidateLocked(m)
}

// RestoreMonitors re-arms abandonment timers for matches that were
// still unresolved when the process went down. Deadlines already in
// the past fire immediately.
func (mg *Manager) RestoreMonitors() int {
	restored := 0
	for _, m := range mg.store.NonTerminalMatches() {
		if m.MatchResult != nil { // conflicts wait for an admin, not a timer
			continue
		}
		remaining := mg.abandonAfter - time.Since(m.PlayedAt)
		mg.scheduleAbandonment(m.ID, remaining)
		restored++
	}
	if restored > 0 {
		log.Printf("[MATCH] restored %d abandonment monitor(s)", restored)
	}
	return restored
}

// Stop cancels all abandonment timers. Used during shutdown.
func (mg *Manager) Stop() {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	for id, t := range mg.timers {
		t.Stop()
		delete(mg.timers, id)
	}
}
