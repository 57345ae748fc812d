// Package store is the in-memory source of truth for players, ratings,
// matches and replays during runtime. Every mutation appends a durable
// write-log job first and only then updates memory, so a mutation the
// caller observed is always eventually persisted, and a persisted job
// implies an observable memory update after restart recovery.
package store

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"ladder-platform/backend/internal/catalog"
	"ladder-platform/backend/internal/models"
	"ladder-platform/backend/internal/writelog"
)

var (
	// ErrPlayerNotFound occurs when a uid has no player row.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrMatchNotFound occurs when a match id is unknown.
	ErrMatchNotFound = errors.New("match not found")
	// ErrRatingNotFound occurs when a (player, race) pair has no rating row.
	ErrRatingNotFound = errors.New("rating not found")
)

// RatingKey identifies a per-race rating row.
type RatingKey struct {
	UID  int64
	Race catalog.Race
}

// Store owns all runtime entities. All mutations serialize through a
// single mutex; reads return copies so callers never share memory with
// the store.
type Store struct {
	mu  sync.RWMutex
	log *writelog.Log

	players map[int64]*models.Player
	ratings map[RatingKey]*models.Mmr1v1
	matches map[int64]*models.Match1v1
	replays map[string]*models.Replay

	adminActions  []models.AdminAction
	playerActions []models.PlayerAction

	// ranks holds, per race, uids sorted by MMR descending.
	ranks map[catalog.Race][]int64

	nextMatchID int64
}

// New creates an empty store writing through the given log.
func New(wl *writelog.Log) *Store {
	s := &Store{
		log:     wl,
		players: make(map[int64]*models.Player),
		ratings: make(map[RatingKey]*models.Mmr1v1),
		matches: make(map[int64]*models.Match1v1),
		replays: make(map[string]*models.Replay),
		ranks:   make(map[catalog.Race][]int64),
	}
	for _, race := range catalog.Races() {
		s.ranks[race] = nil
	}
	s.nextMatchID = 1
	return s
}

// Load rebuilds the in-memory state from the main database. Must run
// after the write log has replayed its pending jobs.
func (s *Store) Load(db *gorm.DB) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var players []models.Player
	if err := db.Find(&players).Error; err != nil {
		return fmt.Errorf("failed to load players: %w", err)
	}
	for i := range players {
		p := players[i]
		s.players[p.DiscordUID] = &p
	}

	var ratings []models.Mmr1v1
	if err := db.Find(&ratings).Error; err != nil {
		return fmt.Errorf("failed to load ratings: %w", err)
	}
	for i := range ratings {
		r := ratings[i]
		if r.GamesWon+r.GamesLost+r.GamesDrawn != r.GamesPlayed {
			return fmt.Errorf("malformed rating row for player %d race %s: counters do not sum", r.DiscordUID, r.Race)
		}
		s.ratings[RatingKey{r.DiscordUID, catalog.Race(r.Race)}] = &r
		s.rankInsertLocked(catalog.Race(r.Race), r.DiscordUID)
	}

	var matches []models.Match1v1
	if err := db.Find(&matches).Error; err != nil {
		return fmt.Errorf("failed to load matches: %w", err)
	}
	for i := range matches {
		m := matches[i]
		s.matches[m.ID] = &m
		if m.ID >= s.nextMatchID {
			s.nextMatchID = m.ID + 1
		}
	}

	var replays []models.Replay
	if err := db.Find(&replays).Error; err != nil {
		return fmt.Errorf("failed to load replays: %w", err)
	}
	for i := range replays {
		r := replays[i]
		s.replays[r.Path] = &r
	}

	log.Printf("[STORE] loaded %d players, %d ratings, %d matches, %d replays (next match id %d)",
		len(s.players), len(s.ratings), len(s.matches), len(s.replays), s.nextMatchID)
	return nil
}

// Player returns a copy of the player row.
func (s *Store) Player(uid int64) (models.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[uid]
	if !ok {
		return models.Player{}, false
	}
	return *p, true
}

// Players returns copies of all player rows.
func (s *Store) Players() []models.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	return out
}

// CreatePlayer persists a new player and default rating rows for all
// six races.
func (s *Store) CreatePlayer(p models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.players[p.DiscordUID]; exists {
		return fmt.Errorf("player %d already exists", p.DiscordUID)
	}
	if p.RemainingAborts == 0 {
		p.RemainingAborts = models.DefaultRemainingAborts
	}
	if p.State == "" {
		p.State = models.StateIdle
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	if err := s.log.Append(writelog.JobCreatePlayer, writelog.PlayerPayload{Player: p}); err != nil {
		return err
	}
	s.players[p.DiscordUID] = &p

	for _, race := range catalog.Races() {
		r := models.Mmr1v1{DiscordUID: p.DiscordUID, Race: string(race), Mmr: models.DefaultMmr}
		if err := s.log.Append(writelog.JobUpdateMmr, writelog.MmrPayload{Rating: r}); err != nil {
			return err
		}
		s.ratings[RatingKey{p.DiscordUID, race}] = &r
		s.rankInsertLocked(race, p.DiscordUID)
	}
	return nil
}

// UpdatePlayerInfo upserts the whole player row (setup, country, tag,
// terms, ...). Lifecycle state is carried over from the stored row.
func (s *Store) UpdatePlayerInfo(p models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.players[p.DiscordUID]
	if !ok {
		return ErrPlayerNotFound
	}
	p.State = current.State
	p.RemainingAborts = current.RemainingAborts
	p.IsBanned = current.IsBanned
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	if err := s.log.Append(writelog.JobUpdatePlayerInfo, writelog.PlayerPayload{Player: p}); err != nil {
		return err
	}
	s.players[p.DiscordUID] = &p
	return nil
}

// SetPlayerState changes a player's lifecycle state.
func (s *Store) SetPlayerState(uid int64, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[uid]
	if !ok {
		return ErrPlayerNotFound
	}
	if err := s.log.Append(writelog.JobUpdatePlayerState, writelog.PlayerStatePayload{DiscordUID: uid, State: state}); err != nil {
		return err
	}
	p.State = state
	return nil
}

// SetBanned toggles the ban flag.
func (s *Store) SetBanned(uid int64, banned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[uid]
	if !ok {
		return ErrPlayerNotFound
	}
	if err := s.log.Append(writelog.JobUpdateIsBanned, writelog.IsBannedPayload{DiscordUID: uid, IsBanned: banned}); err != nil {
		return err
	}
	p.IsBanned = banned
	return nil
}

// SetShieldBatteryBug records the shield-battery warning acknowledgement.
func (s *Store) SetShieldBatteryBug(uid int64, acked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[uid]
	if !ok {
		return ErrPlayerNotFound
	}
	if err := s.log.Append(writelog.JobUpdateShieldBatteryBug, writelog.ShieldBatteryBugPayload{DiscordUID: uid, ShieldBatteryBug: acked}); err != nil {
		return err
	}
	p.ShieldBatteryBug = acked
	return nil
}

// SetRemainingAborts sets the abort credit to an absolute value.
func (s *Store) SetRemainingAborts(uid int64, aborts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[uid]
	if !ok {
		return ErrPlayerNotFound
	}
	if err := s.log.Append(writelog.JobUpdateRemainingAborts, writelog.RemainingAbortsPayload{DiscordUID: uid, RemainingAborts: aborts}); err != nil {
		return err
	}
	p.RemainingAborts = aborts
	return nil
}

// Rating returns a copy of the (player, race) rating row.
func (s *Store) Rating(uid int64, race catalog.Race) (models.Mmr1v1, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ratings[RatingKey{uid, race}]
	if !ok {
		return models.Mmr1v1{}, false
	}
	return *r, true
}

// Ratings returns copies of all rating rows for a player, in canonical
// race order.
func (s *Store) Ratings(uid int64) []models.Mmr1v1 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Mmr1v1
	for _, race := range catalog.Races() {
		if r, ok := s.ratings[RatingKey{uid, race}]; ok {
			out = append(out, *r)
		}
	}
	return out
}

// SetRating overwrites a rating row with absolute values and re-ranks.
func (s *Store) SetRating(r models.Mmr1v1) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setRatingLocked(r)
}

func (s *Store) setRatingLocked(r models.Mmr1v1) error {
	if r.GamesWon+r.GamesLost+r.GamesDrawn != r.GamesPlayed {
		return fmt.Errorf("rating counters do not sum for player %d race %s", r.DiscordUID, r.Race)
	}
	if err := s.log.Append(writelog.JobUpdateMmr, writelog.MmrPayload{Rating: r}); err != nil {
		return err
	}
	race := catalog.Race(r.Race)
	key := RatingKey{r.DiscordUID, race}
	if _, existed := s.ratings[key]; existed {
		s.rankRemoveLocked(race, r.DiscordUID)
	}
	s.ratings[key] = &r
	s.rankInsertLocked(race, r.DiscordUID)
	return nil
}
