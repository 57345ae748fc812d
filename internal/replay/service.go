package replay

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"ladder-platform/backend/internal/models"
	"ladder-platform/backend/internal/store"
)

// ErrNotParticipant occurs when a player uploads a replay for a match
// they did not play in.
var ErrNotParticipant = errors.New("player is not a participant of this match")

// Service ties the parser pool to the store: parse, verify, persist.
type Service struct {
	store *store.Store
	pool  *Pool
}

// NewService creates a replay ingestion service.
func NewService(st *store.Store, pool *Pool) *Service {
	return &Service{store: st, pool: pool}
}

// Ingest parses an uploaded replay artifact, verifies it against the
// match, stores the Replay entity and links it to the uploader's side.
// The artifact itself is already persisted; path is its reference URI.
func (s *Service) Ingest(ctx context.Context, matchID, uploaderUID int64, path string) (Metadata, Verification, error) {
	m, ok := s.store.Match(matchID)
	if !ok {
		return Metadata{}, Verification{}, store.ErrMatchNotFound
	}
	if !m.HasPlayer(uploaderUID) {
		return Metadata{}, Verification{}, ErrNotParticipant
	}
	p1, ok := s.store.Player(m.Player1DiscordUID)
	if !ok {
		return Metadata{}, Verification{}, store.ErrPlayerNotFound
	}
	p2, ok := s.store.Player(m.Player2DiscordUID)
	if !ok {
		return Metadata{}, Verification{}, store.ErrPlayerNotFound
	}

	meta, err := s.pool.Parse(ctx, path)
	if err != nil {
		return Metadata{}, Verification{}, err
	}

	slot := 1
	uploaderReport := m.Player1Report
	if m.Player2DiscordUID == uploaderUID {
		slot = 2
		uploaderReport = m.Player2Report
	}
	v := Verify(meta, m, p1, p2, uploaderReport)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return Metadata{}, Verification{}, err
	}
	if err := s.store.UpsertReplay(models.Replay{
		Path:         path,
		MetadataJSON: string(metaJSON),
		UploaderUID:  uploaderUID,
	}); err != nil {
		return Metadata{}, Verification{}, err
	}
	if err := s.store.SetMatchReplayPath(matchID, slot, path); err != nil {
		return Metadata{}, Verification{}, err
	}
	log.Printf("[REPLAY] match %d: player %d uploaded %s (clean=%v)", matchID, uploaderUID, path, v.Clean())
	return meta, v, nil
}
