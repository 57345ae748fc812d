package ladder

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ladder-platform/backend/internal/admin"
	"ladder-platform/backend/internal/catalog"
	"ladder-platform/backend/internal/match"
	"ladder-platform/backend/internal/models"
	"ladder-platform/backend/internal/notify"
	"ladder-platform/backend/internal/presence"
	"ladder-platform/backend/internal/queue"
	"ladder-platform/backend/internal/replay"
	"ladder-platform/backend/internal/store"
	"ladder-platform/backend/internal/validation"
)

// RouterNotifier adapts the notification router to the match manager:
// match lifecycle notices enter the low-priority queue, fire and
// forget.
type RouterNotifier struct {
	Router *notify.Router
}

func (n RouterNotifier) Notify(uid int64, noticeType string, payload interface{}) {
	n.Router.Enqueue(notify.Low, notify.Message{PlayerUID: uid, Type: noticeType, Payload: payload})
}

// Service is the typed command surface. All player- and
// admin-initiated operations enter here and come back as a success
// payload or a kinded *Error.
type Service struct {
	store    *store.Store
	queue    *queue.Engine
	matches  *match.Manager
	replays  *replay.Service
	admins   *admin.Service
	presence *presence.Tracker
}

// New wires the command facade and hooks the queue's pairing output
// into match creation.
func New(st *store.Store, q *queue.Engine, mg *match.Manager, rp *replay.Service, ad *admin.Service, pr *presence.Tracker) *Service {
	s := &Service{store: st, queue: q, matches: mg, replays: rp, admins: ad, presence: pr}
	q.SetOnPairsCallback(s.handlePairs)
	q.SetOnDequeueCallback(s.handleDequeue)
	return s
}

func (s *Service) handlePairs(pairs []queue.Pair) {
	for _, p := range pairs {
		if _, err := s.matches.CreateFromPair(p); err != nil {
			log.Printf("[LADDER] failed to create match for pair %d vs %d: %v", p.Lead.UID, p.Follow.UID, err)
			s.releasePair(p)
		}
	}
}

// releasePair returns both players of a failed pairing to idle. They
// were already committed out of the queue as matched, so without this
// they would stay queued with no entry and no match.
func (s *Service) releasePair(p queue.Pair) {
	for _, uid := range []int64{p.Lead.UID, p.Follow.UID} {
		pl, ok := s.store.Player(uid)
		if !ok || pl.State != models.StateQueued {
			continue
		}
		if err := s.store.SetPlayerState(uid, models.StateIdle); err != nil {
			log.Printf("[LADDER] failed to release player %d after pairing error: %v", uid, err)
		}
	}
}

func (s *Service) handleDequeue(uid int64, reason string) {
	if p, ok := s.store.Player(uid); ok && p.State == models.StateQueued {
		_ = s.store.SetPlayerState(uid, models.StateIdle)
	}
	s.logPlayerAction(uid, "dequeued", map[string]string{"reason": reason})
}

func (s *Service) logPlayerAction(uid int64, action string, details interface{}) {
	detailsJSON := "{}"
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			detailsJSON = string(raw)
		}
	}
	if err := s.store.LogPlayerAction(models.PlayerAction{
		DiscordUID:  uid,
		ActionType:  action,
		DetailsJSON: detailsJSON,
		PerformedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("[LADDER] failed to record player action %s for %d: %v", action, uid, err)
	}
}

// touch records activity for every command invocation; the command
// call audit rides along.
func (s *Service) touch(ctx context.Context, uid int64, command string) {
	s.presence.Touch(ctx, uid)
	if err := s.store.LogCommandCall(uid, command); err != nil {
		log.Printf("[LADDER] failed to record command call %s for %d: %v", command, uid, err)
	}
}

// ensurePlayer creates the bare player row on first interaction.
func (s *Service) ensurePlayer(uid int64, username string) (models.Player, error) {
	if p, ok := s.store.Player(uid); ok {
		return p, nil
	}
	p := models.Player{DiscordUID: uid, DiscordUsername: username, Region: catalog.DefaultRegion}
	if err := s.store.CreatePlayer(p); err != nil {
		return models.Player{}, wrapErr(err)
	}
	created, _ := s.store.Player(uid)
	return created, nil
}

// SetupRequest carries the player registration inputs.
type SetupRequest struct {
	DiscordUsername string `json:"discord_username"`
	PlayerName      string `json:"player_name"`
	Battletag       string `json:"battletag"`
	AltName1        string `json:"alt_name_1"`
	AltName2        string `json:"alt_name_2"`
	Country         string `json:"country"`
	Region          string `json:"region"`
}

// Setup creates or updates the caller's player profile and marks setup
// complete.
func (s *Service) Setup(ctx context.Context, uid int64, req SetupRequest) error {
	s.touch(ctx, uid, "setup")

	if err := validation.ValidatePlayerName(req.PlayerName); err != nil {
		return newError(KindValidation, err, err.Error())
	}
	if req.Battletag != "" {
		if err := validation.ValidateBattletag(req.Battletag); err != nil {
			return newError(KindValidation, err, err.Error())
		}
	}
	for _, alt := range []string{req.AltName1, req.AltName2} {
		if alt == "" {
			continue
		}
		if err := validation.ValidateAltName(alt); err != nil {
			return newError(KindValidation, err, err.Error())
		}
	}
	if err := validation.ValidateCountry(req.Country); err != nil {
		return newError(KindValidation, err, err.Error())
	}
	if req.Region == "" {
		req.Region = catalog.DefaultRegion
	}
	if err := validation.ValidateRegion(req.Region); err != nil {
		return newError(KindValidation, err, err.Error())
	}

	p, err := s.ensurePlayer(uid, req.DiscordUsername)
	if err != nil {
		return err
	}
	p.DiscordUsername = req.DiscordUsername
	p.PlayerName = req.PlayerName
	p.Battletag = req.Battletag
	p.AltName1 = req.AltName1
	p.AltName2 = req.AltName2
	p.Country = req.Country
	p.Region = req.Region
	p.CompletedSetup = true
	if err := s.store.UpdatePlayerInfo(p); err != nil {
		return wrapErr(err)
	}
	s.logPlayerAction(uid, "setup", nil)
	return nil
}

// SetCountry updates only the caller's country.
func (s *Service) SetCountry(ctx context.Context, uid int64, country string) error {
	s.touch(ctx, uid, "setcountry")
	if err := validation.ValidateCountry(country); err != nil {
		return newError(KindValidation, err, err.Error())
	}
	p, ok := s.store.Player(uid)
	if !ok {
		return wrapErr(store.ErrPlayerNotFound)
	}
	p.Country = country
	return wrapErr(s.store.UpdatePlayerInfo(p))
}

// AcceptTerms records the caller's agreement to the ladder terms.
func (s *Service) AcceptTerms(ctx context.Context, uid int64) error {
	s.touch(ctx, uid, "accept_terms")
	return s.setTerms(uid, true)
}

// DeclineTerms withdraws the caller's agreement.
func (s *Service) DeclineTerms(ctx context.Context, uid int64) error {
	s.touch(ctx, uid, "decline_terms")
	return s.setTerms(uid, false)
}

func (s *Service) setTerms(uid int64, accepted bool) error {
	p, err := s.ensurePlayer(uid, "")
	if err != nil {
		return err
	}
	p.AcceptedTOS = accepted
	return wrapErr(s.store.UpdatePlayerInfo(p))
}

// AckShieldBatteryBug records that the player has seen the
// ShieldBattery reporting caveat.
func (s *Service) AckShieldBatteryBug(ctx context.Context, uid int64) error {
	s.touch(ctx, uid, "ack_shield_battery_bug")
	return wrapErr(s.store.SetShieldBatteryBug(uid, true))
}

// Queue enqueues the caller with their selected races.
func (s *Service) Queue(ctx context.Context, uid int64, races []string) error {
	s.touch(ctx, uid, "queue")

	selected, err := validation.ValidateRaceSelection(races)
	if err != nil {
		return newError(KindValidation, err, err.Error())
	}
	p, ok := s.store.Player(uid)
	if !ok {
		return wrapErr(store.ErrPlayerNotFound)
	}
	switch {
	case p.IsBanned:
		return newError(KindAuth, nil, "you are banned from the ladder")
	case !p.CompletedSetup:
		return newError(KindState, nil, "complete setup before queueing")
	case !p.AcceptedTOS:
		return newError(KindState, nil, "accept the terms before queueing")
	}
	if _, live := s.store.LiveMatchOf(uid); live {
		return newError(KindState, nil, "you are in a live match")
	}

	ratings := make(map[catalog.Race]int, len(selected))
	for _, race := range selected {
		r, ok := s.store.Rating(uid, race)
		if !ok {
			return wrapErr(store.ErrRatingNotFound)
		}
		ratings[race] = r.Mmr
	}
	if err := s.queue.Add(uid, selected, ratings); err != nil {
		return wrapErr(err)
	}
	if err := s.store.SetPlayerState(uid, models.StateQueued); err != nil {
		return wrapErr(err)
	}
	s.logPlayerAction(uid, "queued", map[string]interface{}{"races": races})
	return nil
}

// Dequeue removes the caller from the queue.
func (s *Service) Dequeue(ctx context.Context, uid int64) error {
	s.touch(ctx, uid, "dequeue")
	if !s.queue.Remove(uid, queue.RemoveCancelled) {
		return newError(KindState, nil, "you are not in the queue")
	}
	return nil
}

// ReportResult records the caller's result claim for a match. outcome
// is one of win, loss, draw, abort.
func (s *Service) ReportResult(ctx context.Context, uid, matchID int64, outcome string) error {
	s.touch(ctx, uid, "report_result")

	var o match.Outcome
	switch outcome {
	case "win":
		o = match.OutcomeWin
	case "loss":
		o = match.OutcomeLoss
	case "draw":
		o = match.OutcomeDraw
	case "abort":
		o = match.OutcomeAbort
	default:
		return newError(KindValidation, match.ErrInvalidOutcome, "outcome must be win, loss, draw or abort")
	}
	if err := s.matches.Report(matchID, uid, o); err != nil {
		return wrapErr(err)
	}
	s.logPlayerAction(uid, "reported", map[string]interface{}{"match_id": matchID, "outcome": outcome})
	return nil
}

// UploadReplay ingests a replay artifact for the caller's match. The
// verification result reports field mismatches without rejecting.
func (s *Service) UploadReplay(ctx context.Context, uid, matchID int64, path string) (replay.Metadata, replay.Verification, error) {
	s.touch(ctx, uid, "upload_replay")
	meta, v, err := s.replays.Ingest(ctx, matchID, uid, path)
	if err != nil {
		return replay.Metadata{}, replay.Verification{}, wrapErr(err)
	}
	s.logPlayerAction(uid, "uploaded_replay", map[string]interface{}{"match_id": matchID, "path": path})
	return meta, v, nil
}
