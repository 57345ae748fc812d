package admin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-platform/backend/internal/catalog"
	"ladder-platform/backend/internal/match"
	"ladder-platform/backend/internal/models"
	"ladder-platform/backend/internal/queue"
	"ladder-platform/backend/internal/store"
	"ladder-platform/backend/internal/writelog"
)

const (
	adminUID = 100
	ownerUID = 200
)

type fixture struct {
	store   *store.Store
	queue   *queue.Engine
	matches *match.Manager
	service *Service
}

func writeAllowlist(t *testing.T, entries []AllowlistEntry) string {
	t.Helper()
	raw, err := json.Marshal(entries)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "allowlist.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	wl, err := writelog.Open(filepath.Join(t.TempDir(), "writelog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { wl.Close() })

	st := store.New(wl)
	require.NoError(t, st.CreatePlayer(models.Player{DiscordUID: 1, PlayerName: "Flash", Region: catalog.RegionKR}))
	require.NoError(t, st.CreatePlayer(models.Player{DiscordUID: 2, PlayerName: "Serral", Region: catalog.RegionEU}))

	q := queue.New(queue.ProfileBalanced, time.Second, func() int { return 10 })
	mg := match.NewManager(st, nil, 30*time.Minute)
	t.Cleanup(mg.Stop)

	allow, err := LoadAllowlist(writeAllowlist(t, []AllowlistEntry{
		{DiscordID: adminUID, Name: "ref", Role: RoleAdmin},
		{DiscordID: ownerUID, Name: "boss", Role: RoleOwner},
	}))
	require.NoError(t, err)

	return &fixture{
		store:   st,
		queue:   q,
		matches: mg,
		service: NewService(st, mg, q, allow),
	}
}

// playCleanMatch reproduces a full organic completion: both fresh
// 1500-MMR players, player 1 wins, delta 20.
func playCleanMatch(t *testing.T, f *fixture) models.Match1v1 {
	t.Helper()
	m, err := f.matches.CreateFromPair(queue.Pair{
		Lead: &queue.Entry{UID: 1}, Follow: &queue.Entry{UID: 2},
		LeadIsBW: true, LeadRace: catalog.BWTerran, FollowRace: catalog.SC2Zerg,
		LeadMmr: 1500, FollowMmr: 1500,
	})
	require.NoError(t, err)
	require.NoError(t, f.matches.Report(m.ID, 1, match.OutcomeWin))
	require.NoError(t, f.matches.Report(m.ID, 2, match.OutcomeLoss))
	return m
}

func mmrOf(t *testing.T, f *fixture, uid int64, race catalog.Race) int {
	t.Helper()
	r, ok := f.store.Rating(uid, race)
	require.True(t, ok)
	return r.Mmr
}

func TestResolveRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	err := f.service.Resolve(1, 1, models.MatchResultPlayer1Win, "")
	assert.ErrorIs(t, err, ErrNotAdmin)
}

func TestReResolutionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	m := playCleanMatch(t, f)
	require.Equal(t, 1520, mmrOf(t, f, 1, catalog.BWTerran))

	// Flip the result: replay showed player 2 actually won.
	require.NoError(t, f.service.Resolve(adminUID, m.ID, models.MatchResultPlayer2Win, "replay shows otherwise"))
	assert.Equal(t, 1480, mmrOf(t, f, 1, catalog.BWTerran))
	assert.Equal(t, 1520, mmrOf(t, f, 2, catalog.SC2Zerg))

	got, _ := f.store.Match(m.ID)
	assert.Equal(t, -20, *got.MmrChange)
	// The players' original claims survive re-resolution.
	require.NotNil(t, got.Player1Report)
	assert.Equal(t, 1, *got.Player1Report)
	assert.Equal(t, 1, *got.Player2Report)

	// Flip back: final state must equal the organic outcome exactly.
	require.NoError(t, f.service.Resolve(adminUID, m.ID, models.MatchResultPlayer1Win, "second thoughts"))
	assert.Equal(t, 1520, mmrOf(t, f, 1, catalog.BWTerran))
	assert.Equal(t, 1480, mmrOf(t, f, 2, catalog.SC2Zerg))

	// Resolving with the same result again changes nothing.
	require.NoError(t, f.service.Resolve(adminUID, m.ID, models.MatchResultPlayer1Win, "again"))
	assert.Equal(t, 1520, mmrOf(t, f, 1, catalog.BWTerran))
	assert.Equal(t, 1480, mmrOf(t, f, 2, catalog.SC2Zerg))

	// Game counters are frozen through all of it.
	r1, _ := f.store.Rating(1, catalog.BWTerran)
	assert.Equal(t, 1, r1.GamesPlayed)
	assert.Equal(t, 1, r1.GamesWon)

	// One resolve call, one audit row.
	assert.Len(t, f.store.AdminActions(), 3)
}

func TestReResolveTerminalToInvalidated(t *testing.T) {
	f := newFixture(t)
	m := playCleanMatch(t, f)

	require.NoError(t, f.service.Resolve(adminUID, m.ID, models.MatchResultInvalidated, "wrong pairing"))
	assert.Equal(t, 1500, mmrOf(t, f, 1, catalog.BWTerran))
	assert.Equal(t, 1500, mmrOf(t, f, 2, catalog.SC2Zerg))

	got, _ := f.store.Match(m.ID)
	assert.Equal(t, models.MatchResultInvalidated, *got.MatchResult)
	assert.Equal(t, 0, *got.MmrChange)
	// Counters stay: the match was played, only its rating effect is gone.
	r1, _ := f.store.Rating(1, catalog.BWTerran)
	assert.Equal(t, 1, r1.GamesPlayed)
}

func TestResolveConflictDrivesNormalFlow(t *testing.T) {
	f := newFixture(t)
	m, err := f.matches.CreateFromPair(queue.Pair{
		Lead: &queue.Entry{UID: 1}, Follow: &queue.Entry{UID: 2},
		LeadIsBW: true, LeadRace: catalog.BWTerran, FollowRace: catalog.SC2Zerg,
		LeadMmr: 1500, FollowMmr: 1500,
	})
	require.NoError(t, err)
	require.NoError(t, f.matches.Report(m.ID, 1, match.OutcomeWin))
	require.NoError(t, f.matches.Report(m.ID, 2, match.OutcomeWin))

	got, _ := f.store.Match(m.ID)
	require.Equal(t, models.MatchResultConflict, *got.MatchResult)

	require.NoError(t, f.service.Resolve(adminUID, m.ID, models.MatchResultDraw, "both played well"))

	got, _ = f.store.Match(m.ID)
	assert.Equal(t, models.MatchResultDraw, *got.MatchResult)
	// Equal MMRs: draw moves nothing, but counters increment because
	// a conflicted match resolves through the normal flow.
	assert.Equal(t, 0, *got.MmrChange)
	r1, _ := f.store.Rating(1, catalog.BWTerran)
	assert.Equal(t, 1, r1.GamesPlayed)
	assert.Equal(t, 1, r1.GamesDrawn)
	// The conflicting claims remain on record.
	assert.Equal(t, 1, *got.Player1Report)
	assert.Equal(t, 2, *got.Player2Report)
}

func TestResolveFreshMatchNonTerminalInvalidation(t *testing.T) {
	f := newFixture(t)
	m, err := f.matches.CreateFromPair(queue.Pair{
		Lead: &queue.Entry{UID: 1}, Follow: &queue.Entry{UID: 2},
		LeadIsBW: true, LeadRace: catalog.BWTerran, FollowRace: catalog.SC2Zerg,
		LeadMmr: 1500, FollowMmr: 1500,
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Resolve(adminUID, m.ID, models.MatchResultInvalidated, "server issues"))

	got, _ := f.store.Match(m.ID)
	assert.Equal(t, models.MatchResultInvalidated, *got.MatchResult)
	assert.Nil(t, got.Player1Report)
	assert.Nil(t, got.Player2Report)
	// No abort credits were spent.
	p1, _ := f.store.Player(1)
	assert.Equal(t, models.DefaultRemainingAborts, p1.RemainingAborts)
	r1, _ := f.store.Rating(1, catalog.BWTerran)
	assert.Equal(t, 0, r1.GamesPlayed)
}

func TestResolveRejectsBadResult(t *testing.T) {
	f := newFixture(t)
	m := playCleanMatch(t, f)
	assert.ErrorIs(t, f.service.Resolve(adminUID, m.ID, -2, ""), ErrBadResolution)
	assert.ErrorIs(t, f.service.Resolve(adminUID, 999, 1, ""), store.ErrMatchNotFound)
}

func TestAdjustMMR(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.service.AdjustMMR(adminUID, 1, catalog.BWTerran, AdjustSet, 1800, "seed rating"))
	assert.Equal(t, 1800, mmrOf(t, f, 1, catalog.BWTerran))

	require.NoError(t, f.service.AdjustMMR(adminUID, 1, catalog.BWTerran, AdjustAdd, 50, ""))
	assert.Equal(t, 1850, mmrOf(t, f, 1, catalog.BWTerran))

	require.NoError(t, f.service.AdjustMMR(adminUID, 1, catalog.BWTerran, AdjustSubtract, 100, ""))
	assert.Equal(t, 1750, mmrOf(t, f, 1, catalog.BWTerran))

	// Counters are untouched by adjustments.
	r, _ := f.store.Rating(1, catalog.BWTerran)
	assert.Equal(t, 0, r.GamesPlayed)

	assert.ErrorIs(t, f.service.AdjustMMR(adminUID, 1, catalog.BWTerran, AdjustSubtract, 9999, ""), ErrNegativeValue)
	assert.Equal(t, 1750, mmrOf(t, f, 1, catalog.BWTerran))
	assert.ErrorIs(t, f.service.AdjustMMR(1, 2, catalog.BWTerran, AdjustSet, 1500, ""), ErrNotAdmin)
}

func TestQueueInterventions(t *testing.T) {
	f := newFixture(t)
	ratings := map[catalog.Race]int{catalog.BWTerran: 1500}
	require.NoError(t, f.queue.Add(1, []catalog.Race{catalog.BWTerran}, ratings))
	require.NoError(t, f.queue.Add(2, []catalog.Race{catalog.BWTerran}, ratings))
	require.NoError(t, f.store.SetPlayerState(1, models.StateQueued))
	require.NoError(t, f.store.SetPlayerState(2, models.StateQueued))

	require.NoError(t, f.service.RemoveFromQueue(adminUID, 1, "afk"))
	assert.False(t, f.queue.IsQueued(1))
	p1, _ := f.store.Player(1)
	assert.Equal(t, models.StateIdle, p1.State)
	assert.ErrorIs(t, f.service.RemoveFromQueue(adminUID, 1, "afk"), ErrNotQueued)

	removed, err := f.service.ClearQueue(adminUID, "maintenance")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, f.queue.Size())
	p2, _ := f.store.Player(2)
	assert.Equal(t, models.StateIdle, p2.State)
}

func TestResetAbortsAndToggleBan(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.service.ResetAborts(adminUID, 1, 5, "goodwill"))
	p1, _ := f.store.Player(1)
	assert.Equal(t, 5, p1.RemainingAborts)
	assert.ErrorIs(t, f.service.ResetAborts(adminUID, 1, -1, ""), ErrNegativeValue)

	require.NoError(t, f.queue.Add(1, []catalog.Race{catalog.BWTerran}, map[catalog.Race]int{catalog.BWTerran: 1500}))
	banned, err := f.service.ToggleBan(adminUID, 1, "smurfing")
	require.NoError(t, err)
	assert.True(t, banned)
	// Banning kicks the player out of the queue.
	assert.False(t, f.queue.IsQueued(1))

	banned, err = f.service.ToggleBan(adminUID, 1, "appeal accepted")
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestUnblock(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SetPlayerState(1, models.StateMatched))

	require.NoError(t, f.service.Unblock(adminUID, 1, "stuck after crash"))
	p1, _ := f.store.Player(1)
	assert.Equal(t, models.StateIdle, p1.State)
}

func TestToggleAdminOwnerOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ToggleAdmin(adminUID, 1, "Flash")
	assert.ErrorIs(t, err, ErrNotOwner)

	isAdmin, err := f.service.ToggleAdmin(ownerUID, 1, "Flash")
	require.NoError(t, err)
	assert.True(t, isAdmin)
	assert.True(t, f.service.Allowlist().IsAdmin(1))

	isAdmin, err = f.service.ToggleAdmin(ownerUID, 1, "Flash")
	require.NoError(t, err)
	assert.False(t, isAdmin)

	// Owners cannot demote themselves through toggle.
	_, err = f.service.ToggleAdmin(ownerUID, ownerUID, "boss")
	assert.Error(t, err)
	assert.True(t, f.service.Allowlist().IsOwner(ownerUID))
}

func TestAllowlistRoundTrip(t *testing.T) {
	path := writeAllowlist(t, []AllowlistEntry{{DiscordID: 7, Name: "x", Role: RoleAdmin}})
	allow, err := LoadAllowlist(path)
	require.NoError(t, err)
	require.True(t, allow.IsAdmin(7))

	// Toggling persists to disk.
	_, err = allow.Toggle(8, "y")
	require.NoError(t, err)
	reloaded, err := LoadAllowlist(path)
	require.NoError(t, err)
	assert.True(t, reloaded.IsAdmin(8))

	// Missing file starts empty.
	empty, err := LoadAllowlist(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.False(t, empty.IsAdmin(7))
}
