package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ladder-platform/backend/internal/catalog"
	"ladder-platform/backend/internal/db"
	"ladder-platform/backend/internal/models"
	"ladder-platform/backend/internal/writelog"
)

func newTestStore(t *testing.T) (*Store, *writelog.Log) {
	wl, err := writelog.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { wl.Close() })
	return New(wl), wl
}

func openMainDB(t *testing.T) *gorm.DB {
	gormDB, err := gorm.Open(sqlite.Open("file::memory:?mode=memory"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

func testPlayer(uid int64, name string) models.Player {
	return models.Player{
		DiscordUID:     uid,
		PlayerName:     name,
		Country:        "kr",
		Region:         "kr",
		AcceptedTOS:    true,
		CompletedSetup: true,
	}
}

func TestCreatePlayerSeedsRatings(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.CreatePlayer(testPlayer(1, "flash")))

	p, ok := s.Player(1)
	require.True(t, ok)
	assert.Equal(t, models.DefaultRemainingAborts, p.RemainingAborts)
	assert.Equal(t, models.StateIdle, p.State)

	for _, race := range catalog.Races() {
		r, ok := s.Rating(1, race)
		require.True(t, ok, "race %s", race)
		assert.Equal(t, models.DefaultMmr, r.Mmr)
		assert.Zero(t, r.GamesPlayed)
	}

	assert.Error(t, s.CreatePlayer(testPlayer(1, "flash")), "duplicate uid must be rejected")
}

func TestSetRatingRejectsBrokenCounters(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.CreatePlayer(testPlayer(1, "flash")))

	bad := models.Mmr1v1{DiscordUID: 1, Race: string(catalog.BWTerran), Mmr: 1520,
		GamesPlayed: 2, GamesWon: 1, GamesLost: 0, GamesDrawn: 0}
	assert.Error(t, s.SetRating(bad))
}

func TestLeaderboardOrdering(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.CreatePlayer(testPlayer(1, "flash")))
	require.NoError(t, s.CreatePlayer(testPlayer(2, "bisu")))
	require.NoError(t, s.CreatePlayer(testPlayer(3, "jaedong")))

	set := func(uid int64, mmr int) {
		require.NoError(t, s.SetRating(models.Mmr1v1{
			DiscordUID: uid, Race: string(catalog.BWZerg), Mmr: mmr,
			GamesPlayed: 1, GamesWon: 1,
		}))
	}
	set(1, 1480)
	set(2, 1610)
	set(3, 1550)

	board := s.Leaderboard(catalog.BWZerg, 0)
	require.Len(t, board, 3)
	assert.Equal(t, int64(2), board[0].DiscordUID)
	assert.Equal(t, int64(3), board[1].DiscordUID)
	assert.Equal(t, int64(1), board[2].DiscordUID)

	assert.Equal(t, 1, s.RankOf(2, catalog.BWZerg))
	assert.Equal(t, 3, s.RankOf(1, catalog.BWZerg))

	top := s.Leaderboard(catalog.BWZerg, 2)
	assert.Len(t, top, 2)
}

func TestMatchIDsMonotonic(t *testing.T) {
	s, _ := newTestStore(t)
	m1, err := s.CreateMatch(models.Match1v1{Player1DiscordUID: 1, Player2DiscordUID: 2})
	require.NoError(t, err)
	m2, err := s.CreateMatch(models.Match1v1{Player1DiscordUID: 3, Player2DiscordUID: 4})
	require.NoError(t, err)
	assert.Equal(t, m1.ID+1, m2.ID)
}

func TestFrozenSnapshotUnchangedByResult(t *testing.T) {
	s, _ := newTestStore(t)
	m, err := s.CreateMatch(models.Match1v1{
		Player1DiscordUID: 1, Player2DiscordUID: 2,
		Player1Mmr: 1500, Player2Mmr: 1480,
	})
	require.NoError(t, err)

	require.NoError(t, s.SetMatchResult(m.ID, models.MatchResultPlayer1Win, 20))

	got, ok := s.Match(m.ID)
	require.True(t, ok)
	assert.Equal(t, 1500, got.Player1Mmr)
	assert.Equal(t, 1480, got.Player2Mmr)
	require.NotNil(t, got.MatchResult)
	assert.Equal(t, models.MatchResultPlayer1Win, *got.MatchResult)
}

func TestMutationRejectedWhenLogClosed(t *testing.T) {
	s, wl := newTestStore(t)
	require.NoError(t, s.CreatePlayer(testPlayer(1, "flash")))
	require.NoError(t, wl.Close())

	// Memory must not change when the append fails.
	assert.Error(t, s.SetBanned(1, true))
	p, _ := s.Player(1)
	assert.False(t, p.IsBanned)
}

func TestRestartRecovery(t *testing.T) {
	// Scenario: a report is accepted and logged, but the process dies
	// before the drain worker commits it to the main database.
	mainDB := openMainDB(t)

	wl, err := writelog.Open(":memory:")
	require.NoError(t, err)
	defer wl.Close()

	s := New(wl)
	require.NoError(t, s.CreatePlayer(testPlayer(1, "flash")))
	require.NoError(t, s.CreatePlayer(testPlayer(2, "serral")))
	m, err := s.CreateMatch(models.Match1v1{
		Player1DiscordUID: 1, Player2DiscordUID: 2,
		Player1Race: string(catalog.BWTerran), Player2Race: string(catalog.SC2Zerg),
		MapPlayed: "eclipse", ServerUsed: "na", Player1Mmr: 1500, Player2Mmr: 1500,
	})
	require.NoError(t, err)
	report := models.ReportPlayer1Win
	require.NoError(t, s.SetMatchReport(m.ID, 1, &report))

	// "Restart": replay pending jobs into the DB, then load a fresh store.
	_, err = wl.ReplayPending(writelog.NewDBApplier(mainDB))
	require.NoError(t, err)

	recovered := New(wl)
	require.NoError(t, recovered.Load(mainDB))

	got, ok := recovered.Match(m.ID)
	require.True(t, ok)
	require.NotNil(t, got.Player1Report)
	assert.Equal(t, models.ReportPlayer1Win, *got.Player1Report)
	assert.Nil(t, got.Player2Report)
	assert.False(t, got.IsTerminal())

	// Match id allocation continues after the recovered maximum.
	next, err := recovered.CreateMatch(models.Match1v1{Player1DiscordUID: 1, Player2DiscordUID: 2})
	require.NoError(t, err)
	assert.Equal(t, m.ID+1, next.ID)
}

func TestActivePopulation(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.CreatePlayer(testPlayer(1, "flash")))
	require.NoError(t, s.CreatePlayer(testPlayer(2, "bisu")))

	now := time.Now().UTC()
	old := now.Add(-90 * 24 * time.Hour)
	require.NoError(t, s.SetRating(models.Mmr1v1{
		DiscordUID: 1, Race: string(catalog.BWTerran), Mmr: 1520,
		GamesPlayed: 1, GamesWon: 1, LastPlayed: &now,
	}))
	require.NoError(t, s.SetRating(models.Mmr1v1{
		DiscordUID: 2, Race: string(catalog.BWProtoss), Mmr: 1480,
		GamesPlayed: 1, GamesLost: 1, LastPlayed: &old,
	}))

	assert.Equal(t, 1, s.ActivePopulation(now.Add(-30*24*time.Hour)))
	assert.Equal(t, 2, s.ActivePopulation(now.Add(-365*24*time.Hour)))
}

func TestLiveMatchOf(t *testing.T) {
	s, _ := newTestStore(t)
	m, err := s.CreateMatch(models.Match1v1{Player1DiscordUID: 1, Player2DiscordUID: 2})
	require.NoError(t, err)

	_, live := s.LiveMatchOf(1)
	assert.True(t, live)
	_, live = s.LiveMatchOf(3)
	assert.False(t, live)

	require.NoError(t, s.SetMatchResult(m.ID, models.MatchResultInvalidated, 0))
	_, live = s.LiveMatchOf(1)
	assert.False(t, live)
}
