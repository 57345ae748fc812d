package writelog

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ladder-platform/backend/internal/models"
)

// recordingApplier remembers the order jobs were applied in.
type recordingApplier struct {
	mu      sync.Mutex
	applied []string
	failFor map[string]error
}

func (r *recordingApplier) Apply(job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failFor[job.JobType]; ok {
		return err
	}
	r.applied = append(r.applied, job.JobType)
	return nil
}

func openTestLog(t *testing.T) *Log {
	l, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func openMainDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?mode=memory"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Player{}, &models.Mmr1v1{}, &models.Match1v1{},
		&models.Replay{}, &models.AdminAction{}, &models.PlayerAction{}, &models.CommandCall{},
	))
	return db
}

func TestAppendAndReplayOrder(t *testing.T) {
	l := openTestLog(t)

	require.NoError(t, l.Append(JobCreatePlayer, PlayerPayload{}))
	require.NoError(t, l.Append(JobUpdateMmr, MmrPayload{}))
	require.NoError(t, l.Append(JobCreateMatch, MatchPayload{}))

	count, err := l.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	applier := &recordingApplier{}
	replayed, err := l.ReplayPending(applier)
	require.NoError(t, err)
	assert.Equal(t, 3, replayed)
	assert.Equal(t, []string{JobCreatePlayer, JobUpdateMmr, JobCreateMatch}, applier.applied)

	count, err = l.PendingCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAppendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "write_log.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(JobUpdateIsBanned, IsBannedPayload{DiscordUID: 7, IsBanned: true}))
	require.NoError(t, l.Close())

	// Simulated restart: pending jobs must still be there.
	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()

	count, err := l2.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	applier := &recordingApplier{}
	replayed, err := l2.ReplayPending(applier)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)
}

func TestExhaustedRetriesMarkFailed(t *testing.T) {
	l := openTestLog(t)
	require.NoError(t, l.Append(JobUpdateIsBanned, IsBannedPayload{DiscordUID: 1}))

	applier := &recordingApplier{failFor: map[string]error{
		JobUpdateIsBanned: errors.New("db unreachable"),
	}}

	// ReplayPending shares the retry path with the drain worker.
	start := time.Now()
	_, err := l.ReplayPending(applier)
	require.NoError(t, err)
	// Two backoffs between three attempts.
	assert.GreaterOrEqual(t, time.Since(start), 2*retryBackoff)

	failed, err := l.FailedCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), failed)

	pending, err := l.PendingCount()
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRunDrainsAppendedJobs(t *testing.T) {
	l := openTestLog(t)
	applier := &recordingApplier{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx, applier)

	require.NoError(t, l.Append(JobLogCommandCall, CommandCallPayload{}))
	require.NoError(t, l.Append(JobLogPlayerAction, PlayerActionPayload{}))

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer drainCancel()
	require.NoError(t, l.Drain(drainCtx))

	applier.mu.Lock()
	defer applier.mu.Unlock()
	assert.Equal(t, []string{JobLogCommandCall, JobLogPlayerAction}, applier.applied)
}

func TestAppendAfterCloseFails(t *testing.T) {
	l, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Append(JobCreatePlayer, PlayerPayload{}), ErrClosed)
}

func TestDBApplierIdempotent(t *testing.T) {
	mainDB := openMainDB(t)
	applier := NewDBApplier(mainDB)

	player := models.Player{DiscordUID: 42, PlayerName: "flash", Country: "kr", Region: "kr"}
	job := &Job{ID: 1, JobType: JobCreatePlayer}
	data := mustMarshal(t, PlayerPayload{Player: player})
	job.DataJSON = data

	require.NoError(t, applier.Apply(job))
	require.NoError(t, applier.Apply(job)) // replay must not error or duplicate

	var count int64
	mainDB.Model(&models.Player{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestDBApplierMatchReportSlots(t *testing.T) {
	mainDB := openMainDB(t)
	applier := NewDBApplier(mainDB)

	match := models.Match1v1{ID: 9, Player1DiscordUID: 1, Player2DiscordUID: 2,
		Player1Race: "bw_terran", Player2Race: "sc2_zerg",
		MapPlayed: "eclipse", ServerUsed: "na", Player1Mmr: 1500, Player2Mmr: 1500}
	require.NoError(t, applier.Apply(&Job{ID: 1, JobType: JobCreateMatch,
		DataJSON: mustMarshal(t, MatchPayload{Match: match})}))

	report := models.ReportPlayer1Win
	require.NoError(t, applier.Apply(&Job{ID: 2, JobType: JobUpdateMatchReport,
		DataJSON: mustMarshal(t, MatchReportPayload{MatchID: 9, Slot: 1, Report: &report, UpdatedAt: time.Now().UTC()})}))

	var got models.Match1v1
	require.NoError(t, mainDB.First(&got, "id = ?", 9).Error)
	require.NotNil(t, got.Player1Report)
	assert.Equal(t, models.ReportPlayer1Win, *got.Player1Report)
	assert.Nil(t, got.Player2Report)
}

func TestDBApplierAuditDedupe(t *testing.T) {
	mainDB := openMainDB(t)
	applier := NewDBApplier(mainDB)

	job := &Job{ID: 77, JobType: JobLogAdminAction, DataJSON: mustMarshal(t, AdminActionPayload{
		Action: models.AdminAction{AdminDiscordUID: 5, ActionType: "resolve_match", PerformedAt: time.Now().UTC()},
	})}

	require.NoError(t, applier.Apply(job))
	require.NoError(t, applier.Apply(job))

	var count int64
	mainDB.Model(&models.AdminAction{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func mustMarshal(t *testing.T, payload interface{}) string {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}
