// Package writelog implements the durable write-behind log that
// decouples in-memory state mutation from main-database commits. Jobs
// are appended synchronously to a local SQLite store and drained to
// the SQL database by a single FIFO worker. Pending jobs survive a
// restart and are re-applied before the engine serves requests.
package writelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Job statuses.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Job types. Each type's database action must be idempotent under
// replay.
const (
	JobCreatePlayer            = "create_player"
	JobUpdatePlayerInfo        = "update_player_info"
	JobUpdatePlayerState       = "update_player_state"
	JobUpdateMmr               = "update_mmr"
	JobCreateMatch             = "create_match"
	JobUpdateMatchReport       = "update_match_report"
	JobUpdateMatchResultAndMmr = "update_match_result_and_mmr_change"
	JobUpdateMatchReplayPath   = "update_match_replay_path"
	JobAdminResolveMatch       = "admin_resolve_match"
	JobUpsertReplay            = "upsert_replay"
	JobUpdateRemainingAborts   = "update_remaining_aborts"
	JobUpdateIsBanned          = "update_is_banned"
	JobUpdateShieldBatteryBug  = "update_shield_battery_bug"
	JobLogAdminAction          = "log_admin_action"
	JobLogPlayerAction         = "log_player_action"
	JobLogCommandCall          = "log_command_call"
)

// maxAttempts bounds per-job retries before a job is marked FAILED.
const maxAttempts = 3

// retryBackoff is the delay between attempts for the same job.
const retryBackoff = 2 * time.Second

// ErrClosed is returned by Append after the log has been closed.
var ErrClosed = errors.New("write log is closed")

// Job is one persisted write-behind record.
type Job struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	JobType     string     `gorm:"column:job_type;type:varchar(48);not null;index:idx_job_type" json:"job_type"`
	DataJSON    string     `gorm:"column:data_json;not null" json:"data_json"`
	Status      string     `gorm:"column:status;type:varchar(12);default:PENDING;index:idx_status" json:"status"`
	Attempts    int        `gorm:"column:attempts;default:0" json:"attempts"`
	LastError   string     `gorm:"column:last_error" json:"last_error"`
	EnqueuedAt  time.Time  `gorm:"column:enqueued_at;autoCreateTime" json:"enqueued_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

// TableName specifies the table name for Job model
func (Job) TableName() string {
	return "write_log"
}

// Applier applies one job to the main database. Implementations must
// be idempotent per job type.
type Applier interface {
	Apply(job *Job) error
}

// Log is the durable append-only job queue.
type Log struct {
	db     *gorm.DB
	mu     sync.Mutex
	closed bool
	wake   chan struct{}
}

// Open opens (or creates) the write log at path. Pass ":memory:" for
// an ephemeral log in tests. The path is intended to live on a durable
// mounted volume in production.
func Open(path string) (*Log, error) {
	gormDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open write log at %s: %w", path, err)
	}
	if err := gormDB.AutoMigrate(&Job{}); err != nil {
		return nil, fmt.Errorf("failed to migrate write log: %w", err)
	}

	// Appends must not interleave; a single connection keeps SQLite
	// writes strictly ordered.
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return &Log{
		db:   gormDB,
		wake: make(chan struct{}, 1),
	}, nil
}

// Append synchronously persists a job. The call returns only once the
// job is safely on disk; callers may mutate in-memory state afterwards.
func (l *Log) Append(jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", jobType, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	job := Job{
		JobType:  jobType,
		DataJSON: string(data),
		Status:   StatusPending,
	}
	if err := l.db.Create(&job).Error; err != nil {
		return fmt.Errorf("failed to append %s job: %w", jobType, err)
	}

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// PendingCount returns the number of jobs still awaiting application.
func (l *Log) PendingCount() (int64, error) {
	var count int64
	err := l.db.Model(&Job{}).Where("status = ?", StatusPending).Count(&count).Error
	return count, err
}

// FailedCount returns the number of terminally failed jobs.
func (l *Log) FailedCount() (int64, error) {
	var count int64
	err := l.db.Model(&Job{}).Where("status = ?", StatusFailed).Count(&count).Error
	return count, err
}

// nextPending fetches the oldest pending job, if any.
func (l *Log) nextPending() (*Job, error) {
	var job Job
	err := l.db.Where("status = ?", StatusPending).Order("id asc").First(&job).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// markCompleted transitions a job to COMPLETED.
func (l *Log) markCompleted(job *Job) error {
	now := time.Now().UTC()
	return l.db.Model(&Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":       StatusCompleted,
		"attempts":     job.Attempts,
		"completed_at": &now,
	}).Error
}

// markFailed transitions a job to FAILED after exhausted retries.
func (l *Log) markFailed(job *Job, lastErr error) error {
	log.Printf("[WRITELOG] ALERT: job %d (%s) failed permanently after %d attempts: %v",
		job.ID, job.JobType, job.Attempts, lastErr)
	return l.db.Model(&Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":     StatusFailed,
		"attempts":   job.Attempts,
		"last_error": lastErr.Error(),
	}).Error
}

// applyJob runs one job through the applier with bounded retries.
// Retries block the queue: strict FIFO means a job that may still
// succeed must not be overtaken.
func (l *Log) applyJob(ctx context.Context, applier Applier, job *Job) {
	var lastErr error
	for job.Attempts < maxAttempts {
		job.Attempts++
		if lastErr = applier.Apply(job); lastErr == nil {
			if err := l.markCompleted(job); err != nil {
				log.Printf("[WRITELOG] failed to mark job %d completed: %v", job.ID, err)
			}
			return
		}

		log.Printf("[WRITELOG] job %d (%s) attempt %d/%d failed: %v",
			job.ID, job.JobType, job.Attempts, maxAttempts, lastErr)
		if job.Attempts < maxAttempts {
			select {
			case <-ctx.Done():
				// Leave the job PENDING; it is replayed on restart.
				l.persistAttempts(job, lastErr)
				return
			case <-time.After(retryBackoff):
			}
		}
	}
	if err := l.markFailed(job, lastErr); err != nil {
		log.Printf("[WRITELOG] failed to mark job %d failed: %v", job.ID, err)
	}
}

// persistAttempts records attempt progress for a job left pending.
func (l *Log) persistAttempts(job *Job, lastErr error) {
	l.db.Model(&Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"attempts":   job.Attempts,
		"last_error": lastErr.Error(),
	})
}

// Run is the drain worker loop. It applies pending jobs in strict
// insertion order until ctx is cancelled. Should be run as a goroutine.
func (l *Log) Run(ctx context.Context, applier Applier) {
	log.Println("[WRITELOG] drain worker started")
	for {
		job, err := l.nextPending()
		if err != nil {
			log.Printf("[WRITELOG] failed to fetch pending job: %v", err)
		}
		if job != nil {
			l.applyJob(ctx, applier, job)
			// Check for more work immediately.
			select {
			case <-ctx.Done():
				log.Println("[WRITELOG] drain worker stopped")
				return
			default:
				continue
			}
		}

		select {
		case <-ctx.Done():
			log.Println("[WRITELOG] drain worker stopped")
			return
		case <-l.wake:
		case <-time.After(5 * time.Second):
			// Periodic sweep in case a wake signal was coalesced away.
		}
	}
}

// ReplayPending applies every pending job in order, synchronously.
// Called once at startup before the in-memory store loads, so that the
// database reflects all writes accepted before the previous shutdown.
func (l *Log) ReplayPending(applier Applier) (int, error) {
	replayed := 0
	for {
		job, err := l.nextPending()
		if err != nil {
			return replayed, err
		}
		if job == nil {
			return replayed, nil
		}
		l.applyJob(context.Background(), applier, job)
		replayed++
	}
}

// Drain blocks until the pending count reaches zero or ctx expires.
func (l *Log) Drain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		count, err := l.PendingCount()
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("write log drain timed out with %d pending jobs: %w", count, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close stops accepting appends.
func (l *Log) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
