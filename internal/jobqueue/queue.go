// Package jobqueue implements the durable, database-backed job queue of
// spec §4.1: atomic prioritized claim, bounded exponential retry, stale and
// orphaned job recovery, and design-status side effects on terminal
// failure/cancel. The relational Job table is the system of record (spec
// §5); when a scheduler is configured, a delayed wake task is additionally
// scheduled through github.com/hibiken/asynq for each backoff-gated
// requeue. That task only logs the elapsed backoff; the job is claimed on
// a worker's next database poll.
package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// DefaultMaxAttempts matches the original service's conservative default;
// spec components that need more resilience pass EnqueueOptions.MaxAttempts.
const DefaultMaxAttempts = 3

// Queue is the gorm-backed JobQueue implementation.
type Queue struct {
	db        *gorm.DB
	bus       interfaces.EventBusInterface
	scheduler *WakeScheduler // may be nil when asynq/redis is not configured
}

var _ interfaces.JobQueue = (*Queue)(nil)

// New builds a Queue. scheduler may be nil to run in poll-only mode.
func New(db *gorm.DB, bus interfaces.EventBusInterface, scheduler *WakeScheduler) *Queue {
	return &Queue{db: db, bus: bus, scheduler: scheduler}
}

func (q *Queue) Enqueue(ctx context.Context, jobType types.JobType, opts interfaces.EnqueueOptions) (*types.Job, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}

	job := &types.Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Status:      types.JobQueued,
		Priority:    opts.Priority,
		CreatedAt:   time.Now().UTC(),
		MaxAttempts: maxAttempts,
		DisplayName: opts.DisplayName,
	}
	if opts.DesignID != "" {
		job.DesignID = &opts.DesignID
	}
	if opts.ChannelID != "" {
		job.ChannelID = &opts.ChannelID
	}
	if opts.Payload != nil {
		raw, err := json.Marshal(opts.Payload)
		if err != nil {
			return nil, fmt.Errorf("jobqueue: marshal payload: %w", err)
		}
		job.PayloadJSON = raw
	}

	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}

	logger.Info(ctx, "job_enqueued", "job_id", job.ID, "job_type", job.Type, "priority", job.Priority)
	q.publish(ctx, "job.enqueued", job)
	return job, nil
}

// Dequeue atomically claims the highest-priority, oldest QUEUED job whose
// backoff window (if any) has elapsed, among jobTypes (all types if empty).
func (q *Queue) Dequeue(ctx context.Context, jobTypes []types.JobType) (*types.Job, error) {
	var claimed *types.Job
	now := time.Now().UTC()

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := tx
		if tx.Dialector.Name() == "postgres" {
			locked = tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var candidate types.Job
		query := locked.
			Where("status = ?", types.JobQueued).
			Where("ready_at IS NULL OR ready_at <= ?", now).
			Order("priority desc, created_at asc")
		if len(jobTypes) > 0 {
			query = query.Where("type IN ?", jobTypes)
		}

		if err := query.Limit(1).First(&candidate).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		candidate.Status = types.JobRunning
		candidate.StartedAt = &now
		candidate.Attempts++
		if err := tx.Save(&candidate).Error; err != nil {
			return err
		}
		claimed = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		return nil, nil
	}

	logger.Info(ctx, "job_claimed", "job_id", claimed.ID, "job_type", claimed.Type, "attempt", claimed.Attempts)
	return claimed, nil
}

// Complete marks a job finished: success clears last_error and stores
// result; failure either re-queues with a gated backoff window (attempts
// remaining) or fails the job outright and, for design jobs, moves the
// Design to FAILED (spec §4.1).
func (q *Queue) Complete(ctx context.Context, jobID string, success bool, errMsg string, retryable bool, result any) (*types.Job, error) {
	var job *types.Job
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j types.Job
		if err := tx.First(&j, "id = ?", jobID).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		j.FinishedAt = &now

		if success {
			j.Status = types.JobSuccess
			j.LastError = ""
			if result != nil {
				raw, err := json.Marshal(result)
				if err != nil {
					return fmt.Errorf("jobqueue: marshal result: %w", err)
				}
				j.ResultJSON = raw
			}
		} else {
			j.LastError = types.TruncateError(errMsg)

			if retryable && j.Attempts < j.MaxAttempts {
				j.Status = types.JobQueued
				j.StartedAt = nil
				j.FinishedAt = nil
				wait := backoffFor(j.Attempts)
				readyAt := now.Add(wait)
				j.ReadyAt = &readyAt
				if q.scheduler != nil {
					if err := q.scheduler.ScheduleWake(ctx, jobID, wait); err != nil {
						logger.Warn(ctx, "job_wake_schedule_failed", "job_id", jobID, "error", err.Error())
					}
				}
			} else {
				j.Status = types.JobFailed
				if j.DesignID != nil && types.DesignJobTypes[j.Type] {
					if err := tx.Model(&types.Design{}).Where("id = ?", *j.DesignID).
						Update("status", types.DesignFailed).Error; err != nil {
						return err
					}
				}
			}
		}

		if err := tx.Save(&j).Error; err != nil {
			return err
		}
		job = &j
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if job.Status == types.JobSuccess {
		logger.Info(ctx, "job_completed_success", "job_id", job.ID, "job_type", job.Type)
		q.publish(ctx, "job.succeeded", job)
	} else if job.Status == types.JobFailed {
		logger.Error(ctx, "job_failed_max_attempts", "job_id", job.ID, "job_type", job.Type, "attempts", job.Attempts)
		q.publish(ctx, "job.failed", job)
	} else {
		logger.Info(ctx, "job_failed_will_retry", "job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)
	}

	return job, nil
}

// backoffFor implements spec §4.1's retry schedule:
// backoff(attempts) = min(30 * 2^attempts, 3600) seconds.
func backoffFor(attempts int) time.Duration {
	secs := 30 * math.Pow(2, float64(attempts))
	if secs > 3600 {
		secs = 3600
	}
	return time.Duration(secs) * time.Second
}

func (q *Queue) Cancel(ctx context.Context, jobID string) (*types.Job, error) {
	var job *types.Job
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j types.Job
		err := tx.Where("id = ? AND status IN ?", jobID, []types.JobStatus{types.JobQueued, types.JobRunning}).
			First(&j).Error
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		j.Status = types.JobCanceled
		j.FinishedAt = &now

		if j.DesignID != nil && types.DesignJobTypes[j.Type] {
			if err := tx.Model(&types.Design{}).Where("id = ?", *j.DesignID).
				Update("status", types.DesignDiscovered).Error; err != nil {
				return err
			}
		}

		if err := tx.Save(&j).Error; err != nil {
			return err
		}
		job = &j
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	logger.Info(ctx, "job_canceled", "job_id", job.ID, "job_type", job.Type)
	q.publish(ctx, "job.canceled", job)
	return job, nil
}

// UpdatePriority changes a QUEUED job's priority in place. Jobs that have
// already been dequeued are left untouched: re-prioritizing a RUNNING or
// terminal job has no queue-ordering effect to give.
func (q *Queue) UpdatePriority(ctx context.Context, jobID string, priority int) (*types.Job, error) {
	var job types.Job
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND status = ?", jobID, types.JobQueued).First(&job).Error; err != nil {
			return err
		}
		job.Priority = priority
		return tx.Save(&job).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	logger.Info(ctx, "job_priority_updated", "job_id", job.ID, "priority", priority)
	return &job, nil
}

// UpdateProgress updates the coarse current/total counters and, when
// fileInfo is non-nil, merges the nested current-file sub-object into
// PayloadJSON (SPEC_FULL.md §C, original_source's update_progress #161).
func (q *Queue) UpdateProgress(ctx context.Context, jobID string, current, total int, fileInfo *types.JobProgress) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j types.Job
		if err := tx.First(&j, "id = ?", jobID).Error; err != nil {
			return err
		}

		j.ProgressCurrent = current
		if total > 0 {
			j.ProgressTotal = total
		}

		if fileInfo != nil {
			var payload types.JobPayload
			if len(j.PayloadJSON) > 0 {
				_ = json.Unmarshal(j.PayloadJSON, &payload)
			}
			progress := payload.Progress
			if progress == nil {
				progress = &types.JobProgress{}
			}
			if fileInfo.CurrentFile != "" {
				progress.CurrentFile = fileInfo.CurrentFile
			}
			if fileInfo.CurrentFileBytes != 0 {
				progress.CurrentFileBytes = fileInfo.CurrentFileBytes
			}
			if fileInfo.CurrentFileTotal != 0 {
				progress.CurrentFileTotal = fileInfo.CurrentFileTotal
			}
			payload.Progress = progress

			merged, err := mergePayload(j.PayloadJSON, payload)
			if err != nil {
				return err
			}
			j.PayloadJSON = merged
		}

		return tx.Save(&j).Error
	})
}

// mergePayload re-serializes payload.Progress into the existing raw
// payload object without discarding job-specific fields job-type workers
// stashed there (JobPayload.Extra is intentionally not round-tripped by
// encoding/json — it exists only to document that callers must preserve
// unknown keys, which this does via a generic map).
func mergePayload(existing json.RawMessage, payload types.JobPayload) (json.RawMessage, error) {
	generic := map[string]json.RawMessage{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &generic); err != nil {
			generic = map[string]json.RawMessage{}
		}
	}
	progressRaw, err := json.Marshal(payload.Progress)
	if err != nil {
		return nil, err
	}
	generic["progress"] = progressRaw
	return json.Marshal(generic)
}

// RequeueStale re-queues RUNNING jobs whose started_at predates threshold
// (a crashed worker never called Complete).
func (q *Queue) RequeueStale(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	res := q.db.WithContext(ctx).Model(&types.Job{}).
		Where("status = ? AND started_at < ?", types.JobRunning, cutoff).
		Updates(map[string]any{"status": types.JobQueued, "started_at": nil})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.Warn(ctx, "stale_jobs_requeued", "count", res.RowsAffected)
	}
	return int(res.RowsAffected), nil
}

// RecoverOrphaned resets any RUNNING job back to QUEUED on startup — a
// RUNNING job found at boot was interrupted by a process restart.
func (q *Queue) RecoverOrphaned(ctx context.Context) (int, error) {
	res := q.db.WithContext(ctx).Model(&types.Job{}).
		Where("status = ?", types.JobRunning).
		Updates(map[string]any{
			"status":     types.JobQueued,
			"started_at": nil,
			"last_error": "job interrupted by process restart - auto-recovered",
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.Warn(ctx, "orphaned_jobs_recovered_on_startup", "count", res.RowsAffected)
	}
	return int(res.RowsAffected), nil
}

// DeleteOrphanedJobs implements spec §4.14 cleanup action 1: a
// design-related job that lost its design_id (the Design was deleted
// while the job sat QUEUED or already FAILED) has nothing left to act on.
func (q *Queue) DeleteOrphanedJobs(ctx context.Context, jobTypes []types.JobType) (int, error) {
	if len(jobTypes) == 0 {
		return 0, nil
	}
	res := q.db.WithContext(ctx).
		Where("type IN ? AND design_id IS NULL AND status IN ?",
			jobTypes, []types.JobStatus{types.JobFailed, types.JobQueued}).
		Delete(&types.Job{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.Warn(ctx, "orphaned_jobs_deleted", "count", res.RowsAffected)
	}
	return int(res.RowsAffected), nil
}

// RequeueTransientFailed implements spec §4.14 cleanup action 5: a FAILED
// job whose last_error reads like a transient network/rate-limit hiccup,
// and that still has retry budget, gets one more chance after a cool-down.
func (q *Queue) RequeueTransientFailed(ctx context.Context, jobType types.JobType, olderThan time.Duration, markers []string) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var candidates []types.Job
	if err := q.db.WithContext(ctx).
		Where("type = ? AND status = ? AND finished_at < ? AND attempts < max_attempts",
			jobType, types.JobFailed, cutoff).
		Find(&candidates).Error; err != nil {
		return 0, err
	}

	var requeued int
	for _, job := range candidates {
		errLower := strings.ToLower(job.LastError)
		var transient bool
		for _, m := range markers {
			if strings.Contains(errLower, m) {
				transient = true
				break
			}
		}
		if !transient {
			continue
		}

		res := q.db.WithContext(ctx).Model(&types.Job{}).
			Where("id = ? AND status = ?", job.ID, types.JobFailed).
			Updates(map[string]any{
				"status":      types.JobQueued,
				"finished_at": nil,
				"last_error":  fmt.Sprintf("auto-retry after transient failure: %s", job.LastError),
			})
		if res.Error != nil {
			return requeued, res.Error
		}
		requeued += int(res.RowsAffected)
	}
	if requeued > 0 {
		logger.Warn(ctx, "transient_failed_jobs_requeued", "job_type", string(jobType), "count", requeued)
	}
	return requeued, nil
}

func (q *Queue) CancelJobsForDesign(ctx context.Context, designID string) (int, error) {
	var count int64
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&types.Job{}).
			Where("design_id = ? AND status IN ?", designID, []types.JobStatus{types.JobQueued, types.JobRunning}).
			Updates(map[string]any{"status": types.JobCanceled, "finished_at": now})
		if res.Error != nil {
			return res.Error
		}
		count = res.RowsAffected
		if count > 0 {
			if err := tx.Model(&types.Design{}).Where("id = ?", designID).
				Update("status", types.DesignDiscovered).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return int(count), err
}

// CancelJobsForImportSource cancels SYNC_IMPORT_SOURCE jobs referencing
// sourceID in their payload and DOWNLOAD_IMPORT_RECORD jobs for recordIDs
// (spec §4.1, original_source #191 — called when an ImportSource is deleted).
func (q *Queue) CancelJobsForImportSource(ctx context.Context, sourceID string, recordIDs []string) (int, error) {
	recordSet := make(map[string]bool, len(recordIDs))
	for _, id := range recordIDs {
		recordSet[id] = true
	}

	var toCancel []string
	var candidates []types.Job
	if err := q.db.WithContext(ctx).
		Where("type = ? AND status IN ?", types.JobSyncImportSource, []types.JobStatus{types.JobQueued, types.JobRunning}).
		Find(&candidates).Error; err != nil {
		return 0, err
	}
	for _, j := range candidates {
		var payload struct {
			SourceID string `json:"source_id"`
		}
		if len(j.PayloadJSON) > 0 && json.Unmarshal(j.PayloadJSON, &payload) == nil && payload.SourceID == sourceID {
			toCancel = append(toCancel, j.ID)
		}
	}

	if len(recordSet) > 0 {
		var downloadJobs []types.Job
		if err := q.db.WithContext(ctx).
			Where("type = ? AND status IN ?", types.JobDownloadImportRecord, []types.JobStatus{types.JobQueued, types.JobRunning}).
			Find(&downloadJobs).Error; err != nil {
			return 0, err
		}
		for _, j := range downloadJobs {
			var payload struct {
				ImportRecordID string `json:"import_record_id"`
			}
			if len(j.PayloadJSON) > 0 && json.Unmarshal(j.PayloadJSON, &payload) == nil && recordSet[payload.ImportRecordID] {
				toCancel = append(toCancel, j.ID)
			}
		}
	}

	if len(toCancel) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	res := q.db.WithContext(ctx).Model(&types.Job{}).
		Where("id IN ?", toCancel).
		Updates(map[string]any{"status": types.JobCanceled, "finished_at": now})
	if res.Error != nil {
		return 0, res.Error
	}
	logger.Info(ctx, "jobs_canceled_for_import_source", "source_id", sourceID, "count", len(toCancel))
	return len(toCancel), nil
}

func (q *Queue) Stats(ctx context.Context) (*interfaces.QueueStats, error) {
	stats := &interfaces.QueueStats{
		ByStatus: make(map[types.JobStatus]int64),
		ByType:   make(map[types.JobType]int64),
	}

	var statusRows []struct {
		Status types.JobStatus
		N      int64
	}
	if err := q.db.WithContext(ctx).Model(&types.Job{}).
		Select("status, count(*) as n").Group("status").Scan(&statusRows).Error; err != nil {
		return nil, err
	}
	for _, r := range statusRows {
		stats.ByStatus[r.Status] = r.N
		stats.Total += r.N
	}

	var typeRows []struct {
		Type types.JobType
		N    int64
	}
	if err := q.db.WithContext(ctx).Model(&types.Job{}).
		Where("status IN ?", []types.JobStatus{types.JobQueued, types.JobRunning}).
		Select("type, count(*) as n").Group("type").Scan(&typeRows).Error; err != nil {
		return nil, err
	}
	for _, r := range typeRows {
		stats.ByType[r.Type] = r.N
	}

	return stats, nil
}

func (q *Queue) Get(ctx context.Context, jobID string) (*types.Job, error) {
	var j types.Job
	if err := q.db.WithContext(ctx).First(&j, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

func (q *Queue) GetPendingForDesign(ctx context.Context, designID string, jobType types.JobType) (*types.Job, error) {
	var j types.Job
	err := q.db.WithContext(ctx).
		Where("design_id = ? AND type = ? AND status IN ?", designID, jobType, []types.JobStatus{types.JobQueued, types.JobRunning}).
		First(&j).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

func (q *Queue) ListForDesign(ctx context.Context, designID string) ([]*types.Job, error) {
	var jobs []*types.Job
	if err := q.db.WithContext(ctx).
		Where("design_id = ?", designID).
		Order("created_at desc").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (q *Queue) publish(ctx context.Context, eventType string, job *types.Job) {
	if q.bus == nil {
		return
	}
	q.bus.Publish(ctx, interfaces.Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload: map[string]any{
			"job_id":    job.ID,
			"job_type":  job.Type,
			"status":    job.Status,
			"design_id": job.DesignID,
		},
	})
}
