// Package worker implements the worker fleet of spec §4.2: one goroutine
// loop per worker instance that polls the job queue, claims a job, hands it
// to a types-matched interfaces.Worker, and reports completion — plus a
// Manager that spawns N instances per job type and runs the periodic
// maintenance sweep (stale requeue, due-source sync enqueue).
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polyforge/polyforge/internal/jobqueue"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/telemetry"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// progressUpdateInterval throttles UpdateProgress calls to reduce DB
// contention (original_source base.py's _progress_update_interval).
const progressUpdateInterval = time.Second

// progressMinDeltaPercent forces an update through even inside
// progressUpdateInterval once current/total has moved by this many
// percentage points, so a job that jumps from 10% to 40% within the same
// second isn't stuck showing 10% for up to a full tick.
const progressMinDeltaPercent = 2

// Runner drives one interfaces.Worker against the shared queue.
type Runner struct {
	id           string
	worker       interfaces.Worker
	queue        interfaces.JobQueue
	pollInterval time.Duration
	tracer       *telemetry.Provider

	mu             sync.Mutex
	currentJob     *types.Job
	lastProgress   time.Time
	lastPercentage int
	jobsProcessed  int64
	jobsFailed     int64
}

// NewRunner builds a Runner for worker, polling every pollInterval when the
// queue is empty.
func NewRunner(id string, w interfaces.Worker, queue interfaces.JobQueue, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Runner{id: id, worker: w, queue: queue, pollInterval: pollInterval}
}

// WithTracer attaches a telemetry.Provider so pollOnce opens one span per
// job execution (spec §4.2 / telemetry). Returns r for chaining.
func (r *Runner) WithTracer(tracer *telemetry.Provider) *Runner {
	r.tracer = tracer
	return r
}

// Run polls and processes jobs until ctx is canceled.
func (r *Runner) Run(ctx context.Context) {
	logger.Info(ctx, "worker_started", "worker_id", r.id, "job_types", r.worker.JobTypes())
	defer logger.Info(ctx, "worker_stopped", "worker_id", r.id,
		"jobs_processed", atomic.LoadInt64(&r.jobsProcessed), "jobs_failed", atomic.LoadInt64(&r.jobsFailed))

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := r.pollOnce(ctx)
		if err != nil {
			logger.Error(ctx, "worker_poll_error", "worker_id", r.id, "error", err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.pollInterval * 2):
			}
			continue
		}
		if processed {
			continue // immediately try for another job
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce claims and processes at most one job. Returns true if a job was
// claimed (regardless of its outcome).
func (r *Runner) pollOnce(ctx context.Context) (bool, error) {
	job, err := r.queue.Dequeue(ctx, r.worker.JobTypes())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	r.mu.Lock()
	r.currentJob = job
	r.lastProgress = time.Time{}
	r.lastPercentage = -1
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.currentJob = nil
		r.mu.Unlock()
	}()

	jobCtx := logger.WithFields(ctx, logrus.Fields{"job_id": job.ID, "job_type": job.Type})
	logger.Info(jobCtx, "job_processing_start", "worker_id", r.id)

	spanCtx, span := r.tracer.StartJobSpan(jobCtx, string(job.Type), job.ID)
	result, procErr := r.worker.Process(spanCtx, job, job.PayloadJSON)
	telemetry.EndSpan(span, procErr)
	if procErr == nil {
		if _, err := r.queue.Complete(jobCtx, job.ID, true, "", false, result); err != nil {
			logger.Error(jobCtx, "job_complete_error", "job_id", job.ID, "error", err.Error())
		}
		atomic.AddInt64(&r.jobsProcessed, 1)
		return true, nil
	}

	classified := jobqueue.Classify(procErr)
	retryable := jobqueue.IsRetryable(classified)
	logger.Error(jobCtx, "job_processing_error", "worker_id", r.id, "job_id", job.ID,
		"error", procErr.Error(), "retryable", retryable)

	if _, err := r.queue.Complete(jobCtx, job.ID, false, procErr.Error(), retryable, nil); err != nil {
		logger.Error(jobCtx, "job_complete_error", "job_id", job.ID, "error", err.Error())
	}
	atomic.AddInt64(&r.jobsFailed, 1)

	return true, nil
}

// UpdateProgress reports progress for the job currently being processed by
// this runner, throttled to at most one update per progressUpdateInterval
// UNLESS the percentage has moved by progressMinDeltaPercent or more since
// the last reported update, or force is set (always force at 100%, per
// spec §4.2/§9).
func (r *Runner) UpdateProgress(ctx context.Context, current, total int, fileInfo *types.JobProgress, force bool) {
	r.mu.Lock()
	job := r.currentJob
	last := r.lastProgress
	lastPct := r.lastPercentage
	r.mu.Unlock()
	if job == nil {
		return
	}

	pct := percentage(current, total)
	deltaExceeded := lastPct < 0 || absInt(pct-lastPct) >= progressMinDeltaPercent
	now := time.Now()
	if !force && !deltaExceeded && !last.IsZero() && now.Sub(last) < progressUpdateInterval {
		return
	}

	if err := r.queue.UpdateProgress(ctx, job.ID, current, total, fileInfo); err != nil {
		logger.Debug(ctx, "progress_update_failed", "job_id", job.ID, "error", err.Error())
		return
	}

	r.mu.Lock()
	r.lastProgress = now
	r.lastPercentage = pct
	r.mu.Unlock()
}

// percentage returns current/total as an integer 0-100, or 0 when total
// isn't known yet.
func percentage(current, total int) int {
	if total <= 0 {
		return 0
	}
	return current * 100 / total
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Stats reports this runner's lifetime counters and current activity.
func (r *Runner) Stats() map[string]any {
	r.mu.Lock()
	job := r.currentJob
	r.mu.Unlock()

	var currentJobID string
	if job != nil {
		currentJobID = job.ID
	}

	return map[string]any{
		"worker_id":      r.id,
		"job_types":      r.worker.JobTypes(),
		"is_processing":  job != nil,
		"current_job_id": currentJobID,
		"jobs_processed": atomic.LoadInt64(&r.jobsProcessed),
		"jobs_failed":    atomic.LoadInt64(&r.jobsFailed),
	}
}
