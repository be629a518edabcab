package interfaces

import (
	"context"
	"time"

	"github.com/polyforge/polyforge/internal/types"
)

// EnqueueOptions are the optional fields accepted by JobQueue.Enqueue.
type EnqueueOptions struct {
	DesignID    string
	ChannelID   string
	Payload     any
	Priority    int
	MaxAttempts int
	DisplayName string
}

// QueueStats is the result of JobQueue.Stats (spec §4.1 get_queue_stats).
type QueueStats struct {
	ByStatus map[types.JobStatus]int64 `json:"by_status"`
	ByType   map[types.JobType]int64   `json:"by_type"`
	Total    int64                     `json:"total"`
}

// JobQueue is the durable job queue (spec §4.1).
type JobQueue interface {
	Enqueue(ctx context.Context, jobType types.JobType, opts EnqueueOptions) (*types.Job, error)
	Dequeue(ctx context.Context, jobTypes []types.JobType) (*types.Job, error)
	// Complete marks a job finished. On failure, retryable controls whether
	// the job may consume another attempt (spec §4.2 Retryable/NonRetryable
	// classification) regardless of remaining max_attempts; it is ignored
	// when success is true.
	Complete(ctx context.Context, jobID string, success bool, errMsg string, retryable bool, result any) (*types.Job, error)
	Cancel(ctx context.Context, jobID string) (*types.Job, error)
	// UpdatePriority changes a still-queued job's priority so the next
	// Dequeue's ORDER BY picks it up sooner or later (spec §6 /queue
	// update-priority). It is a no-op once the job has left QUEUED.
	UpdatePriority(ctx context.Context, jobID string, priority int) (*types.Job, error)
	UpdateProgress(ctx context.Context, jobID string, current, total int, fileInfo *types.JobProgress) error
	RequeueStale(ctx context.Context, threshold time.Duration) (int, error)
	RecoverOrphaned(ctx context.Context) (int, error)
	// DeleteOrphanedJobs removes FAILED/QUEUED jobs of a design-related type
	// that carry no design_id (spec §4.14 cleanup action 1).
	DeleteOrphanedJobs(ctx context.Context, jobTypes []types.JobType) (int, error)
	// RequeueTransientFailed resets FAILED jobs of jobType back to QUEUED
	// when they finished more than olderThan ago, still have retry budget,
	// and their last_error contains one of markers (spec §4.14 action 5).
	RequeueTransientFailed(ctx context.Context, jobType types.JobType, olderThan time.Duration, markers []string) (int, error)
	CancelJobsForDesign(ctx context.Context, designID string) (int, error)
	CancelJobsForImportSource(ctx context.Context, sourceID string, recordIDs []string) (int, error)
	Stats(ctx context.Context) (*QueueStats, error)
	Get(ctx context.Context, jobID string) (*types.Job, error)
	GetPendingForDesign(ctx context.Context, designID string, jobType types.JobType) (*types.Job, error)
	ListForDesign(ctx context.Context, designID string) ([]*types.Job, error)
}

// RateLimiter is the shape shared by the chat-platform and AI limiters
// (spec §4.3).
type RateLimiter interface {
	Acquire(ctx context.Context, entity string) error
	Backoff(entity string, wait time.Duration)
	Stats() RateLimiterStats
}

// RateLimiterStats is the result of RateLimiter.Stats.
type RateLimiterStats struct {
	RPM            int            `json:"rpm"`
	RemainingTokens float64       `json:"remaining_tokens"`
	TotalAcquired  int64          `json:"total_acquired"`
	BackoffCount   int64          `json:"backoff_count"`
	EntitiesInBackoff []string    `json:"entities_in_backoff"`
}

// EventBusInterface is the in-process domain event fan-out (spec §4's Event
// Bus, §5 ordering guarantees).
type EventBusInterface interface {
	Publish(ctx context.Context, event Event)
	Subscribe(bufferSize int) <-chan Event
	Unsubscribe(ch <-chan Event)
}

// Event is a domain event broadcast on the EventBus.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// Worker processes jobs of a fixed set of types (spec §4.2).
type Worker interface {
	JobTypes() []types.JobType
	Process(ctx context.Context, job *types.Job, payload []byte) (any, error)
	Name() string
}

// Scanner detects designs within an ImportSource (spec §4.12).
type Scanner interface {
	Scan(ctx context.Context, source *types.ImportSource) ([]DetectedDesign, error)
}

// DetectedDesign is one design found by a Scanner, prior to becoming an
// ImportRecord.
type DetectedDesign struct {
	RelativePath   string
	Title          string
	Designer       string
	SizeBytes      int64
	Mtime          time.Time
	Fingerprint    string
	DriveFolderID  string
	ModelFiles     []string
	ArchiveFiles   []string
	PreviewFiles   []string
}
