package jobqueue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// wakeTaskType is the asynq task type used purely as a timer: its payload
// carries the job id so WakeHandler can log which job became claimable,
// but the queue is re-polled from the database regardless — asynq is never
// the system of record here (spec §5), only a wake-up nudge.
const wakeTaskType = "jobqueue:wake"

// WakeScheduler schedules a delayed, otherwise-inert asynq task that fires
// when a job's backoff window elapses. The task only logs; it does not
// shorten a worker's poll tick. A Queue with no scheduler skips the task
// entirely.
type WakeScheduler struct {
	client *asynq.Client
}

// NewWakeScheduler builds a scheduler backed by the given Redis connection
// options (the same redis the rate limiter's backoff state uses).
func NewWakeScheduler(redisOpt asynq.RedisConnOpt) *WakeScheduler {
	return &WakeScheduler{client: asynq.NewClient(redisOpt)}
}

// ScheduleWake enqueues a no-op wake task to fire after wait.
func (w *WakeScheduler) ScheduleWake(ctx context.Context, jobID string, wait time.Duration) error {
	task := asynq.NewTask(wakeTaskType, []byte(jobID))
	_, err := w.client.EnqueueContext(ctx, task, asynq.ProcessIn(wait), asynq.MaxRetry(0), asynq.Unique(wait+time.Second))
	return err
}

// Close releases the underlying asynq client connection.
func (w *WakeScheduler) Close() error {
	return w.client.Close()
}

// WakeHandler implements interfaces.TaskHandler for wakeTaskType: a worker
// poller wakes on its own ticker regardless (spec §5), so Handle only logs
// which job's backoff window elapsed.
type WakeHandler struct{}

// Handle logs the wake and returns; the actual claim still goes through
// the next database poll, never through asynq's payload.
func (WakeHandler) Handle(ctx context.Context, t *asynq.Task) error {
	logger.Debug(ctx, "job_wake_fired", "job_id", string(t.Payload()))
	return nil
}

var _ interfaces.TaskHandler = WakeHandler{}

// taskHandlerAdapter bridges an interfaces.TaskHandler onto asynq.Handler,
// whose ServeMux API wants a ProcessTask method rather than TaskHandler's
// Handle.
type taskHandlerAdapter struct {
	h interfaces.TaskHandler
}

func (a taskHandlerAdapter) ProcessTask(ctx context.Context, t *asynq.Task) error {
	return a.h.Handle(ctx, t)
}

// RegisterWakeHandler wires a WakeHandler into an asynq server mux through
// the shared interfaces.TaskHandler seam.
func RegisterWakeHandler(mux *asynq.ServeMux) {
	mux.Handle(wakeTaskType, taskHandlerAdapter{WakeHandler{}})
}
