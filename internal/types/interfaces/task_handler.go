package interfaces

import (
	"context"

	"github.com/hibiken/asynq"
)

// TaskHandler decouples an asynq task's business logic from asynq's own
// Handler/ProcessTask naming; jobqueue.WakeHandler is the only
// implementation, bridged onto an asynq.ServeMux through a small adapter
// (spec §5 — asynq is a wake-up nudge, never the job queue of record).
type TaskHandler interface {
	Handle(ctx context.Context, t *asynq.Task) error
}
