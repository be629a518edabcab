package worker

import (
	"context"

	"github.com/panjf2000/ants/v2"
)

// CPUPool bounds the CPU-bound steps of the worker fleet — archive
// extraction, hashing, disk walks, image dimension reads, and renderer
// subprocess waits — onto a fixed-size goroutine pool (spec §5: these
// steps "must run on a dedicated worker-thread pool so they do not block
// the event-loop/scheduler"). Without it, a burst of claimed jobs would
// each spawn its own extraction/render goroutine with no shared ceiling;
// the CPUPool gives that ceiling independently of how many
// worker.Runner instances are polling each job type.
type CPUPool struct {
	pool *ants.Pool
}

// NewCPUPool builds a pool capped at size concurrently-running tasks. A
// size <= 0 defaults to a small fixed pool rather than growing unbounded.
func NewCPUPool(size int) (*CPUPool, error) {
	if size <= 0 {
		size = 4
	}
	p, err := ants.NewPool(size, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &CPUPool{pool: p}, nil
}

// Release stops accepting work and waits out running tasks.
func (p *CPUPool) Release() {
	if p != nil {
		p.pool.Release()
	}
}

// Run submits fn to the pool and blocks until it finishes or ctx is
// canceled. A nil CPUPool runs fn inline, so callers built in tests
// without a pool still work.
func (p *CPUPool) Run(ctx context.Context, fn func() error) error {
	if p == nil {
		return fn()
	}
	done := make(chan error, 1)
	if err := p.pool.Submit(func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
