package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/telemetry"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// PoolConfig describes how many Runner instances to spawn for one
// interfaces.Worker implementation.
type PoolConfig struct {
	Worker       interfaces.Worker
	Count        int
	PollInterval time.Duration
}

// MaintenanceConfig controls Manager's periodic sweep (spec §4.14,
// §9 "stale_check_interval").
type MaintenanceConfig struct {
	Interval       time.Duration
	StaleThreshold time.Duration
	ImportRepo     interfaces.ImportRepository
}

// Manager owns the full worker fleet plus the maintenance loop that
// requeues stale jobs and enqueues due import-source syncs.
type Manager struct {
	queue       interfaces.JobQueue
	pools       []PoolConfig
	maintenance MaintenanceConfig
	tracer      *telemetry.Provider
	runners     []*Runner
}

// NewManager builds a Manager over the given worker pools.
func NewManager(queue interfaces.JobQueue, pools []PoolConfig, maintenance MaintenanceConfig) *Manager {
	return &Manager{queue: queue, pools: pools, maintenance: maintenance}
}

// WithTracer attaches a telemetry.Provider so every spawned Runner opens
// one span per job execution. Returns m for chaining. Passing nil leaves
// tracing disabled.
func (m *Manager) WithTracer(tracer *telemetry.Provider) *Manager {
	m.tracer = tracer
	return m
}

// Run spawns every configured worker instance plus the maintenance loop,
// blocking until ctx is canceled or a runner's goroutine returns an error.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.recoverOnStartup(ctx); err != nil {
		return fmt.Errorf("worker: startup recovery: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, pool := range m.pools {
		pool := pool
		for i := 0; i < pool.Count; i++ {
			id := fmt.Sprintf("%s-%d", pool.Worker.Name(), i)
			runner := NewRunner(id, pool.Worker, m.queue, pool.PollInterval).WithTracer(m.tracer)
			m.runners = append(m.runners, runner)
			g.Go(func() error {
				runner.Run(gctx)
				return nil
			})
		}
	}

	if m.maintenance.Interval > 0 {
		g.Go(func() error {
			m.runMaintenanceLoop(gctx)
			return nil
		})
	}

	return g.Wait()
}

func (m *Manager) recoverOnStartup(ctx context.Context) error {
	n, err := m.queue.RecoverOrphaned(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Warn(ctx, "startup_orphan_recovery", "count", n)
	}
	return nil
}

// runMaintenanceLoop implements spec §4.14's periodic actions that belong
// to the worker fleet's own housekeeping: stale RUNNING job requeue and
// enqueuing SYNC_IMPORT_SOURCE jobs for due ImportSources.
func (m *Manager) runMaintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(m.maintenance.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runMaintenanceOnce(ctx)
		}
	}
}

func (m *Manager) runMaintenanceOnce(ctx context.Context) {
	threshold := m.maintenance.StaleThreshold
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	if n, err := m.queue.RequeueStale(ctx, threshold); err != nil {
		logger.Error(ctx, "maintenance_requeue_stale_error", "error", err.Error())
	} else if n > 0 {
		logger.Warn(ctx, "maintenance_requeue_stale", "count", n)
	}

	if m.maintenance.ImportRepo == nil {
		return
	}
	sources, err := m.maintenance.ImportRepo.ListDueSources(ctx)
	if err != nil {
		logger.Error(ctx, "maintenance_list_due_sources_error", "error", err.Error())
		return
	}

	now := time.Now().UTC()
	for _, source := range sources {
		if !source.DueForSync(now) {
			continue
		}
		if _, err := m.queue.Enqueue(ctx, types.JobSyncImportSource, interfaces.EnqueueOptions{
			Payload:     map[string]string{"source_id": source.ID},
			DisplayName: fmt.Sprintf("Sync %s", source.ID),
		}); err != nil {
			logger.Error(ctx, "maintenance_enqueue_sync_error", "source_id", source.ID, "error", err.Error())
		}
	}
}

// Stats returns per-runner statistics for the health/dashboard endpoints.
func (m *Manager) Stats() []map[string]any {
	out := make([]map[string]any, 0, len(m.runners))
	for _, r := range m.runners {
		out = append(out, r.Stats())
	}
	return out
}
