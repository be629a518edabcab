// Package cleanup implements the periodic maintenance actions of spec
// §4.14: orphan job deletion, stuck-job requeue (RUNNING for over 4h),
// orphan import-record reset, orphan staging-directory removal, and
// transient-failure auto-retry. Due-sync enqueue is not done here; it runs
// in internal/worker.Manager's own sweep, which also requeues stale jobs
// at its own threshold.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// designJobTypes are the job types that only make sense attached to a
// Design (spec §4.14 action 1).
var designJobTypes = []types.JobType{
	types.JobDownloadDesign,
	types.JobImportToLibrary,
	types.JobExtractArchive,
	types.JobGenerateRender,
}

// transientErrorMarkers identify a FAILED job worth auto-retrying (spec
// §4.14 action 5).
var transientErrorMarkers = []string{
	"timeout", "timed out", "rate limit", "connection", "network", "temporarily unavailable",
}

const (
	stuckJobThreshold     = 4 * time.Hour
	orphanStagingAge      = 24 * time.Hour
	failedDownloadCoolOff = 30 * time.Minute
	gdriveStagingPrefix   = "gdrive_"
)

// Results reports how many items each action cleaned up, for logging and
// the operator-facing maintenance endpoint.
type Results struct {
	OrphanedJobsDeleted        int `json:"orphaned_jobs_deleted"`
	StuckJobsRecovered         int `json:"stuck_jobs_recovered"`
	OrphanedImportRecordsReset int `json:"orphaned_import_records_reset"`
	OrphanedStagingDirsCleaned int `json:"orphaned_staging_dirs_cleaned"`
	FailedDownloadsReset       int `json:"failed_downloads_reset"`
}

// Service runs the cleanup sweep on a cron schedule.
type Service struct {
	queue       interfaces.JobQueue
	imports     interfaces.ImportRepository
	designs     interfaces.DesignRepository
	stagingRoot string

	cron *cron.Cron
}

// NewService builds a Service. stagingRoot is the directory under which
// per-design download staging dirs (and gdrive_* temp dirs) live.
func NewService(queue interfaces.JobQueue, imports interfaces.ImportRepository, designs interfaces.DesignRepository, stagingRoot string) *Service {
	return &Service{queue: queue, imports: imports, designs: designs, stagingRoot: stagingRoot}
}

// Start schedules RunOnce on the given cron spec (e.g. "*/10 * * * *" for
// every 10 minutes, matching the original service's default interval) and
// runs until ctx is canceled.
func (s *Service) Start(ctx context.Context, spec string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(spec, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	logger.Info(ctx, "cleanup_service_started", "schedule", spec)

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	logger.Info(ctx, "cleanup_service_stopped")
	return nil
}

// RunOnce executes every cleanup action once, logging and continuing past
// any single action's failure so one broken check doesn't block the rest.
func (s *Service) RunOnce(ctx context.Context) Results {
	logger.Info(ctx, "cleanup_starting")
	var results Results

	if n, err := s.queue.DeleteOrphanedJobs(ctx, designJobTypes); err != nil {
		logger.Error(ctx, "cleanup_orphaned_jobs_error", "error", err)
	} else {
		results.OrphanedJobsDeleted = n
	}

	if n, err := s.queue.RequeueStale(ctx, stuckJobThreshold); err != nil {
		logger.Error(ctx, "cleanup_stuck_jobs_error", "error", err)
	} else {
		results.StuckJobsRecovered = n
	}

	if n, err := s.resetOrphanedImportRecords(ctx); err != nil {
		logger.Error(ctx, "cleanup_orphaned_import_records_error", "error", err)
	} else {
		results.OrphanedImportRecordsReset = n
	}

	if n, err := s.cleanupOrphanedStaging(ctx); err != nil {
		logger.Error(ctx, "cleanup_orphaned_staging_error", "error", err)
	} else {
		results.OrphanedStagingDirsCleaned = n
	}

	if n, err := s.queue.RequeueTransientFailed(ctx, types.JobDownloadImportRecord, failedDownloadCoolOff, transientErrorMarkers); err != nil {
		logger.Error(ctx, "cleanup_failed_downloads_error", "error", err)
	} else {
		results.FailedDownloadsReset = n
	}

	logger.Info(ctx, "cleanup_complete",
		"orphaned_jobs_deleted", results.OrphanedJobsDeleted,
		"stuck_jobs_recovered", results.StuckJobsRecovered,
		"orphaned_import_records_reset", results.OrphanedImportRecordsReset,
		"orphaned_staging_dirs_cleaned", results.OrphanedStagingDirsCleaned,
		"failed_downloads_reset", results.FailedDownloadsReset)
	return results
}

// resetOrphanedImportRecords resets import records whose linked design no
// longer exists back to PENDING (spec §4.14 action 3).
func (s *Service) resetOrphanedImportRecords(ctx context.Context) (int, error) {
	orphans, err := s.imports.ListOrphanRecords(ctx)
	if err != nil {
		return 0, err
	}
	var reset int
	for _, rec := range orphans {
		logger.Info(ctx, "cleanup_resetting_orphaned_import_record", "record_id", rec.ID, "old_design_id", *rec.DesignID)
		rec.Status = types.ImportRecordPending
		rec.DesignID = nil
		rec.ErrorMessage = "design deleted - reset for re-import"
		if err := s.imports.UpdateRecord(ctx, rec); err != nil {
			return reset, err
		}
		reset++
	}
	return reset, nil
}

// cleanupOrphanedStaging removes staging directories that don't match any
// live Design id and are old enough to rule out an in-progress operation
// (spec §4.14 action 4); gdrive_* temp dirs are skipped since they key on
// ImportRecord id, not Design id, and are cleaned by their own worker.
func (s *Service) cleanupOrphanedStaging(ctx context.Context) (int, error) {
	if s.stagingRoot == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(s.stagingRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	designs, err := s.designs.List(ctx, "")
	if err != nil {
		return 0, err
	}
	valid := make(map[string]bool, len(designs))
	for _, d := range designs {
		valid[d.ID] = true
	}

	cutoff := time.Now().Add(-orphanStagingAge)
	var cleaned int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, gdriveStagingPrefix) {
			continue
		}
		if valid[name] {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.stagingRoot, name)
		if err := os.RemoveAll(path); err != nil {
			logger.Warn(ctx, "cleanup_staging_removal_failed", "path", path, "error", err)
			continue
		}
		logger.Info(ctx, "cleanup_removing_orphaned_staging", "path", path)
		cleaned++
	}
	return cleaned, nil
}
