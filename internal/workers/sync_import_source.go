package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/scanners"
	"github.com/polyforge/polyforge/internal/telemetry"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// SyncImportSourcePayload is the JobSyncImportSource job's payload, as
// enqueued by the maintenance loop in internal/worker.Manager.
type SyncImportSourcePayload struct {
	SourceID string `json:"source_id"`
}

// SyncImportSourceWorker runs one ImportSource's scanner and funnels its
// detected designs into ImportRecord rows (spec §4.12).
type SyncImportSourceWorker struct {
	sources  interfaces.ImportRepository
	scanners map[types.ImportSourceType]interfaces.Scanner
	tracer   *telemetry.Provider
}

// NewSyncImportSourceWorker builds a SyncImportSourceWorker over one
// interfaces.Scanner per ImportSourceType; a type with no entry fails any
// source of that type with a non-retryable InputError.
func NewSyncImportSourceWorker(sources interfaces.ImportRepository, byType map[types.ImportSourceType]interfaces.Scanner) *SyncImportSourceWorker {
	return &SyncImportSourceWorker{sources: sources, scanners: byType}
}

// WithTracer attaches a telemetry.Provider so Process opens one span per
// scan (spec §4.12 / telemetry). Returns w for chaining.
func (w *SyncImportSourceWorker) WithTracer(tracer *telemetry.Provider) *SyncImportSourceWorker {
	w.tracer = tracer
	return w
}

func (w *SyncImportSourceWorker) Name() string { return "sync_import_source" }

func (w *SyncImportSourceWorker) JobTypes() []types.JobType {
	return []types.JobType{types.JobSyncImportSource}
}

func (w *SyncImportSourceWorker) Process(ctx context.Context, job *types.Job, payload []byte) (any, error) {
	var p SyncImportSourcePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("sync_import_source: decode payload: %w", err)
	}
	if p.SourceID == "" {
		return nil, polyerrors.NewInput(fmt.Errorf("sync_import_source: missing source_id"))
	}

	source, err := w.sources.GetSource(ctx, p.SourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, polyerrors.NewInput(fmt.Errorf("sync_import_source: source %s not found", p.SourceID))
	}

	scanner, ok := w.scanners[source.Type]
	if !ok {
		return nil, polyerrors.NewInput(fmt.Errorf("sync_import_source: no scanner registered for type %s", source.Type))
	}

	ctx = logger.WithField(ctx, "import_source_id", source.ID)
	spanCtx, span := w.tracer.StartScanSpan(ctx, string(source.Type), source.ID)
	designs, err := scanner.Scan(spanCtx, source)
	telemetry.EndSpan(span, err)
	if err != nil {
		source.LastError = err.Error()
		_ = w.sources.UpdateSource(ctx, source)
		return nil, err
	}

	records, err := scanners.CreateImportRecords(ctx, w.sources, source, designs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	source.LastSyncAt = &now
	source.LastError = ""
	if err := w.sources.UpdateSource(ctx, source); err != nil {
		return nil, err
	}

	logger.Info(ctx, "sync_import_source_done", "source_id", source.ID,
		"designs_detected", len(designs), "records_upserted", len(records))

	return map[string]int{"designs_detected": len(designs), "records_upserted": len(records)}, nil
}
