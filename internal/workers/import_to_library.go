// Package workers holds the concrete interfaces.Worker implementations
// that internal/worker.Manager dispatches jobs to by JobType (spec §4.6
// through §4.13).
package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/polyforge/polyforge/internal/duplicate"
	"github.com/polyforge/polyforge/internal/library"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// ImportToLibraryPayload is the JobImportToLibrary job's payload.
type ImportToLibraryPayload struct {
	DesignID string `json:"design_id"`
}

// ImportToLibraryWorker moves a design's staged files into the library
// tree by delegating to the already-built library.Importer. It runs the
// duplicate engine first (spec §4.8): by the time a design reaches this
// job its DesignFile hashes are known, which is the strongest signal the
// engine has, so this is where auto-merge fires for same-content designs
// that arrived through different sources.
type ImportToLibraryWorker struct {
	designs    interfaces.DesignRepository
	duplicates *duplicate.Service
	importer   *library.Importer
}

// NewImportToLibraryWorker builds an ImportToLibraryWorker.
func NewImportToLibraryWorker(designs interfaces.DesignRepository, duplicates *duplicate.Service, importer *library.Importer) *ImportToLibraryWorker {
	return &ImportToLibraryWorker{designs: designs, duplicates: duplicates, importer: importer}
}

func (w *ImportToLibraryWorker) Name() string { return "import_to_library" }

func (w *ImportToLibraryWorker) JobTypes() []types.JobType {
	return []types.JobType{types.JobImportToLibrary}
}

func (w *ImportToLibraryWorker) Process(ctx context.Context, job *types.Job, payload []byte) (any, error) {
	var p ImportToLibraryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("import_to_library: decode payload: %w", err)
	}
	if p.DesignID == "" && job.DesignID != nil {
		p.DesignID = *job.DesignID
	}

	design, err := w.designs.GetWithRelations(ctx, p.DesignID)
	if err != nil {
		return nil, err
	}
	if design != nil {
		merged, target, err := w.duplicates.ProcessDuplicates(ctx, design)
		if err != nil {
			return nil, err
		}
		if merged {
			logger.Info(ctx, "import_to_library_merged", "design_id", p.DesignID, "target_design_id", target.ID)
			return map[string]any{"merged_into": target.ID}, nil
		}
	}

	result, err := w.importer.ImportDesign(ctx, p.DesignID, func(current, total int) {
		logger.Debug(ctx, "import_to_library_progress", "design_id", p.DesignID, "current", current, "total", total)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "import_to_library_done", "design_id", p.DesignID,
		"files_imported", result.FilesImported, "library_path", result.LibraryPath)
	return result, nil
}
