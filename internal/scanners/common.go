// Package scanners holds the per-source design detectors of spec §4.12:
// a common Scan(source) -> []DetectedDesign contract implemented by the
// bulk-folder, cloud-drive, and forum scanners, plus the shared
// create-import-records step each one funnels its results through.
package scanners

import (
	"context"

	"github.com/google/uuid"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// CreateImportRecords upserts an ImportRecord per detected design, keyed
// by (source, relative_path); a changed fingerprint on an already-IMPORTED
// record flips it back to PENDING (handled inside ImportRepository.UpsertRecord).
func CreateImportRecords(ctx context.Context, repo interfaces.ImportRepository, source *types.ImportSource, designs []interfaces.DetectedDesign) ([]*types.ImportRecord, error) {
	records := make([]*types.ImportRecord, 0, len(designs))
	for _, d := range designs {
		rec := &types.ImportRecord{
			ID:               uuid.NewString(),
			ImportSourceID:   source.ID,
			SourcePath:       d.RelativePath,
			DetectedTitle:    d.Title,
			DetectedDesigner: source.DefaultDesigner,
			SizeBytes:        d.SizeBytes,
			Fingerprint:      d.Fingerprint,
			Mtime:            d.Mtime,
			DriveFolderID:    d.DriveFolderID,
		}
		created, err := repo.UpsertRecord(ctx, rec)
		if err != nil {
			return nil, err
		}
		logger.Debug(ctx, "import_record_upserted", "source_id", source.ID, "path", d.RelativePath, "created", created)
		records = append(records, rec)
	}
	return records, nil
}
