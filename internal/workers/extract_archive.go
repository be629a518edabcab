package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/polyforge/polyforge/internal/extract"
	"github.com/polyforge/polyforge/internal/ingest"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
	"github.com/polyforge/polyforge/internal/worker"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
)

// ExtractArchivePayload is the JobExtractArchive job's payload.
type ExtractArchivePayload struct {
	DesignID string `json:"design_id"`
}

// ExtractArchiveWorker unpacks every archive found in a Design's staging
// directory, recording the extracted files and chaining into
// JobImportToLibrary (spec §4.7).
type ExtractArchiveWorker struct {
	designs     interfaces.DesignRepository
	queue       interfaces.JobQueue
	stagingRoot string
	cpuPool     *worker.CPUPool
}

// NewExtractArchiveWorker builds an ExtractArchiveWorker. cpuPool may be
// nil (extraction/hashing then runs inline on the claiming goroutine),
// but production wiring always supplies the shared pool so a burst of
// large archives can't spawn unbounded CPU-bound goroutines.
func NewExtractArchiveWorker(designs interfaces.DesignRepository, queue interfaces.JobQueue, cpuPool *worker.CPUPool, stagingRoot string) *ExtractArchiveWorker {
	return &ExtractArchiveWorker{designs: designs, queue: queue, cpuPool: cpuPool, stagingRoot: stagingRoot}
}

func (w *ExtractArchiveWorker) Name() string { return "extract_archive" }

func (w *ExtractArchiveWorker) JobTypes() []types.JobType {
	return []types.JobType{types.JobExtractArchive}
}

func (w *ExtractArchiveWorker) Process(ctx context.Context, job *types.Job, payload []byte) (any, error) {
	var p ExtractArchivePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("extract_archive: decode payload: %w", err)
	}
	if p.DesignID == "" && job.DesignID != nil {
		p.DesignID = *job.DesignID
	}
	if p.DesignID == "" {
		return nil, polyerrors.NewInput(fmt.Errorf("extract_archive: missing design_id"))
	}

	design, err := w.designs.GetWithRelations(ctx, p.DesignID)
	if err != nil {
		return nil, err
	}
	if design == nil {
		return nil, polyerrors.NewInput(fmt.Errorf("extract_archive: design %s not found", p.DesignID))
	}

	stagingDir := filepath.Join(w.stagingRoot, design.ID)
	if info, err := os.Stat(stagingDir); err != nil || !info.IsDir() {
		return nil, polyerrors.NewInput(fmt.Errorf("extract_archive: staging directory not found: %s", stagingDir))
	}

	groups, err := findArchiveGroups(stagingDir)
	if err != nil {
		return nil, classifyExtractErr(err)
	}
	if len(groups) == 0 {
		logger.Info(ctx, "no_archives_found", "design_id", design.ID)
		if err := w.enqueueImport(ctx, design); err != nil {
			return nil, err
		}
		return map[string]any{"design_id": design.ID, "archives_extracted": 0, "files_created": 0, "nested_archives": 0}, nil
	}

	design.Status = types.DesignExtracting
	if err := w.designs.Update(ctx, design); err != nil {
		return nil, err
	}

	var filesCreated, nestedCount int
	for i, group := range groups {
		logger.Info(ctx, "extracting_archive", "design_id", design.ID, "archive", filepath.Base(group.Primary),
			"index", i+1, "total", len(groups))

		primaryPath := filepath.Join(stagingDir, group.Primary)
		var extracted []extract.ExtractedFile
		if err := w.cpuPool.Run(ctx, func() error {
			var err error
			extracted, err = extract.Extract(primaryPath, stagingDir)
			return err
		}); err != nil {
			return nil, classifyExtractErr(err)
		}
		for _, ef := range extracted {
			if err := w.createDesignFile(ctx, design.ID, stagingDir, ef); err != nil {
				return nil, err
			}
		}
		filesCreated += len(extracted)

		nested := nestedArchivesAmong(extracted)
		for _, n := range nested {
			logger.Info(ctx, "extracting_nested_archive", "design_id", design.ID, "archive", filepath.Base(n.AbsPath))
			var nestedFiles []extract.ExtractedFile
			if err := w.cpuPool.Run(ctx, func() error {
				var err error
				nestedFiles, err = extract.Extract(n.AbsPath, stagingDir)
				return err
			}); err != nil {
				return nil, classifyExtractErr(err)
			}
			for _, ef := range nestedFiles {
				if err := w.createDesignFile(ctx, design.ID, stagingDir, ef); err != nil {
					return nil, err
				}
			}
			filesCreated += len(nestedFiles)
			nestedCount++
			if err := os.Remove(n.AbsPath); err != nil && !os.IsNotExist(err) {
				return nil, polyerrors.NewTransient(err)
			}
		}

		for _, part := range group.Parts {
			partPath := filepath.Join(stagingDir, part)
			if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
				return nil, polyerrors.NewTransient(err)
			}
		}
	}

	design.Status = types.DesignExtracted
	if err := w.designs.Update(ctx, design); err != nil {
		return nil, err
	}
	if err := w.enqueueImport(ctx, design); err != nil {
		return nil, err
	}

	logger.Info(ctx, "extraction_complete", "design_id", design.ID, "archives_extracted", len(groups),
		"files_created", filesCreated, "nested_archives", nestedCount)
	return map[string]any{
		"design_id":          design.ID,
		"archives_extracted": len(groups),
		"files_created":      filesCreated,
		"nested_archives":    nestedCount,
	}, nil
}

func (w *ExtractArchiveWorker) enqueueImport(ctx context.Context, design *types.Design) error {
	_, err := w.queue.Enqueue(ctx, types.JobImportToLibrary, interfaces.EnqueueOptions{
		DesignID: design.ID, Priority: 5, DisplayName: "Import " + design.Title,
	})
	return err
}

func (w *ExtractArchiveWorker) createDesignFile(ctx context.Context, designID, stagingDir string, f extract.ExtractedFile) error {
	var hash string
	if err := w.cpuPool.Run(ctx, func() error {
		var err error
		hash, _, err = sha256File(f.AbsPath)
		return err
	}); err != nil {
		return polyerrors.NewTransient(err)
	}
	ext := strings.ToLower(ingest.ExtractExtension(f.RelPath))
	kind := classifyExtractedFile(ext)

	return w.designs.CreateFile(ctx, &types.DesignFile{
		ID:            uuid.NewString(),
		DesignID:      designID,
		RelativePath:  f.RelPath,
		Filename:      filepath.Base(f.RelPath),
		Ext:           ext,
		SizeBytes:     f.Size,
		SHA256:        hash,
		Kind:          kind,
		ModelKind:     classifyModelKind(ext),
		IsFromArchive: true,
	})
}

// findArchiveGroups lists the top-level archives of a staging directory,
// grouping multi-part RAR siblings, sorted by primary name for consistent
// processing (spec §4.7 point 1).
func findArchiveGroups(stagingDir string) ([]extract.ArchiveGroup, error) {
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return nil, polyerrors.NewTransient(err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if extract.DetectFormat(e.Name()) == extract.FormatUnknown {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, nil
	}
	return extract.GroupArchives(names)
}

// nestedArchivesAmong finds archive files within a just-extracted set,
// extracted one level deep only (spec §4.7 point 5).
func nestedArchivesAmong(files []extract.ExtractedFile) []extract.ExtractedFile {
	var out []extract.ExtractedFile
	for _, f := range files {
		if extract.DetectFormat(f.RelPath) != extract.FormatUnknown {
			out = append(out, f)
		}
	}
	return out
}

func classifyExtractedFile(ext string) types.FileKind {
	switch {
	case modelKindByExt[ext] != "":
		return types.FileKindModel
	case archiveExtSet[ext]:
		return types.FileKindArchive
	case extractedImageExt[ext]:
		return types.FileKindImage
	default:
		return types.FileKindOther
	}
}

func classifyModelKind(ext string) types.ModelKind {
	if k, ok := modelKindByExt[ext]; ok {
		return k
	}
	return types.ModelKindUnknown
}

var modelKindByExt = map[string]types.ModelKind{
	".stl":  types.ModelKindSTL,
	".3mf":  types.ModelKind3MF,
	".obj":  types.ModelKindOBJ,
	".step": types.ModelKindSTEP,
	".stp":  types.ModelKindSTEP,
}

var archiveExtSet = map[string]bool{
	".zip": true, ".rar": true, ".7z": true, ".tar": true, ".gz": true, ".tgz": true,
}

var extractedImageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

// classifyExtractErr maps the extract package's sentinel errors onto the
// non-retryable/retryable job-queue taxonomy (spec §4.7 point 3).
func classifyExtractErr(err error) error {
	switch {
	case errors.Is(err, extract.ErrPasswordProtected),
		errors.Is(err, extract.ErrCorrupted),
		errors.Is(err, extract.ErrMissingPart),
		errors.Is(err, extract.ErrUnsupportedFormat):
		return polyerrors.NewInput(err)
	default:
		return polyerrors.NewTransient(err)
	}
}

