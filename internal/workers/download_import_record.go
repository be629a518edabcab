package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/polyforge/polyforge/internal/duplicate"
	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/ingest"
	"github.com/polyforge/polyforge/internal/library"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/scanners/clouddrive"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// DownloadImportRecordPayload is the JobDownloadImportRecord job's payload.
type DownloadImportRecordPayload struct {
	ImportRecordID string `json:"import_record_id"`
}

// DownloadImportRecordWorker pulls one GOOGLE_DRIVE ImportRecord's folder
// into staging and materializes it as a Design (spec §4.6).
type DownloadImportRecordWorker struct {
	imports     interfaces.ImportRepository
	designs     interfaces.DesignRepository
	drive       clouddrive.DriveClient
	queue       interfaces.JobQueue
	duplicates  *duplicate.Service
	stagingRoot string
}

// NewDownloadImportRecordWorker builds a DownloadImportRecordWorker.
func NewDownloadImportRecordWorker(imports interfaces.ImportRepository, designs interfaces.DesignRepository, drive clouddrive.DriveClient, queue interfaces.JobQueue, duplicates *duplicate.Service, stagingRoot string) *DownloadImportRecordWorker {
	return &DownloadImportRecordWorker{imports: imports, designs: designs, drive: drive, queue: queue, duplicates: duplicates, stagingRoot: stagingRoot}
}

func (w *DownloadImportRecordWorker) Name() string { return "download_import_record" }

func (w *DownloadImportRecordWorker) JobTypes() []types.JobType {
	return []types.JobType{types.JobDownloadImportRecord}
}

func (w *DownloadImportRecordWorker) Process(ctx context.Context, job *types.Job, payload []byte) (any, error) {
	var p DownloadImportRecordPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("download_import_record: decode payload: %w", err)
	}
	if p.ImportRecordID == "" {
		return nil, polyerrors.NewInput(fmt.Errorf("download_import_record: missing import_record_id"))
	}

	record, err := w.imports.GetRecord(ctx, p.ImportRecordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, polyerrors.NewInput(fmt.Errorf("download_import_record: record %s not found", p.ImportRecordID))
	}
	source, err := w.imports.GetSource(ctx, record.ImportSourceID)
	if err != nil {
		return nil, err
	}
	if source == nil || source.Type != types.ImportSourceGoogleDrive {
		return nil, polyerrors.NewInput(fmt.Errorf("download_import_record: record %s is not backed by a GOOGLE_DRIVE source", record.ID))
	}

	if linked, err := w.linkIfDuplicate(ctx, record, source); err != nil {
		return nil, err
	} else if linked {
		logger.Info(ctx, "download_import_record_duplicate_linked", "record_id", record.ID, "design_id", *record.DesignID)
		return map[string]any{"linked_existing": true, "design_id": *record.DesignID}, nil
	}

	tmpDir := filepath.Join(w.stagingRoot, "gdrive_"+record.ID)
	var files []downloadedDriveFile
	if err := w.downloadFolder(ctx, record.DriveFolderID, tmpDir, "", &files); err != nil {
		return nil, err
	}

	design := &types.Design{
		ID:        uuid.NewString(),
		Title:     record.DetectedTitle,
		Designer:  source.DefaultDesigner,
		Authority: types.AuthorityUser,
		Status:    types.DesignDownloaded,
	}
	if design.Title == "" {
		design.Title = record.SourcePath
	}
	if err := w.designs.Create(ctx, design); err != nil {
		return nil, err
	}

	finalDir := filepath.Join(w.stagingRoot, design.ID)
	if err := library.MoveFile(tmpDir, finalDir); err != nil {
		return nil, polyerrors.NewTransient(err)
	}

	var totalBytes int64
	var anyPreview bool
	for _, f := range files {
		relInFinal, err := filepath.Rel(tmpDir, f.path)
		if err != nil {
			relInFinal = f.relPath
		}
		kind := classifyDriveFile(f.relPath)
		if kind == types.FileKindImage {
			anyPreview = true
		}
		if err := w.designs.CreateFile(ctx, &types.DesignFile{
			ID:           uuid.NewString(),
			DesignID:     design.ID,
			RelativePath: relInFinal,
			Filename:     filepath.Base(f.relPath),
			Ext:          ingest.ExtractExtension(f.relPath),
			SizeBytes:    f.size,
			SHA256:       f.sha256,
			Kind:         kind,
		}); err != nil {
			return nil, err
		}
		totalBytes += f.size
	}
	design.TotalSizeBytes = totalBytes
	if err := w.designs.Update(ctx, design); err != nil {
		return nil, err
	}

	record.DesignID = &design.ID
	record.Status = types.ImportRecordImported
	if err := w.imports.UpdateRecord(ctx, record); err != nil {
		return nil, err
	}

	if _, err := w.queue.Enqueue(ctx, types.JobImportToLibrary, interfaces.EnqueueOptions{
		DesignID: design.ID, Priority: 5, DisplayName: "Import " + design.Title,
	}); err != nil {
		return nil, err
	}
	if !anyPreview {
		if _, err := w.queue.Enqueue(ctx, types.JobGenerateRender, interfaces.EnqueueOptions{
			DesignID: design.ID, Priority: 5, DisplayName: "Render " + design.Title,
		}); err != nil {
			return nil, err
		}
	}

	logger.Info(ctx, "download_import_record_done", "record_id", record.ID, "design_id", design.ID,
		"files", len(files), "total_bytes", totalBytes)
	return map[string]any{"design_id": design.ID, "files": len(files), "total_bytes": totalBytes}, nil
}

// linkIfDuplicate implements the pre-download duplicate check (spec §4.8):
// a title/designer or filename+size match against an existing Design
// links the record to it instead of downloading again.
func (w *DownloadImportRecordWorker) linkIfDuplicate(ctx context.Context, record *types.ImportRecord, source *types.ImportSource) (bool, error) {
	if w.duplicates == nil {
		return false, nil
	}
	var hints []duplicate.FileHint
	if record.SizeBytes > 0 {
		hints = append(hints, duplicate.FileHint{Filename: record.DetectedTitle, Size: record.SizeBytes})
	}
	matched, matchType, confidence, target, err := w.duplicates.CheckPreDownload(ctx, record.DetectedTitle, source.DefaultDesigner, hints, "")
	if err != nil {
		return false, err
	}
	if !matched || target == nil {
		return false, nil
	}
	logger.Info(ctx, "download_import_record_duplicate_match", "record_id", record.ID, "design_id", target.ID,
		"match_type", matchType, "confidence", confidence)
	record.DesignID = &target.ID
	record.Status = types.ImportRecordImported
	return true, w.imports.UpdateRecord(ctx, record)
}

type downloadedDriveFile struct {
	path    string
	relPath string
	size    int64
	sha256  string
}

// downloadFolder recursively mirrors a Drive folder into localDir,
// preserving the relative path of every file below it.
func (w *DownloadImportRecordWorker) downloadFolder(ctx context.Context, folderID, localDir, relPrefix string, out *[]downloadedDriveFile) error {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return polyerrors.NewTransient(err)
	}

	pageToken := ""
	for {
		files, next, err := w.drive.ListFolderPage(ctx, folderID, pageToken)
		if err != nil {
			return err
		}
		for _, f := range files {
			rel := f.Name
			if relPrefix != "" {
				rel = relPrefix + "/" + f.Name
			}
			if f.IsFolder() {
				if err := w.downloadFolder(ctx, f.ID, filepath.Join(localDir, f.Name), rel, out); err != nil {
					return err
				}
				continue
			}

			dest := filepath.Join(localDir, f.Name)
			hash, size, err := w.downloadOne(ctx, f.ID, dest)
			if err != nil {
				return err
			}
			*out = append(*out, downloadedDriveFile{path: dest, relPath: rel, size: size, sha256: hash})
		}
		if next == "" {
			break
		}
		pageToken = next
	}
	return nil
}

func (w *DownloadImportRecordWorker) downloadOne(ctx context.Context, fileID, dest string) (string, int64, error) {
	rc, err := w.drive.DownloadFile(ctx, fileID)
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, polyerrors.NewTransient(err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(f, io.TeeReader(rc, h))
	if err != nil {
		return "", 0, polyerrors.NewTransient(err)
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

var imageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

func classifyDriveFile(relPath string) types.FileKind {
	ext := strings.ToLower(filepath.Ext(relPath))
	switch {
	case imageExt[ext]:
		return types.FileKindImage
	case types.CandidateDesignExtensions[ext] && ext != ".zip" && ext != ".7z" && ext != ".rar" && ext != ".tar" && ext != ".gz":
		return types.FileKindModel
	case ext == ".zip" || ext == ".7z" || ext == ".rar" || ext == ".tar" || ext == ".gz":
		return types.FileKindArchive
	default:
		return types.FileKindOther
	}
}
