package workers

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/preview"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
	"github.com/polyforge/polyforge/internal/worker"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
)

// threeMFThumbnailPaths are the well-known embedded-thumbnail locations
// inside a 3MF archive, in priority order.
var threeMFThumbnailPaths = []string{
	"Metadata/thumbnail.png",
	"Metadata/plate_1.png",
	"thumbnail.png",
	".thumbnails/thumbnail.png",
}

const (
	defaultRenderSize   = 400
	maxSTLRenderBytes   = 100 * 1024 * 1024
	renderTimeout       = 30 * time.Second
	stlThumbCheckWindow = 5 * time.Second
)

// GenerateRenderPayload is the JobGenerateRender job's payload.
type GenerateRenderPayload struct {
	DesignID string `json:"design_id"`
}

// GenerateRenderWorker produces preview images for designs that have no
// chat- or archive-supplied preview: a rendered STL thumbnail via the
// stl-thumb CLI, and/or an extracted 3MF embedded thumbnail (spec §4.10).
type GenerateRenderWorker struct {
	designs    interfaces.DesignRepository
	previews   *preview.Service
	libraryDir string
	renderBin  string
	cpuPool    *worker.CPUPool
}

// NewGenerateRenderWorker builds a GenerateRenderWorker. libraryDir is the
// organized-library root (design files live at libraryDir/{design_id}/...);
// renderBin names the STL-thumbnail CLI ("stl-thumb" if empty). cpuPool
// bounds how many stl-thumb subprocesses (and 3MF zip reads) run at once,
// independent of how many GenerateRenderWorker instances are polling.
func NewGenerateRenderWorker(designs interfaces.DesignRepository, previews *preview.Service, cpuPool *worker.CPUPool, libraryDir, renderBin string) *GenerateRenderWorker {
	if renderBin == "" {
		renderBin = "stl-thumb"
	}
	return &GenerateRenderWorker{designs: designs, previews: previews, cpuPool: cpuPool, libraryDir: libraryDir, renderBin: renderBin}
}

func (w *GenerateRenderWorker) Name() string { return "generate_render" }

func (w *GenerateRenderWorker) JobTypes() []types.JobType {
	return []types.JobType{types.JobGenerateRender}
}

func (w *GenerateRenderWorker) Process(ctx context.Context, job *types.Job, payload []byte) (any, error) {
	var p GenerateRenderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("generate_render: decode payload: %w", err)
	}
	if p.DesignID == "" && job.DesignID != nil {
		p.DesignID = *job.DesignID
	}
	if p.DesignID == "" {
		return nil, polyerrors.NewInput(fmt.Errorf("generate_render: missing design_id"))
	}

	files, err := w.designs.ListFiles(ctx, p.DesignID)
	if err != nil {
		return nil, err
	}
	var modelFiles []*types.DesignFile
	for _, f := range files {
		if f.Kind == types.FileKindModel {
			modelFiles = append(modelFiles, f)
		}
	}
	if len(modelFiles) == 0 {
		logger.Debug(ctx, "no_model_files", "design_id", p.DesignID)
		return map[string]any{"design_id": p.DesignID, "renders": 0, "message": "no model files found"}, nil
	}

	designDir := filepath.Join(w.libraryDir, p.DesignID)
	stlThumbAvailable := w.checkSTLThumb(ctx)
	if !stlThumbAvailable {
		logger.Debug(ctx, "stl_thumb_not_available", "design_id", p.DesignID)
	}

	var renders int
	result := map[string]any{"design_id": p.DesignID}

	if stlFile := selectLargest(modelFiles, ".stl"); stlFile != nil && stlThumbAvailable {
		stlPath := filepath.Join(designDir, stlFile.RelativePath)
		if info, err := os.Stat(stlPath); err == nil {
			if info.Size() <= maxSTLRenderBytes {
				if ok := w.renderSTL(ctx, p.DesignID, stlPath); ok {
					renders++
					result["stl_file"] = stlFile.Filename
				}
			} else {
				logger.Info(ctx, "stl_too_large", "design_id", p.DesignID, "size_bytes", info.Size())
			}
		} else {
			logger.Info(ctx, "stl_file_not_found", "design_id", p.DesignID, "path", stlPath)
		}
	}

	if threeMF := selectLargest(modelFiles, ".3mf"); threeMF != nil {
		threeMFPath := filepath.Join(designDir, threeMF.RelativePath)
		if _, err := os.Stat(threeMFPath); err == nil {
			if ok := w.extract3MFThumbnail(ctx, p.DesignID, threeMFPath); ok {
				renders++
				result["threemf_file"] = threeMF.Filename
			}
		} else {
			logger.Info(ctx, "3mf_file_not_found", "design_id", p.DesignID, "path", threeMFPath)
		}
	}

	if renders > 0 {
		if _, err := w.previews.AutoSelectPrimary(ctx, p.DesignID); err != nil {
			return nil, err
		}
	} else {
		result["message"] = "no previews generated"
	}
	result["renders"] = renders
	return result, nil
}

func (w *GenerateRenderWorker) checkSTLThumb(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, stlThumbCheckWindow)
	defer cancel()
	cmd := exec.CommandContext(checkCtx, w.renderBin, "--version")
	return cmd.Run() == nil
}

// selectLargest returns the biggest DesignFile whose filename ends in ext.
func selectLargest(files []*types.DesignFile, ext string) *types.DesignFile {
	var candidates []*types.DesignFile
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f.Filename), ext) {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].SizeBytes > candidates[j].SizeBytes })
	return candidates[0]
}

func (w *GenerateRenderWorker) renderSTL(ctx context.Context, designID, stlPath string) bool {
	outputDir, err := os.MkdirTemp("", "render-"+designID+"-")
	if err != nil {
		logger.Error(ctx, "render_temp_dir_failed", "design_id", designID, "error", err)
		return false
	}
	defer os.RemoveAll(outputDir)

	outputPath := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(stlPath), filepath.Ext(stlPath))+"_preview.png")

	runCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, w.renderBin, "-s", fmt.Sprintf("%d", defaultRenderSize), stlPath, outputPath)
	var out []byte
	runErr := w.cpuPool.Run(ctx, func() error {
		var err error
		out, err = cmd.CombinedOutput()
		return err
	})
	if runErr != nil {
		logger.Info(ctx, "stl_thumb_failed", "design_id", designID, "stl_file", stlPath, "output", string(out))
		return false
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		logger.Info(ctx, "stl_thumb_no_output", "design_id", designID, "output_path", outputPath)
		return false
	}

	imageData, err := os.ReadFile(outputPath)
	if err != nil {
		logger.Error(ctx, "stl_thumb_read_failed", "design_id", designID, "error", err)
		return false
	}

	if _, err := w.previews.Save(ctx, designID, types.PreviewSourceRendered, imageData, preview.SaveOptions{
		Filename: filepath.Base(outputPath),
		Kind:     types.PreviewKindThumbnail,
	}); err != nil {
		logger.Error(ctx, "stl_thumb_save_failed", "design_id", designID, "error", err)
		return false
	}

	logger.Info(ctx, "stl_rendered", "design_id", designID, "stl_file", filepath.Base(stlPath))
	return true
}

func (w *GenerateRenderWorker) extract3MFThumbnail(ctx context.Context, designID, threeMFPath string) bool {
	r, err := zip.OpenReader(threeMFPath)
	if err != nil {
		logger.Info(ctx, "3mf_invalid_archive", "design_id", designID, "path", threeMFPath)
		return false
	}
	defer r.Close()

	byName := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		byName[f.Name] = f
	}

	for _, candidate := range threeMFThumbnailPaths {
		f, ok := byName[candidate]
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil || len(data) == 0 {
			continue
		}

		if _, err := w.previews.Save(ctx, designID, types.PreviewSourceEmbedded3MF, data, preview.SaveOptions{
			Filename: "3mf_thumbnail.png",
			Kind:     types.PreviewKindThumbnail,
		}); err != nil {
			logger.Error(ctx, "3mf_thumbnail_save_failed", "design_id", designID, "error", err)
			return false
		}
		logger.Info(ctx, "3mf_thumbnail_extracted", "design_id", designID, "threemf_file", filepath.Base(threeMFPath), "thumbnail_path", candidate)
		return true
	}

	logger.Debug(ctx, "3mf_no_thumbnail_found", "design_id", designID, "threemf_file", filepath.Base(threeMFPath))
	return false
}
