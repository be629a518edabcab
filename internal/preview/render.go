package preview

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
)

// MaxRenderableSTLBytes is the size ceiling above which an STL is not
// rendered (spec §4.10).
const MaxRenderableSTLBytes = 100 * 1024 * 1024

// RenderTimeout bounds how long the renderer binary may run.
const RenderTimeout = 30 * time.Second

// RenderSize is the square pixel dimension requested from the renderer.
const RenderSize = 400

// RenderSTL invokes rendererPath on stlPath, producing a PNG at size
// RenderSize within RenderTimeout, and returns its bytes. Returns a
// TransientError if the renderer exits non-zero or times out — a render
// failure should be retried, not treated as a permanent design defect.
func RenderSTL(ctx context.Context, rendererPath, stlPath string) ([]byte, error) {
	outPath := stlPath + ".render.png"
	defer os.Remove(outPath)

	runCtx, cancel := context.WithTimeout(ctx, RenderTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, rendererPath,
		"--input", stlPath,
		"--output", outPath,
		"--size", strconv.Itoa(RenderSize),
	)
	if err := cmd.Run(); err != nil {
		return nil, polyerrors.NewTransient(err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, polyerrors.NewTransient(err)
	}
	return data, nil
}

// embedded3MFPaths are the internal zip paths tried, in order, for a 3MF's
// embedded thumbnail (spec §4.10).
var embedded3MFPaths = []string{
	"Metadata/thumbnail.png",
	"Metadata/plate_1.png",
	"thumbnail.png",
	".thumbnails/thumbnail.png",
}

// Extract3MFThumbnail opens a 3MF (a zip container) and returns the bytes
// of the first embedded thumbnail found among embedded3MFPaths, or nil if
// none exist. A 3MF's thumbnail is a fixed zip entry, not a general
// multi-format archive, so the standard library's archive/zip is
// sufficient here.
func Extract3MFThumbnail(path string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, polyerrors.NewData(err)
	}
	defer r.Close()

	byName := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		byName[f.Name] = f
	}

	for _, candidate := range embedded3MFPaths {
		f, ok := byName[candidate]
		if !ok {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			continue
		}
		if len(data) > 0 {
			return data, nil
		}
	}
	return nil, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
