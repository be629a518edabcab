// Package preview manages PreviewAsset storage, traversal-safe serving, and
// auto-selection of a Design's primary preview image (spec §4.10).
package preview

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/polyforge/polyforge/internal/types"
)

var sourceDirs = map[types.PreviewSource]string{
	types.PreviewSourceTelegram:    "telegram",
	types.PreviewSourceArchive:     "archive",
	types.PreviewSourceThangs:      "thangs",
	types.PreviewSourceEmbedded3MF: "embedded",
	types.PreviewSourceRendered:    "rendered",
}

var allowedExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// sourceDir returns the previews-root subdirectory for source.
func sourceDir(source types.PreviewSource) string {
	if d, ok := sourceDirs[source]; ok {
		return d
	}
	return "unknown"
}

// normalizeExt lower-cases ext and forces it to .jpg unless it is one of the
// kept extensions (spec §4.10).
func normalizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExts[ext] {
		return ".jpg"
	}
	return ext
}

// buildRelativePath returns the path of a new preview file relative to the
// previews root: {source}/{design_id}/{uuid}.{ext}.
func buildRelativePath(source types.PreviewSource, designID, filename string) string {
	ext := normalizeExt(filename)
	return filepath.Join(sourceDir(source), designID, fmt.Sprintf("%s%s", uuid.NewString(), ext))
}

// resolveServingPath joins root and relativePath and rejects the result
// unless it stays within root, guarding against traversal via relativePath
// (spec §4.10: "serving paths must be validated to reject traversal").
func resolveServingPath(root, relativePath string) (string, error) {
	full := filepath.Join(root, relativePath)
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return "", errTraversal
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errTraversal
	}
	return full, nil
}
