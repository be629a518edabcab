// Package bulkfolder implements the local-folder scanner of spec §4.12: a
// full recursive scan using the §4.5 detection algorithm, a filesystem
// watcher for incremental re-scans, and a polling fallback.
package bulkfolder

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/polyforge/polyforge/internal/importprofile"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// Scanner walks an ImportSource's FolderPath using an ImportProfileConfig.
type Scanner struct {
	configFor func(ctx context.Context, profileID string) (types.ImportProfileConfig, error)
}

// NewScanner builds a Scanner. configFor resolves a source's profile to its
// detection config (interfaces.ImportRepository's ConfigFor equivalent,
// threaded through to avoid a direct dependency on internal/importprofile's
// Service).
func NewScanner(configFor func(ctx context.Context, profileID string) (types.ImportProfileConfig, error)) *Scanner {
	return &Scanner{configFor: configFor}
}

// Scan implements interfaces.Scanner: a full walk of source.FolderPath,
// with each detected design's total size, max mtime, and content
// fingerprint computed over every file beneath it (spec §4.12).
func (s *Scanner) Scan(ctx context.Context, source *types.ImportSource) ([]interfaces.DetectedDesign, error) {
	if source.FolderPath == "" {
		return nil, nil
	}
	if info, err := os.Stat(source.FolderPath); err != nil || !info.IsDir() {
		return nil, nil
	}

	config, err := s.configFor(ctx, source.ProfileID)
	if err != nil {
		return nil, err
	}

	detector := importprofile.NewDetector(config)
	designs, err := detector.Detect(ctx, source.FolderPath)
	if err != nil {
		return nil, err
	}

	for i := range designs {
		entries, size, mtime := scanFolder(filepath.Join(source.FolderPath, designs[i].RelativePath))
		designs[i].SizeBytes = size
		designs[i].Mtime = mtime
		designs[i].Fingerprint = importprofile.Fingerprint(entries)
	}
	return designs, nil
}

// scanFolder recursively inventories folder, returning its file entries
// (for fingerprinting), total size, and latest modification time. I/O
// errors on subdirectories are skipped silently, matching the original
// scanner's best-effort folder walk.
func scanFolder(folder string) (entries []importprofile.FileEntry, totalSize int64, latest time.Time) {
	_ = filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			rel = path
		}
		entries = append(entries, importprofile.FileEntry{RelPath: rel, Size: info.Size()})
		totalSize += info.Size()
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return entries, totalSize, latest
}
