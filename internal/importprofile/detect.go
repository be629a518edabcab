// Package importprofile implements the folder-detection algorithm of spec
// §4.5: a declarative ImportProfile config drives a depth-first walk of a
// directory tree that decides which folders are designs, extracts their
// title, and collects model/archive/preview files.
package importprofile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// Detector walks a filesystem tree under one ImportProfileConfig.
type Detector struct {
	config types.ImportProfileConfig
}

// NewDetector builds a Detector for the given profile config.
func NewDetector(config types.ImportProfileConfig) *Detector {
	return &Detector{config: config}
}

// detected is one folder the detector decided is a design, relative to the
// scan root.
type detected struct {
	path   string
	result interfaces.DetectedDesign
}

// Detect walks root and returns every detected design, depth-first, never
// recursing below a folder already classified as a design (spec §4.5 step 6).
func (d *Detector) Detect(ctx context.Context, root string) ([]interfaces.DetectedDesign, error) {
	var out []detected
	d.walk(ctx, root, root, 0, &out)

	designs := make([]interfaces.DetectedDesign, 0, len(out))
	for _, o := range out {
		designs = append(designs, o.result)
	}
	return designs, nil
}

func (d *Detector) walk(ctx context.Context, root, dir string, depth int, out *[]detected) {
	name := filepath.Base(dir)
	if d.shouldIgnoreFolder(name) {
		return
	}

	if dd := d.config.Detection.DesignDepth; dd != nil {
		switch {
		case depth == *dd:
			if res, ok := d.detectAtDepth(root, dir); ok {
				*out = append(*out, detected{path: dir, result: res})
			}
			return
		case depth < *dd:
			d.recurseChildren(ctx, root, dir, depth, out)
			return
		default:
			return
		}
	}

	if res, ok := d.isDesignFolder(ctx, root, dir); ok {
		*out = append(*out, detected{path: dir, result: res})
		return
	}

	d.recurseChildren(ctx, root, dir, depth, out)
}

func (d *Detector) recurseChildren(ctx context.Context, root, dir string, depth int, out *[]detected) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn(ctx, "importprofile_permission_denied", "path", dir, "error", err.Error())
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			d.walk(ctx, root, filepath.Join(dir, e.Name()), depth+1, out)
		}
	}
}

// isDesignFolder implements spec §4.5 steps 1,3,4,5 for non-depth-based
// detection.
func (d *Detector) isDesignFolder(ctx context.Context, root, dir string) (interfaces.DetectedDesign, bool) {
	det := d.config.Detection
	modelExt := toLowerSet(det.ModelExtensions)
	archiveExt := toLowerSet(det.ArchiveExtensions)

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn(ctx, "importprofile_permission_denied", "path", dir, "error", err.Error())
		return interfaces.DetectedDesign{}, false
	}

	var modelFiles, archiveFiles []string
	var sizeBytes int64
	var maxMtime time.Time

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		rel := e.Name()
		if modelExt[ext] {
			modelFiles = append(modelFiles, rel)
		} else if archiveExt[ext] {
			archiveFiles = append(archiveFiles, rel)
		}
		sizeBytes += info.Size()
		if info.ModTime().After(maxMtime) {
			maxMtime = info.ModTime()
		}
	}

	if det.Structure == types.StructureNested || det.Structure == types.StructureAuto {
		for _, sub := range det.ModelSubfolders {
			subPath := filepath.Join(dir, sub)
			if !isDir(subPath) {
				continue
			}
			walkFiles(subPath, func(relPath string, info os.FileInfo) {
				ext := strings.ToLower(filepath.Ext(relPath))
				if modelExt[ext] {
					modelFiles = append(modelFiles, filepath.Join(sub, relPath))
					sizeBytes += info.Size()
					if info.ModTime().After(maxMtime) {
						maxMtime = info.ModTime()
					}
				}
			})
		}
	}

	previewFiles, hasPreviewFolder := d.findPreviewFiles(dir)
	if det.RequirePreviewFolder && !hasPreviewFolder {
		return interfaces.DetectedDesign{}, false
	}

	minModelFiles := det.MinModelFiles
	if minModelFiles <= 0 {
		minModelFiles = 1
	}
	isDesign := len(modelFiles) >= minModelFiles || len(archiveFiles) > 0
	if !isDesign {
		return interfaces.DetectedDesign{}, false
	}

	rel, _ := filepath.Rel(root, dir)
	return interfaces.DetectedDesign{
		RelativePath: rel,
		Title:        d.extractTitle(dir),
		SizeBytes:    sizeBytes,
		Mtime:        maxMtime,
		ModelFiles:   modelFiles,
		ArchiveFiles: archiveFiles,
		PreviewFiles: previewFiles,
	}, true
}

// detectAtDepth implements spec §4.5 step 2: a folder at design_depth is a
// design iff it recursively contains >=1 model or archive file; titles and
// previews are gathered from the entire subtree.
func (d *Detector) detectAtDepth(root, dir string) (interfaces.DetectedDesign, bool) {
	det := d.config.Detection
	modelExt := toLowerSet(det.ModelExtensions)
	archiveExt := toLowerSet(det.ArchiveExtensions)
	previewExt := toLowerSet(d.config.Preview.Extensions)

	var modelFiles, archiveFiles, previewFiles []string
	var sizeBytes int64
	var maxMtime time.Time

	walkFiles(dir, func(relPath string, info os.FileInfo) {
		ext := strings.ToLower(filepath.Ext(relPath))
		switch {
		case modelExt[ext]:
			modelFiles = append(modelFiles, relPath)
		case archiveExt[ext]:
			archiveFiles = append(archiveFiles, relPath)
		case previewExt[ext]:
			previewFiles = append(previewFiles, relPath)
		}
		sizeBytes += info.Size()
		if info.ModTime().After(maxMtime) {
			maxMtime = info.ModTime()
		}
	})

	if len(modelFiles) == 0 && len(archiveFiles) == 0 {
		return interfaces.DetectedDesign{}, false
	}

	rel, _ := filepath.Rel(root, dir)
	return interfaces.DetectedDesign{
		RelativePath: rel,
		Title:        d.extractTitle(dir),
		SizeBytes:    sizeBytes,
		Mtime:        maxMtime,
		ModelFiles:   modelFiles,
		ArchiveFiles: archiveFiles,
		PreviewFiles: previewFiles,
	}, true
}

func (d *Detector) shouldIgnoreFolder(name string) bool {
	ig := d.config.Ignore
	for _, f := range ig.Folders {
		if f == name {
			return true
		}
	}
	for _, pattern := range ig.Patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// findPreviewFiles implements spec §4.5 preview group; matching against
// wildcard_folders is case-insensitive (SPEC_FULL.md §D.2).
func (d *Detector) findPreviewFiles(dir string) ([]string, bool) {
	prev := d.config.Preview
	previewExt := toLowerSet(prev.Extensions)
	var files []string
	hasFolder := false

	if prev.IncludeRoot {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				if previewExt[strings.ToLower(filepath.Ext(e.Name()))] {
					files = append(files, e.Name())
				}
			}
		}
	}

	for _, name := range prev.Folders {
		sub := filepath.Join(dir, name)
		if !isDir(sub) {
			continue
		}
		hasFolder = true
		walkFiles(sub, func(relPath string, info os.FileInfo) {
			if previewExt[strings.ToLower(filepath.Ext(relPath))] {
				files = append(files, filepath.Join(name, relPath))
			}
		})
	}

	for _, pattern := range prev.WildcardFolders {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		lowerPattern := strings.ToLower(pattern)
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if ok, _ := filepath.Match(lowerPattern, strings.ToLower(e.Name())); !ok {
				continue
			}
			hasFolder = true
			sub := filepath.Join(dir, e.Name())
			walkFiles(sub, func(relPath string, info os.FileInfo) {
				if previewExt[strings.ToLower(filepath.Ext(relPath))] {
					files = append(files, filepath.Join(e.Name(), relPath))
				}
			})
		}
	}

	return files, hasFolder
}

// extractTitle implements spec §4.5's title extraction: pick the name per
// title.source, strip literal patterns, apply the case transform, falling
// back to the raw name if stripping empties it.
func (d *Detector) extractTitle(dir string) string {
	t := d.config.Title
	var raw string
	switch t.Source {
	case types.TitleFromParentFolder:
		raw = filepath.Base(filepath.Dir(dir))
	default:
		raw = filepath.Base(dir)
	}

	title := raw
	for _, pattern := range t.StripPatterns {
		title = strings.TrimSpace(strings.ReplaceAll(title, pattern, ""))
	}
	if title == "" {
		title = raw
	}

	switch t.CaseTransform {
	case types.CaseTitle:
		title = titleCase(title)
	case types.CaseLower:
		title = strings.ToLower(title)
	case types.CaseUpper:
		title = strings.ToUpper(title)
	}

	return strings.TrimSpace(title)
}

// titleCase upper-cases the first letter of each whitespace-separated word,
// avoiding the deprecated strings.Title.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func toLowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[strings.ToLower(s)] = true
	}
	return set
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// walkFiles recursively visits every regular file under root, invoking fn
// with the path relative to root. Permission errors on a subdirectory are
// skipped silently (caller-level ignore semantics already filtered the
// deliberately-excluded folders).
func walkFiles(root string, fn func(relPath string, info os.FileInfo)) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		full := filepath.Join(root, e.Name())
		if e.IsDir() {
			walkFiles(full, func(rel string, info os.FileInfo) {
				fn(filepath.Join(e.Name(), rel), info)
			})
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		fn(e.Name(), info)
	}
}
