package clouddrive

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/polyforge/polyforge/internal/importprofile"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// DetectDesigns applies §4.5-style detection to root's virtual tree:
// every immediate subfolder is a candidate design, classified by the
// model/archive/preview file counts found anywhere beneath it (spec §4.12:
// "applies detection against the virtual tree").
func DetectDesigns(root *VirtualFolder, config types.ImportProfileConfig) []interfaces.DetectedDesign {
	det := config.Detection
	modelExt := toLowerSet(det.ModelExtensions)
	archiveExt := toLowerSet(det.ArchiveExtensions)
	previewExt := toLowerSet(config.Preview.Extensions)

	minModelFiles := det.MinModelFiles
	if minModelFiles <= 0 {
		minModelFiles = 1
	}

	var out []interfaces.DetectedDesign
	for _, sub := range root.Subfolders {
		var modelFiles, archiveFiles, previewFiles []string
		var entries []importprofile.FileEntry
		var sizeBytes int64
		var maxMtime time.Time

		for _, entry := range sub.AllFilesRecursive() {
			ext := strings.ToLower(filepath.Ext(entry.File.Name))
			switch {
			case modelExt[ext]:
				modelFiles = append(modelFiles, entry.RelPath)
			case archiveExt[ext]:
				archiveFiles = append(archiveFiles, entry.RelPath)
			case previewExt[ext]:
				previewFiles = append(previewFiles, entry.RelPath)
			}
			entries = append(entries, importprofile.FileEntry{RelPath: entry.RelPath, Size: entry.File.Size})
			sizeBytes += entry.File.Size
			if entry.File.ModifiedTime.After(maxMtime) {
				maxMtime = entry.File.ModifiedTime
			}
		}

		if len(modelFiles) < minModelFiles && len(archiveFiles) == 0 {
			continue
		}

		out = append(out, interfaces.DetectedDesign{
			RelativePath:  sub.Name,
			Title:         sub.Name,
			SizeBytes:     sizeBytes,
			Mtime:         maxMtime,
			Fingerprint:   importprofile.Fingerprint(entries),
			DriveFolderID: sub.ID,
			ModelFiles:    modelFiles,
			ArchiveFiles:  archiveFiles,
			PreviewFiles:  previewFiles,
		})
	}
	return out
}

func toLowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[strings.ToLower(s)] = true
	}
	return set
}
