package ingest

import (
	"strings"

	"github.com/polyforge/polyforge/internal/types"
)

// ExtractExtension returns filename's extension, lower-cased, handling the
// double extensions .tar.gz/.tgz specially (spec §3 Attachment).
func ExtractExtension(filename string) string {
	if filename == "" {
		return ""
	}
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"):
		return ".tar.gz"
	case strings.HasSuffix(lower, ".tgz"):
		return ".tgz"
	}
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		return strings.ToLower(filename[idx:])
	}
	return ""
}

// IsCandidateDesignFile reports whether ext marks filename as a
// potential design file (spec §3's CandidateDesignExtensions).
func IsCandidateDesignFile(ext string) bool {
	return ext != "" && types.CandidateDesignExtensions[ext]
}

// StripExtension removes ExtractExtension's result from filename, for use
// as a title fallback.
func StripExtension(filename string) string {
	ext := ExtractExtension(filename)
	if ext == "" {
		return filename
	}
	return filename[:len(filename)-len(ext)]
}
