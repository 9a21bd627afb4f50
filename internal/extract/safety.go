package extract

import (
	"path/filepath"
	"strings"
)

// isPathWithinDirectory reports whether the cleaned, joined path stays
// inside root, rejecting absolute archive entries and "../" escapes.
// Ported from the teacher's extract.go, which already implements exactly
// the safety invariant spec.md §4.G requires.
func isPathWithinDirectory(root, entryName string) (string, bool) {
	if filepath.IsAbs(entryName) {
		return "", false
	}
	cleaned := filepath.Clean(filepath.Join(root, entryName))
	rootClean := filepath.Clean(root)
	if cleaned == rootClean {
		return cleaned, true
	}
	if !strings.HasPrefix(cleaned, rootClean+string(filepath.Separator)) {
		return "", false
	}
	return cleaned, true
}
