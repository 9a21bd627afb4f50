package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/template"
)

// defaultBinDirs is the fixed candidate-directory list tried, in order,
// when the manifest declares no bin-dir, per spec.md §4.G. "." covers
// archives that place the binary at the archive root (common for
// single-binary releases); the rest cover the common "name-version-
// target/" and "bin/" layouts used by cargo-dist and goreleaser.
var defaultBinDirs = []string{
	".",
	"{ name }-{ version }-{ target }",
	"{ name }-{ target }",
	"bin",
}

// ResolveBinPath finds {bin}{binary-ext} inside extractedRoot. If binDir
// is non-empty it is expanded and sought exactly; otherwise
// defaultBinDirs is tried in order and the first directory that exists
// wins.
func ResolveBinPath(extractedRoot, binDir string, vars template.Vars, bin string) (string, error) {
	binaryExt := vars["binary-ext"]
	binFile := bin + binaryExt

	if binDir != "" {
		dir, err := template.Expand(binDir, vars)
		if err != nil {
			return "", ferr.New(ferr.Configuration, "extract.bindir.expand", "", err)
		}
		path := filepath.Join(extractedRoot, dir, binFile)
		if _, err := os.Stat(path); err != nil {
			return "", ferr.New(ferr.Integrity, "extract.bindir.missing", "", fmt.Errorf("declared bin-dir %q does not contain %q", dir, binFile))
		}
		return path, nil
	}

	for _, candidate := range defaultBinDirs {
		dir, err := template.Expand(candidate, vars)
		if err != nil {
			continue
		}
		path := filepath.Join(extractedRoot, dir, binFile)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	return "", ferr.New(ferr.Integrity, "extract.bindir.notfound", "", fmt.Errorf("no candidate bin-dir contained %q", binFile))
}
