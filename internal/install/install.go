// Package install stages binaries into a versioned tool directory and
// links them into a PATH-visible bin directory, atomically (spec.md
// §4.I).
package install

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/tsukumogami/crateferry/internal/ferr"
)

// Options configures where installed binaries land.
type Options struct {
	// ToolsDir holds one versioned subdirectory per (name, version), e.g.
	// ToolsDir/fd/8.0.0/fd.
	ToolsDir string
	// BinDir is the PATH-visible directory binaries are linked into.
	BinDir string
	// UseSymlinks links BinDir entries to the versioned path instead of
	// copying. Falls back to a direct copy per-binary when symlink
	// creation fails (e.g. Windows without developer mode or
	// SeCreateSymbolicLinkPrivilege).
	UseSymlinks bool
}

// Installer stages one package's binaries per Options.
type Installer struct {
	Options Options
}

// New builds an Installer.
func New(opts Options) *Installer {
	return &Installer{Options: opts}
}

// Install stages each binary in binPaths (name -> source file on disk,
// typically a fetch strategy's extracted output) into the versioned tool
// directory, then links or copies it into BinDir. It returns the final
// BinDir path for each binary name.
//
// Any step's failure removes every file this call has already staged for
// this package, so a partial install never lands.
func (i *Installer) Install(name, version string, binPaths map[string]string) (map[string]string, error) {
	versionedDir := filepath.Join(i.Options.ToolsDir, name, version)
	if err := os.MkdirAll(versionedDir, 0o755); err != nil {
		return nil, ferr.New(ferr.Filesystem, "install.install", name, err)
	}

	var staged []string
	rollback := func() {
		for _, p := range staged {
			os.Remove(p)
		}
	}

	binNames := make([]string, 0, len(binPaths))
	for bin := range binPaths {
		binNames = append(binNames, bin)
	}
	sort.Strings(binNames)

	finalPaths := make(map[string]string, len(binNames))
	for _, bin := range binNames {
		src := binPaths[bin]
		versionedTarget := filepath.Join(versionedDir, bin)
		if err := stageAndReplace(src, versionedTarget, true); err != nil {
			rollback()
			return nil, ferr.New(ferr.Filesystem, "install.stage", name, err)
		}
		staged = append(staged, versionedTarget)

		finalTarget := filepath.Join(i.Options.BinDir, bin)
		if err := i.linkOrCopy(versionedTarget, finalTarget); err != nil {
			rollback()
			return nil, ferr.New(ferr.Filesystem, "install.link", name, err)
		}
		staged = append(staged, finalTarget)
		finalPaths[bin] = finalTarget
	}

	return finalPaths, nil
}

// linkOrCopy symlinks linkPath to target, falling back to a direct copy
// when the platform refuses symlink creation.
func (i *Installer) linkOrCopy(target, linkPath string) error {
	if !i.Options.UseSymlinks {
		return stageAndReplace(target, linkPath, true)
	}

	dir := filepath.Dir(linkPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, ".tmp."+uuid.NewString()+".link")
	if err := os.Symlink(target, tmp); err != nil {
		return stageAndReplace(target, linkPath, true)
	}
	if err := atomicReplace(tmp, linkPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// stageAndReplace copies src into a uuid-suffixed temp file beside dst,
// optionally marks it executable, then atomically replaces dst. Staging
// in dst's own directory keeps the final rename on the same filesystem,
// which is what makes it atomic.
func stageAndReplace(src, dst string, executable bool) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := filepath.Join(dir, ".tmp."+uuid.NewString()+"."+filepath.Base(dst))
	if err := copyFile(src, tmp, executable); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := atomicReplace(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func copyFile(src, dst string, executable bool) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	mode := os.FileMode(0o644)
	if executable {
		mode = 0o755
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
