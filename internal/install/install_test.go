package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSourceFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInstallStagesVersionedAndBinDirCopies(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()

	binSrc := writeSourceFile(t, src, "fd", "binary-bytes")

	i := New(Options{
		ToolsDir:    filepath.Join(root, "tools"),
		BinDir:      filepath.Join(root, "bin"),
		UseSymlinks: false,
	})

	finalPaths, err := i.Install("fd", "8.0.0", map[string]string{"fd": binSrc})
	require.NoError(t, err)
	require.Contains(t, finalPaths, "fd")

	versioned := filepath.Join(root, "tools", "fd", "8.0.0", "fd")
	data, err := os.ReadFile(versioned)
	require.NoError(t, err)
	assert.Equal(t, "binary-bytes", string(data))

	data, err = os.ReadFile(finalPaths["fd"])
	require.NoError(t, err)
	assert.Equal(t, "binary-bytes", string(data))

	info, err := os.Stat(finalPaths["fd"])
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100)
}

func TestInstallWithSymlinksLinksBinDirToVersionedPath(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	binSrc := writeSourceFile(t, src, "fd", "binary-bytes")

	i := New(Options{
		ToolsDir:    filepath.Join(root, "tools"),
		BinDir:      filepath.Join(root, "bin"),
		UseSymlinks: true,
	})

	finalPaths, err := i.Install("fd", "8.0.0", map[string]string{"fd": binSrc})
	require.NoError(t, err)

	info, err := os.Lstat(finalPaths["fd"])
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0)

	target, err := os.Readlink(finalPaths["fd"])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "tools", "fd", "8.0.0", "fd"), target)
}

func TestInstallMultipleBinariesAllLand(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	aSrc := writeSourceFile(t, src, "a", "a-bytes")
	bSrc := writeSourceFile(t, src, "b", "b-bytes")

	i := New(Options{
		ToolsDir: filepath.Join(root, "tools"),
		BinDir:   filepath.Join(root, "bin"),
	})

	finalPaths, err := i.Install("pkg", "1.0.0", map[string]string{"a": aSrc, "b": bSrc})
	require.NoError(t, err)
	require.Len(t, finalPaths, 2)

	for _, bin := range []string{"a", "b"} {
		_, err := os.Stat(finalPaths[bin])
		require.NoError(t, err)
	}
}

func TestInstallMissingSourceRollsBackPriorBinaries(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	aSrc := writeSourceFile(t, src, "a", "a-bytes")

	i := New(Options{
		ToolsDir: filepath.Join(root, "tools"),
		BinDir:   filepath.Join(root, "bin"),
	})

	_, err := i.Install("pkg", "1.0.0", map[string]string{
		"a": aSrc,
		"b": filepath.Join(src, "does-not-exist"),
	})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(root, "tools", "pkg", "1.0.0", "a"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(root, "bin", "a"))
	assert.True(t, os.IsNotExist(statErr))
}
