package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/template"
)

func writeTarGz(t *testing.T, path string, files map[string]string) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o755, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
}

func writeZip(t *testing.T, path string, files map[string]string) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestExtractTgz(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "fd.tgz")
	writeTarGz(t, archive, map[string]string{"fd": "binary-contents"})

	dest := filepath.Join(dir, "out")
	err := Extract(archive, template.FormatTgz, dest)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "fd"))
	require.NoError(t, err)
	assert.Equal(t, "binary-contents", string(data))
}

func TestExtractTgzRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tgz")

	f, err := os.Create(archive)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	hdr := &tar.Header{Name: "../../escape", Mode: 0o644, Size: 4}
	require.NoError(t, tw.WriteHeader(hdr))
	_, err = tw.Write([]byte("evil"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	f.Close()

	dest := filepath.Join(dir, "out")
	err = Extract(archive, template.FormatTgz, dest)
	require.Error(t, err)
	assert.True(t, ferr.Is(err, ferr.Integrity))
}

func TestExtractTgzSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "link.tgz")

	f, err := os.Create(archive)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	hdr := &tar.Header{Name: "fd-link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"}
	require.NoError(t, tw.WriteHeader(hdr))
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	f.Close()

	dest := filepath.Join(dir, "out")
	err = Extract(archive, template.FormatTgz, dest)
	require.NoError(t, err)

	_, statErr := os.Lstat(filepath.Join(dest, "fd-link"))
	assert.Error(t, statErr, "symlink entries must not be materialized")
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "fd.zip")
	writeZip(t, archive, map[string]string{"fd.exe": "windows-binary"})

	dest := filepath.Join(dir, "out")
	err := Extract(archive, template.FormatZip, dest)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "fd.exe"))
	require.NoError(t, err)
	assert.Equal(t, "windows-binary", string(data))
}

func TestExtractZipRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{"../../escape": "evil"})

	dest := filepath.Join(dir, "out")
	err := Extract(archive, template.FormatZip, dest)
	require.Error(t, err)
	assert.True(t, ferr.Is(err, ferr.Integrity))
}

func TestExtractRawBinary(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "fd")
	require.NoError(t, os.WriteFile(archive, []byte("binary-contents"), 0o755))

	dest := filepath.Join(dir, "out")
	err := Extract(archive, template.FormatBin, dest)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "fd"))
	require.NoError(t, err)
	assert.Equal(t, "binary-contents", string(data))
}

func TestDetectFormatDeclaredWins(t *testing.T) {
	got := DetectFormat(template.FormatZip, "https://example/fd.tgz", nil)
	assert.Equal(t, template.FormatZip, got)
}

func TestDetectFormatFromExtension(t *testing.T) {
	got := DetectFormat("", "https://example/fd.tar.xz", nil)
	assert.Equal(t, template.FormatTxz, got)
}

func TestDetectFormatFromMagic(t *testing.T) {
	gzMagic := []byte{0x1f, 0x8b, 0x08, 0x00}
	got := DetectFormat("", "https://example/fd", gzMagic)
	assert.Equal(t, template.FormatTgz, got)
}

func TestDetectFormatFallsBackToBin(t *testing.T) {
	got := DetectFormat("", "https://example/fd", []byte("not-an-archive"))
	assert.Equal(t, template.FormatBin, got)
}

func TestResolveBinPathDeclaredBinDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "release"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "release", "fd"), []byte("x"), 0o755))

	path, err := ResolveBinPath(dir, "release", template.Vars{"binary-ext": ""}, "fd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "release", "fd"), path)
}

func TestResolveBinPathDefaultCandidates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fd"), []byte("x"), 0o755))

	path, err := ResolveBinPath(dir, "", template.Vars{"binary-ext": "", "name": "fd", "version": "1.0", "target": "x"}, "fd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fd"), path)
}

func TestResolveBinPathNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := ResolveBinPath(dir, "", template.Vars{"binary-ext": "", "name": "fd", "version": "1.0", "target": "x"}, "fd")
	require.Error(t, err)
	assert.True(t, ferr.Is(err, ferr.Integrity))
}
