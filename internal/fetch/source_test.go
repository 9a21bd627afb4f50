package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsukumogami/crateferry/internal/manifest"
	"github.com/tsukumogami/crateferry/internal/platform"
)

func TestRepoCloneURLAddsGitHubHost(t *testing.T) {
	assert.Equal(t, "https://github.com/sharkdp/fd", repoCloneURL("sharkdp/fd"))
}

func TestRepoCloneURLKeepsExplicitScheme(t *testing.T) {
	assert.Equal(t, "https://gitlab.com/owner/name", repoCloneURL("https://gitlab.com/owner/name"))
}

func TestSourceFetcherFindReturnsSyntheticCandidate(t *testing.T) {
	pkg := testPackage(t, `
name = "fd"
version = "8.0.0"
repo = "sharkdp/fd"

[package]
pkg-url = "https://example.com/{ target }"
`)

	f := NewSourceFetcher(testSession(t))
	candidates, err := f.Find(context.Background(), pkg, platform.NewTarget("x86_64-unknown-linux-gnu"))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, sourceURLPrefix+"https://github.com/sharkdp/fd", candidates[0].URL)
	assert.Equal(t, "source", candidates[0].Strategy)
}

func TestSourceFetcherFindNoRepoReturnsNoCandidates(t *testing.T) {
	pkg := testPackage(t, `
name = "fd"
version = "8.0.0"

[package]
pkg-url = "https://example.com/{ target }"
`)

	f := NewSourceFetcher(testSession(t))
	candidates, err := f.Find(context.Background(), pkg, platform.NewTarget("x86_64-unknown-linux-gnu"))
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSourceFetcherVerifyAndExtractRejectsUnknownBuildSystem(t *testing.T) {
	dir := t.TempDir()
	pkg := testPackage(t, `
name = "fd"
version = "8.0.0"

[package]
pkg-url = "https://example.com/{ target }"
`)

	f := NewSourceFetcher(testSession(t))
	_, err := f.VerifyAndExtract(context.Background(), Candidate{}, dir, pkg, filepath.Join(dir, "out"))
	require.Error(t, err)
}

func TestCollectBinariesMissingBinaryIsError(t *testing.T) {
	dir := t.TempDir()
	_, err := collectBinaries(dir, filepath.Join(dir, "out"), []manifest.Binary{{Name: "fd"}})
	require.Error(t, err)
}

func TestCollectBinariesCopiesBuiltFiles(t *testing.T) {
	buildDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(destDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(buildDir, "fd"), []byte("built-binary"), 0o755))

	paths, err := collectBinaries(buildDir, destDir, []manifest.Binary{{Name: "fd"}})
	require.NoError(t, err)

	data, err := os.ReadFile(paths["fd"])
	require.NoError(t, err)
	assert.Equal(t, "built-binary", string(data))
}
