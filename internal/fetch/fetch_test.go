package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsukumogami/crateferry/internal/manifest"
	"github.com/tsukumogami/crateferry/internal/platform"
)

func testPackage(t *testing.T, toml string) *manifest.ResolvedPackage {
	pkg, err := manifest.Parse([]byte(toml))
	require.NoError(t, err)
	return pkg
}

func TestCandidateURLsExpandsTemplate(t *testing.T) {
	pkg := testPackage(t, `
name = "ripgrep"
version = "14.1.0"
repo = "BurntSushi/ripgrep"

[package]
pkg-url = "https://example.com/{ name }-{ version }-{ target }{ archive-suffix }"
`)
	target := platform.NewTarget("x86_64-unknown-linux-gnu")

	urls, format, err := candidateURLs(pkg, target)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/ripgrep-14.1.0-x86_64-unknown-linux-gnu.tgz"}, urls)
	assert.EqualValues(t, "tgz", format)
}

func TestCandidateURLsAppliesOverride(t *testing.T) {
	pkg := testPackage(t, `
name = "fd"
version = "8.0.0"
repo = "sharkdp/fd"

[package]
pkg-url = "https://example.com/default/{ target }"
pkg-fmt = "tgz"

[package.overrides."x86_64-pc-windows-msvc"]
pkg-url = "https://example.com/windows/{ target }"
pkg-fmt = "zip"
`)
	target := platform.NewTarget("x86_64-pc-windows-msvc")

	urls, format, err := candidateURLs(pkg, target)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/windows/x86_64-pc-windows-msvc"}, urls)
	assert.EqualValues(t, "zip", format)
}

func TestEffectiveBinDirFallsBackToPackageDefault(t *testing.T) {
	pkg := testPackage(t, `
name = "fd"
version = "8.0.0"
repo = "sharkdp/fd"

[package]
pkg-url = "https://example.com/{ target }"
bin-dir = "release"
`)
	target := platform.NewTarget("x86_64-unknown-linux-gnu")
	assert.Equal(t, "release", effectiveBinDir(pkg, target))
}

func TestEffectiveBinDirOverride(t *testing.T) {
	pkg := testPackage(t, `
name = "fd"
version = "8.0.0"
repo = "sharkdp/fd"

[package]
pkg-url = "https://example.com/{ target }"
bin-dir = "release"

[package.overrides."x86_64-pc-windows-msvc"]
pkg-url = "https://example.com/windows/{ target }"
bin-dir = "win-release"
`)
	target := platform.NewTarget("x86_64-pc-windows-msvc")
	assert.Equal(t, "win-release", effectiveBinDir(pkg, target))
}

func TestPrimaryBinaryDefaultsToName(t *testing.T) {
	pkg := testPackage(t, `
name = "fd"
version = "8.0.0"

[package]
pkg-url = "https://example.com/{ target }"
`)
	assert.Equal(t, "fd", primaryBinary(pkg))
}
