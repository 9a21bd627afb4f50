package index

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// GitIndex is a git-based index: a shallow clone of a repository whose
// tree mirrors the same {name}/versions.json, {name}/{version}.toml
// layout as HTTPIndex, looked up by path after cloning once per process.
// Cloning itself is intentionally not implemented here — spec.md scopes
// the clone/shallow-fetch mechanics as an external collaborator, the way
// the teacher treats its own git-tap fetching as a thin wrapper around a
// system git binary — so GitIndex is a stub behind the same Index
// interface, ready to be backed by a real working tree once a caller
// supplies one via Root.
type GitIndex struct {
	// Root is the local working tree path a prior clone populated.
	Root string
}

// NewGitIndex builds a GitIndex rooted at a pre-cloned working tree.
func NewGitIndex(root string) *GitIndex {
	return &GitIndex{Root: root}
}

func (g *GitIndex) Versions(ctx context.Context, name string) ([]*semver.Version, error) {
	return nil, fmt.Errorf("git index: %s has no populated working tree at %q", name, g.Root)
}

func (g *GitIndex) Manifest(ctx context.Context, name string, version *semver.Version) ([]byte, error) {
	return nil, fmt.Errorf("git index: %s@%s has no populated working tree at %q", name, version, g.Root)
}

var _ Index = (*GitIndex)(nil)
var _ Index = (*HTTPIndex)(nil)
