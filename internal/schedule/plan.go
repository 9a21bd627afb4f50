package schedule

import (
	"os"

	"github.com/tsukumogami/crateferry/internal/fetch"
	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/platform"
)

// PlanEntry is one package's resolved, staged install candidate, awaiting
// confirmation before internal/install commits it into place.
type PlanEntry struct {
	Package    string
	Version    string
	Strategy   string
	Target     platform.Target
	Candidate  fetch.Candidate
	BinPaths   map[string]string
	StagingDir string
}

// Plan is the confirmation gate between resolution and install: every
// Entries member has already been fetched, verified, and extracted into
// its StagingDir, but nothing has touched the install target yet.
type Plan struct {
	Entries  []PlanEntry
	Failures []Failure
}

// Discard removes every entry's staged artifacts, for use when the user
// declines the plan or an unresolved failure aborts the run. Errors
// removing individual staging directories are collected but don't stop
// the sweep, since the confirmation gate has already been rejected.
func (p *Plan) Discard() error {
	var firstErr error
	for _, entry := range p.Entries {
		if entry.StagingDir == "" {
			continue
		}
		if err := os.RemoveAll(entry.StagingDir); err != nil && firstErr == nil {
			firstErr = ferr.New(ferr.Filesystem, "schedule.discard", entry.Package, err)
		}
	}
	return firstErr
}
