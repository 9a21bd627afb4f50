// Package fetch locates, downloads, verifies, and extracts a candidate
// binary for one (package, target) pair via one of several strategies
// (spec.md §4.E).
package fetch

import (
	"context"

	"github.com/tsukumogami/crateferry/internal/manifest"
	"github.com/tsukumogami/crateferry/internal/platform"
	"github.com/tsukumogami/crateferry/internal/template"
)

// Candidate is one located download target: a concrete URL, the target
// triple it was built for, the archive format it's expected in, and the
// strategy name that found it.
type Candidate struct {
	URL      string
	Target   platform.Target
	Format   template.PkgFormat
	Strategy string
}

// Fetcher is the shared shape of every strategy: locate candidates
// without downloading archive bodies, download one, then verify and
// extract it. The scheduler races Find across strategies and targets,
// then drives the winning candidate through Fetch and VerifyAndExtract.
type Fetcher interface {
	// Name identifies the strategy for logging, disabled-strategies
	// matching, and Candidate.Strategy.
	Name() string

	// Find returns every candidate this strategy can locate for pkg on
	// target, probing cheaply (HEAD/conditional GET, API metadata calls)
	// without ever downloading a full archive body.
	Find(ctx context.Context, pkg *manifest.ResolvedPackage, target platform.Target) ([]Candidate, error)

	// Fetch downloads candidate's archive body to destPath.
	Fetch(ctx context.Context, candidate Candidate, destPath string) error

	// VerifyAndExtract verifies archivePath's signature (if required by
	// policy) and extracts it into destDir, returning the resolved path
	// of each declared binary.
	VerifyAndExtract(ctx context.Context, candidate Candidate, archivePath string, pkg *manifest.ResolvedPackage, destDir string) (map[string]string, error)
}

// candidateURLs expands pkg's pkg-url templates (after override
// resolution for target) into concrete URLs, following spec.md §4.A's
// exact-triple-then-cfg match order via template.MatchOverride.
func candidateURLs(pkg *manifest.ResolvedPackage, target platform.Target) ([]string, template.PkgFormat, error) {
	vars := template.StandardVars(pkg.Name, pkg.Version, pkg.Repo, primaryBinary(pkg), target, pkg.PkgFmt)

	pkgURLTemplates := pkg.PkgURL
	format := pkg.PkgFmt

	if override, ok := template.MatchOverride(pkg.Overrides, target.String(), vars); ok {
		if len(override.PkgURL) > 0 {
			pkgURLTemplates = override.PkgURL
		}
		if override.Format != "" {
			format = template.PkgFormat(override.Format)
		}
	}

	vars = template.StandardVars(pkg.Name, pkg.Version, pkg.Repo, primaryBinary(pkg), target, format)

	urls := make([]string, 0, len(pkgURLTemplates))
	for _, tmpl := range pkgURLTemplates {
		expanded, err := template.Expand(tmpl, vars)
		if err != nil {
			return nil, "", err
		}
		urls = append(urls, expanded)
	}
	return urls, format, nil
}

func primaryBinary(pkg *manifest.ResolvedPackage) string {
	if len(pkg.Binaries) == 0 {
		return pkg.Name
	}
	return pkg.Binaries[0].Name
}

// effectiveBinDir returns pkg's bin-dir as overridden for target, per the
// same match order candidateURLs uses.
func effectiveBinDir(pkg *manifest.ResolvedPackage, target platform.Target) string {
	vars := template.StandardVars(pkg.Name, pkg.Version, pkg.Repo, primaryBinary(pkg), target, pkg.PkgFmt)
	if override, ok := template.MatchOverride(pkg.Overrides, target.String(), vars); ok && override.BinDir != "" {
		return override.BinDir
	}
	return pkg.BinDir
}
