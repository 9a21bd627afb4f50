package fetch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/tsukumogami/crateferry/internal/extract"
	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/manifest"
	"github.com/tsukumogami/crateferry/internal/platform"
	"github.com/tsukumogami/crateferry/internal/sign"
	"github.com/tsukumogami/crateferry/internal/template"
)

// MetadataFetcher locates prebuilt release assets by probing the
// manifest's declared pkg-url templates, plus — when pkg.Repo points at
// github.com — cross-checking against the repository's actual release
// asset listing via the GitHub API, grounded on the teacher's download.go
// HTTP-probe shape.
type MetadataFetcher struct {
	Session *Session
	GitHub  *github.Client
	Policy  sign.Policy
}

// NewMetadataFetcher builds a MetadataFetcher sharing session's rate
// limit, TLS floor, and retry policy for both the probe requests and the
// GitHub API client.
func NewMetadataFetcher(session *Session, policy sign.Policy) *MetadataFetcher {
	return &MetadataFetcher{
		Session: session,
		GitHub:  github.NewClient(session.Client),
		Policy:  policy,
	}
}

func (f *MetadataFetcher) Name() string { return "metadata" }

// Find expands pkg's pkg-url templates for target and probes each with a
// HEAD request, never downloading the archive body. Candidates that
// return anything but 200/2xx are dropped rather than failing Find
// outright — a 404 just means this strategy has nothing for this
// (package, target), which the scheduler treats as "no candidates", not
// an error.
func (f *MetadataFetcher) Find(ctx context.Context, pkg *manifest.ResolvedPackage, target platform.Target) ([]Candidate, error) {
	urls, format, err := candidateURLs(pkg, target)
	if err != nil {
		return nil, ferr.New(ferr.Configuration, "fetch.metadata.find", pkg.Name, err)
	}

	var candidates []Candidate
	for _, url := range urls {
		if f.probe(ctx, url) {
			candidates = append(candidates, Candidate{URL: url, Target: target, Format: format, Strategy: f.Name()})
		}
	}

	if len(candidates) == 0 && isGitHubRepo(pkg.Repo) {
		if c, ok := f.probeGitHubRelease(ctx, pkg, target, format); ok {
			candidates = append(candidates, c)
		}
	}

	return candidates, nil
}

func (f *MetadataFetcher) probe(ctx context.Context, url string) bool {
	resp, err := f.Session.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	})
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// probeGitHubRelease asks the GitHub releases API directly for a
// matching asset name, a fallback for repos whose pkg-url templates
// don't quite match the upload's actual filename (renamed assets,
// surprise suffixes).
func (f *MetadataFetcher) probeGitHubRelease(ctx context.Context, pkg *manifest.ResolvedPackage, target platform.Target, format template.PkgFormat) (Candidate, bool) {
	owner, repo, ok := splitGitHubRepo(pkg.Repo)
	if !ok {
		return Candidate{}, false
	}

	release, _, err := f.GitHub.Repositories.GetReleaseByTag(ctx, owner, repo, "v"+pkg.Version)
	if err != nil {
		release, _, err = f.GitHub.Repositories.GetReleaseByTag(ctx, owner, repo, pkg.Version)
		if err != nil {
			return Candidate{}, false
		}
	}

	vars := template.StandardVars(pkg.Name, pkg.Version, pkg.Repo, primaryBinary(pkg), target, format)
	wantArch := vars["target-arch"]
	wantOS := vars["target-os"]

	for _, asset := range release.Assets {
		name := strings.ToLower(asset.GetName())
		if strings.Contains(name, strings.ToLower(wantArch)) && strings.Contains(name, strings.ToLower(wantOS)) {
			detected := extract.DetectFormat("", name, nil)
			return Candidate{URL: asset.GetBrowserDownloadURL(), Target: target, Format: detected, Strategy: f.Name()}, true
		}
	}
	return Candidate{}, false
}

// Fetch downloads candidate.URL to destPath.
func (f *MetadataFetcher) Fetch(ctx context.Context, candidate Candidate, destPath string) error {
	resp, err := f.Session.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, candidate.URL, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ferr.New(ferr.Candidate, "fetch.metadata.fetch", "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, candidate.URL))
	}

	out, err := os.Create(destPath)
	if err != nil {
		return ferr.New(ferr.Filesystem, "fetch.metadata.fetch", "", err)
	}
	defer out.Close()

	if _, err := copyLimited(out, resp.Body); err != nil {
		return ferr.New(ferr.Transport, "fetch.metadata.fetch", "", err)
	}
	return nil
}

// VerifyAndExtract verifies archivePath's signature when required and
// extracts it into destDir, returning each declared binary's resolved
// path.
func (f *MetadataFetcher) VerifyAndExtract(ctx context.Context, candidate Candidate, archivePath string, pkg *manifest.ResolvedPackage, destDir string) (map[string]string, error) {
	return verifyAndExtractCommon(ctx, f.Session, f.Policy, candidate, archivePath, pkg, destDir)
}

// isGitHubRepo reports whether repo looks like a bare "owner/name"
// shorthand, the manifest convention (spec.md §6's Repo field), which
// this strategy treats as a github.com coordinate.
func isGitHubRepo(repo string) bool {
	_, _, ok := splitGitHubRepo(repo)
	return ok
}

func splitGitHubRepo(repo string) (owner, name string, ok bool) {
	trimmed := strings.TrimPrefix(repo, "github.com/")
	if strings.Contains(trimmed, "://") {
		return "", "", false
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", "", false
	}
	return parts[0], parts[1], true
}
