package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/manifest"
	"github.com/tsukumogami/crateferry/internal/platform"
	"github.com/tsukumogami/crateferry/internal/sign"
	"github.com/tsukumogami/crateferry/internal/template"
)

// RebuildFetcher queries a community rebuild/provenance service for a
// reproducible build matching (name, version, target), the strategy
// spec.md §4.E calls "community-rebuild". Grounded on the same
// httputil-backed GET pattern as the teacher's download.go, loosely
// modeled on other_examples' google-oss-rebuild manifest's
// attestation-lookup-by-coordinate shape.
type RebuildFetcher struct {
	Session *Session
	BaseURL string
	Policy  sign.Policy
}

// NewRebuildFetcher builds a RebuildFetcher against baseURL, e.g.
// "https://rebuild.example.org/api/v1".
func NewRebuildFetcher(session *Session, baseURL string, policy sign.Policy) *RebuildFetcher {
	return &RebuildFetcher{Session: session, BaseURL: baseURL, Policy: policy}
}

func (f *RebuildFetcher) Name() string { return "rebuild" }

// rebuildDoc is the lookup service's response shape: an artifact URL and
// format when a rebuild exists for the requested coordinate, or an empty
// document when it doesn't.
type rebuildDoc struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// Find queries {BaseURL}/{name}/{version}/{target}.json for a rebuilt
// artifact. A 404 means no rebuild exists for this coordinate, which
// Find reports as zero candidates rather than an error.
func (f *RebuildFetcher) Find(ctx context.Context, pkg *manifest.ResolvedPackage, target platform.Target) ([]Candidate, error) {
	lookupURL := fmt.Sprintf("%s/%s/%s/%s.json", f.BaseURL, url.PathEscape(pkg.Name), url.PathEscape(pkg.Version), url.PathEscape(target.String()))

	resp, err := f.Session.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	})
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var doc rebuildDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil || doc.URL == "" {
		return nil, nil
	}

	format := template.PkgFormat(doc.Format)
	if format == "" {
		format = pkg.PkgFmt
	}

	return []Candidate{{URL: doc.URL, Target: target, Format: format, Strategy: f.Name()}}, nil
}

// Fetch downloads candidate.URL to destPath.
func (f *RebuildFetcher) Fetch(ctx context.Context, candidate Candidate, destPath string) error {
	resp, err := f.Session.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, candidate.URL, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ferr.New(ferr.Candidate, "fetch.rebuild.fetch", "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, candidate.URL))
	}

	out, err := os.Create(destPath)
	if err != nil {
		return ferr.New(ferr.Filesystem, "fetch.rebuild.fetch", "", err)
	}
	defer out.Close()

	if _, err := copyLimited(out, resp.Body); err != nil {
		return ferr.New(ferr.Transport, "fetch.rebuild.fetch", "", err)
	}
	return nil
}

// VerifyAndExtract verifies archivePath's signature when required and
// extracts it into destDir.
func (f *RebuildFetcher) VerifyAndExtract(ctx context.Context, candidate Candidate, archivePath string, pkg *manifest.ResolvedPackage, destDir string) (map[string]string, error) {
	return verifyAndExtractCommon(ctx, f.Session, f.Policy, candidate, archivePath, pkg, destDir)
}
