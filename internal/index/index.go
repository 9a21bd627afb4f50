// Package index queries a package index for available versions and raw
// manifest bytes (spec.md §4.C).
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/httputil"
)

// Index resolves package versions and fetches manifest bytes. Concrete
// implementations: a sparse HTTP index (HTTPIndex), a git-based index
// (GitIndex), and a named alternative-registry indirection, all behind
// this one interface so the scheduler and CLI never care which backend
// is in play.
type Index interface {
	// Versions returns every published version for name, in no
	// particular order; callers sort/filter with semver themselves.
	Versions(ctx context.Context, name string) ([]*semver.Version, error)

	// Manifest returns the raw manifest bytes for (name, version).
	Manifest(ctx context.Context, name string, version *semver.Version) ([]byte, error)
}

// HTTPIndex is a sparse HTTP index: one JSON document listing versions per
// package, and one manifest document per (package, version), mirroring
// the teacher's registry client's "recipes/{letter}/{name}.toml" sparse
// layout generalized to an arbitrary base URL.
type HTTPIndex struct {
	BaseURL string
	Client  *http.Client
	Cache   *Cache
}

// NewHTTPIndex builds an HTTPIndex with a secure default HTTP client and
// the given on-disk cache.
func NewHTTPIndex(baseURL string, cache *Cache) *HTTPIndex {
	return &HTTPIndex{
		BaseURL: baseURL,
		Client:  httputil.NewSecureClient(httputil.DefaultOptions()),
		Cache:   cache,
	}
}

type versionsDoc struct {
	Versions []string `json:"versions"`
}

// Versions fetches {BaseURL}/{name}/versions.json, using the cache when
// fresh.
func (h *HTTPIndex) Versions(ctx context.Context, name string) ([]*semver.Version, error) {
	cacheKey := "versions:" + name
	if h.Cache != nil {
		if raw, ok := h.Cache.GetVersions(cacheKey); ok {
			return parseVersionsDoc(raw, name)
		}
	}

	url := fmt.Sprintf("%s/%s/versions.json", h.BaseURL, name)
	raw, err := h.get(ctx, url)
	if err != nil {
		return nil, ferr.New(ferr.Resolution, "index.versions", name, err)
	}

	versions, err := parseVersionsDoc(raw, name)
	if err != nil {
		return nil, err
	}

	if h.Cache != nil {
		h.Cache.PutVersions(cacheKey, raw)
	}
	return versions, nil
}

// Manifest fetches {BaseURL}/{name}/{version}.toml, using the cache when
// fresh.
func (h *HTTPIndex) Manifest(ctx context.Context, name string, version *semver.Version) ([]byte, error) {
	cacheKey := fmt.Sprintf("manifest:%s:%s", name, version.String())
	if h.Cache != nil {
		if raw, ok := h.Cache.GetManifest(cacheKey); ok {
			return raw, nil
		}
	}

	url := fmt.Sprintf("%s/%s/%s.toml", h.BaseURL, name, version.String())
	raw, err := h.get(ctx, url)
	if err != nil {
		return nil, ferr.New(ferr.Resolution, "index.manifest", name, err)
	}

	if h.Cache != nil {
		h.Cache.PutManifest(cacheKey, raw)
	}
	return raw, nil
}

func (h *HTTPIndex) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, ferr.New(ferr.Transport, "index.get", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("not found: %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ferr.New(ferr.Transport, "index.get", "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, ferr.New(ferr.Transport, "index.get", "", err)
	}
	return body, nil
}

// Resolve returns the highest published version satisfying rangeExpr
// ("" matches the highest version overall), per spec.md §3's semver-range
// PackageRequest semantics.
func Resolve(ctx context.Context, idx Index, name, rangeExpr string) (*semver.Version, error) {
	versions, err := idx.Versions(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, ferr.New(ferr.Resolution, "index.resolve", name, fmt.Errorf("no published versions"))
	}

	var constraint *semver.Constraints
	if rangeExpr != "" {
		constraint, err = semver.NewConstraint(rangeExpr)
		if err != nil {
			return nil, ferr.New(ferr.Configuration, "index.resolve", name, fmt.Errorf("invalid version requirement %q: %w", rangeExpr, err))
		}
	}

	sort.Sort(sort.Reverse(semver.Collection(versions)))
	for _, v := range versions {
		if constraint == nil || constraint.Check(v) {
			return v, nil
		}
	}
	return nil, ferr.New(ferr.Resolution, "index.resolve", name, fmt.Errorf("no version satisfies %q", rangeExpr))
}

func parseVersionsDoc(raw []byte, name string) ([]*semver.Version, error) {
	var doc versionsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, ferr.New(ferr.Configuration, "index.versions.decode", name, err)
	}
	out := make([]*semver.Version, 0, len(doc.Versions))
	for _, s := range doc.Versions {
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, ferr.New(ferr.Configuration, "index.versions.decode", name, fmt.Errorf("invalid version %q: %w", s, err))
		}
		out = append(out, v)
	}
	return out, nil
}
