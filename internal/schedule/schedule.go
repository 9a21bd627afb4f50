// Package schedule drives the target×strategy race for each requested
// package, then gates the committed result behind a confirmation plan
// (spec.md §4.H).
package schedule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tsukumogami/crateferry/internal/fetch"
	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/manifest"
	"github.com/tsukumogami/crateferry/internal/platform"
	"github.com/tsukumogami/crateferry/internal/sign"
)

// Request is one package to resolve, with its candidate targets already
// ordered by preference (most preferred first).
type Request struct {
	Pkg     *manifest.ResolvedPackage
	Targets []platform.Target
}

// Options configures the scheduler's concurrency and timeout behavior.
type Options struct {
	// Concurrency bounds how many packages resolve at once. Default:
	// GOMAXPROCS-equivalent, left to the caller to size — zero means
	// unbounded (errgroup.SetLimit is skipped).
	Concurrency int
	// PerPackageConcurrency bounds the inner target×strategy race for one
	// package. Zero means unbounded.
	PerPackageConcurrency int
	// ResolutionTimeout bounds one package's Find race, default 15s
	// (config.DefaultResolutionTimeout, --maximum-resolution-timeout).
	ResolutionTimeout time.Duration
	// ContinueOnFailure accumulates per-package failures into Plan.Failures
	// instead of cancelling sibling resolutions on the first error.
	ContinueOnFailure bool
	// Policy gates every package against --only-signed/--skip-signatures
	// before any fetcher runs (spec.md §4.F): a package with no signing
	// block under --only-signed is rejected up front instead of racing
	// strategies that would all fail identically.
	Policy sign.Policy
}

// Scheduler races fetch.Fetcher strategies across targets for each
// requested package. Strategies are tried in slice order (strategy-order,
// per spec.md), filtered per-package by the manifest's
// disabled-strategies.
type Scheduler struct {
	Fetchers []fetch.Fetcher
	Options  Options
}

// NewScheduler builds a Scheduler trying strategies in the given order.
func NewScheduler(fetchers []fetch.Fetcher, opts Options) *Scheduler {
	if opts.ResolutionTimeout == 0 {
		opts.ResolutionTimeout = 15 * time.Second
	}
	return &Scheduler{Fetchers: fetchers, Options: opts}
}

// Failure records one package's resolution failure under
// --continue-on-failure.
type Failure struct {
	Package string
	Err     error
}

// Resolve races every request's target×strategy pairs concurrently,
// returning a Plan for confirmation. Grounded structurally on
// golang.org/x/sync/errgroup's group-cancel-on-first-error semantics (the
// outer barrier across packages), the pattern Nox-HQ-nox/plugin/host.go
// uses for its own errgroup-based fan-out with a per-call concurrency
// limit via SetLimit.
func (s *Scheduler) Resolve(ctx context.Context, requests []Request, stagingRoot string) (*Plan, error) {
	g, gCtx := errgroup.WithContext(ctx)
	if s.Options.Concurrency > 0 {
		g.SetLimit(s.Options.Concurrency)
	}

	var mu sync.Mutex
	plan := &Plan{}

	for _, req := range requests {
		req := req
		g.Go(func() error {
			entry, err := s.resolvePackage(gCtx, req, stagingRoot)
			if err != nil {
				if s.Options.ContinueOnFailure {
					mu.Lock()
					plan.Failures = append(plan.Failures, Failure{Package: req.Pkg.Name, Err: err})
					mu.Unlock()
					return nil
				}
				return err
			}
			mu.Lock()
			plan.Entries = append(plan.Entries, *entry)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		plan.Discard()
		return nil, err
	}
	return plan, nil
}

// pair is one (target, strategy) combination to probe.
type pair struct {
	target  platform.Target
	fetcher fetch.Fetcher
}

// buildPairs enumerates target×strategy pairs in (target-preference,
// strategy-order) lexicographic order, dropping strategies the manifest
// disables.
func buildPairs(targets []platform.Target, fetchers []fetch.Fetcher, disabled map[string]bool) []pair {
	pairs := make([]pair, 0, len(targets)*len(fetchers))
	for _, target := range targets {
		for _, f := range fetchers {
			if disabled[f.Name()] {
				continue
			}
			pairs = append(pairs, pair{target: target, fetcher: f})
		}
	}
	return pairs
}

// resolvePackage probes req's target×strategy pairs concurrently under a
// per-resolution deadline, then commits the first candidate in
// (target-preference, strategy-order) lexicographic order — the
// concurrency is only for probe latency, never for priority: a fast
// lower-priority success never preempts a slower higher-priority one. If
// the chosen candidate's Fetch or VerifyAndExtract fails, resolvePackage
// falls through to the next found candidate in order rather than failing
// the package outright (spec.md §4.H's REJECTED → next candidate).
func (s *Scheduler) resolvePackage(ctx context.Context, req Request, stagingRoot string) (*PlanEntry, error) {
	pkg := req.Pkg

	if err := sign.RequireSignature(pkg, s.Options.Policy); err != nil {
		return nil, err
	}

	deadlineCtx, cancelDeadline := context.WithTimeout(ctx, s.Options.ResolutionTimeout)
	defer cancelDeadline()

	pairs := buildPairs(req.Targets, s.Fetchers, pkg.DisabledStrategies)
	candidates := make([]fetch.Candidate, len(pairs))
	found := make([]bool, len(pairs))

	g, gCtx := errgroup.WithContext(deadlineCtx)
	if s.Options.PerPackageConcurrency > 0 {
		g.SetLimit(s.Options.PerPackageConcurrency)
	}

	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			cands, err := p.fetcher.Find(gCtx, pkg, p.target)
			if err != nil || len(cands) == 0 {
				return nil // a failed probe is not fatal; the scheduler tries the next pair
			}
			// each goroutine owns a distinct index, so this needs no lock.
			candidates[i] = cands[0]
			found[i] = true
			return nil
		})
	}
	// Find failures are swallowed inside the goroutine; g.Wait only
	// surfaces cooperative cancellation or a deadline timeout.
	_ = g.Wait()

	pkgDir := filepath.Join(stagingRoot, pkg.Name)
	archivePath := filepath.Join(pkgDir, "archive")
	destDir := filepath.Join(pkgDir, "extracted")

	var lastErr error
	for i, p := range pairs {
		if !found[i] {
			continue
		}

		if err := os.MkdirAll(pkgDir, 0o755); err != nil {
			return nil, ferr.New(ferr.Filesystem, "schedule.stage", pkg.Name, err)
		}

		if err := p.fetcher.Fetch(deadlineCtx, candidates[i], archivePath); err != nil {
			lastErr = err
			continue
		}

		binPaths, err := p.fetcher.VerifyAndExtract(deadlineCtx, candidates[i], archivePath, pkg, destDir)
		if err != nil {
			lastErr = err
			continue
		}

		return &PlanEntry{
			Package:    pkg.Name,
			Version:    pkg.Version,
			Strategy:   p.fetcher.Name(),
			Target:     p.target,
			Candidate:  candidates[i],
			BinPaths:   binPaths,
			StagingDir: pkgDir,
		}, nil
	}

	if lastErr != nil {
		return nil, ferr.New(ferr.Candidate, "schedule.resolve", pkg.Name, fmt.Errorf("all candidates exhausted, last error: %w", lastErr))
	}
	return nil, ferr.New(ferr.Candidate, "schedule.resolve", pkg.Name, fmt.Errorf("no candidate found across %d (target, strategy) combinations", len(pairs)))
}
