package main

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/crateferry/internal/config"
	"github.com/tsukumogami/crateferry/internal/errmsg"
	"github.com/tsukumogami/crateferry/internal/fetch"
	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/httputil"
	"github.com/tsukumogami/crateferry/internal/index"
	"github.com/tsukumogami/crateferry/internal/install"
	"github.com/tsukumogami/crateferry/internal/log"
	"github.com/tsukumogami/crateferry/internal/manifest"
	"github.com/tsukumogami/crateferry/internal/platform"
	"github.com/tsukumogami/crateferry/internal/schedule"
	"github.com/tsukumogami/crateferry/internal/sign"
	"github.com/tsukumogami/crateferry/internal/track"
)

// defaultIndexURL is the built-in package index, used when --index,
// CRATEFERRY_INDEX, and the config file are all unset.
const defaultIndexURL = "https://index.crateferry.dev"

// defaultRebuildURL is the built-in community-rebuild lookup service
// (spec.md §4.E's "community-rebuild" strategy).
const defaultRebuildURL = "https://rebuild.crateferry.dev/api/v1"

// Sentinel errors carrying a specific exit code beyond ferr.Kind's
// generic mapping (spec.md §6's literal exit codes).
var (
	errConfirmDeclined = errors.New("install plan declined")
	errPartialFailure  = errors.New("one or more packages failed")
	errBinConflict     = errors.New("existing bin-dir file without --force")
)

// runInstall is rootCmd's entrypoint: resolve, race strategies, confirm,
// and commit every requested package (spec.md §2's data-flow pipeline).
func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) == 0 {
		return ferr.New(ferr.Configuration, "cli.args", "", fmt.Errorf("at least one package argument is required"))
	}
	if err := validateSelectionFlags(args); err != nil {
		return ferr.New(ferr.Configuration, "cli.args", "", err)
	}
	if err := validateSourceFlags(); err != nil {
		return ferr.New(ferr.Configuration, "cli.args", "", err)
	}
	if err := validateStrategyFlags(); err != nil {
		return ferr.New(ferr.Configuration, "cli.args", "", err)
	}

	requests, err := parseRequests(args)
	if err != nil {
		return ferr.New(ferr.Configuration, "cli.args", "", err)
	}

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return ferr.New(ferr.Filesystem, "cli.config", "", err)
	}

	targets, err := resolveTargets()
	if err != nil {
		return ferr.New(ferr.Configuration, "cli.targets", "", err)
	}

	idx, err := buildIndex(cfg)
	if err != nil {
		return err
	}

	pkgs, err := resolvePackages(ctx, idx, requests)
	if err != nil {
		return err
	}

	scheduleRequests := make([]schedule.Request, 0, len(pkgs))
	for _, pkg := range pkgs {
		scheduleRequests = append(scheduleRequests, schedule.Request{Pkg: pkg, Targets: targets})
	}

	fetchers, policy, err := buildFetchers(cfg)
	if err != nil {
		return err
	}

	sched := schedule.NewScheduler(fetchers, schedule.Options{
		ResolutionTimeout: resolutionTimeout(),
		ContinueOnFailure: continueOnFailureFlag,
		Policy:            policy,
	})

	plan, err := sched.Resolve(ctx, scheduleRequests, cfg.ScratchDir)
	if err != nil {
		return err
	}

	printPlan(plan)

	if dryRunFlag {
		_ = plan.Discard()
		return nil
	}

	if len(plan.Entries) == 0 {
		return finishWithFailures(plan)
	}

	if !noConfirmFlag {
		confirmed, err := confirmPlan(plan)
		if err != nil {
			return ferr.New(ferr.Configuration, "cli.confirm", "", err)
		}
		if !confirmed {
			_ = plan.Discard()
			return errConfirmDeclined
		}
	}

	if err := commitPlan(ctx, cfg, plan); err != nil {
		return err
	}

	return finishWithFailures(plan)
}

// finishWithFailures maps an otherwise-successful run's accumulated
// per-package failures (under --continue-on-failure) to ExitPartialFailure.
func finishWithFailures(plan *schedule.Plan) error {
	if len(plan.Failures) == 0 {
		return nil
	}
	for _, f := range plan.Failures {
		log.Default().Error("package failed", "package", f.Package, "error", f.Err)
		fmt.Fprintln(os.Stderr, errmsg.Format(f.Err, &errmsg.ErrorContext{Pkg: f.Package}))
	}
	return errPartialFailure
}

// parseRequests parses args into packageArgs, collapsing duplicate names
// to the last occurrence (spec.md §3's PackageRequest invariant) and
// applying --version when exactly one package was given.
func parseRequests(args []string) ([]packageArg, error) {
	order := make([]string, 0, len(args))
	byName := make(map[string]packageArg, len(args))
	for _, arg := range args {
		p, err := parsePackageArg(arg)
		if err != nil {
			return nil, err
		}
		if _, seen := byName[p.Name]; !seen {
			order = append(order, p.Name)
		}
		byName[p.Name] = p
	}

	out := make([]packageArg, 0, len(order))
	for _, name := range order {
		p := byName[name]
		if versionFlag != "" {
			p.VersionReq = versionFlag
		}
		out = append(out, p)
	}
	return out, nil
}

// resolveConfig builds the install-root Config from --install-path/--root
// or spec.md §6's INSTALL_ROOT/HOME_DIR precedence.
func resolveConfig() (*config.Config, error) {
	root := rootFlag
	if root == "" {
		root = installPathFlag
	}
	if root != "" {
		return config.NewConfig(root), nil
	}
	return config.DefaultConfig()
}

// resolveTargets parses --targets, or falls back to host auto-detection.
func resolveTargets() ([]platform.Target, error) {
	if len(targetsFlag) == 0 {
		return platform.DetectTargets(), nil
	}
	targets := make([]platform.Target, 0, len(targetsFlag))
	for _, triple := range targetsFlag {
		targets = append(targets, platform.NewTarget(triple))
	}
	return targets, nil
}

func buildIndex(cfg *config.Config) (index.Index, error) {
	src, err := index.SelectSource(indexFlag, registryFlag, "", defaultIndexURL)
	if err != nil {
		return nil, err
	}
	cache := index.NewCache(cfg.CacheDir, config.GetVersionCacheTTL(), config.GetManifestCacheTTL())
	return index.Open(src, cache)
}

// resolvePackages resolves each request to a concrete ResolvedPackage,
// either from --manifest-path or via the index, then applies the --bin
// filter (spec.md §8: "empty --bin intersection fails at argument parse
// time, not after download").
func resolvePackages(ctx context.Context, idx index.Index, requests []packageArg) ([]*manifest.ResolvedPackage, error) {
	pkgs := make([]*manifest.ResolvedPackage, 0, len(requests))
	for _, req := range requests {
		var raw []byte
		var err error

		if manifestPathFlag != "" {
			raw, err = os.ReadFile(manifestPathFlag)
			if err != nil {
				return nil, ferr.New(ferr.Filesystem, "cli.manifest", req.Name, err)
			}
		} else {
			version, verr := index.Resolve(ctx, idx, req.Name, req.VersionReq)
			if verr != nil {
				return nil, verr
			}
			raw, err = idx.Manifest(ctx, req.Name, version)
			if err != nil {
				return nil, err
			}
		}

		pkg, err := manifest.Parse(raw)
		if err != nil {
			return nil, err
		}
		if gitFlag != "" {
			pkg.Repo = gitFlag
		}

		if err := applyBinFilter(pkg); err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

func applyBinFilter(pkg *manifest.ResolvedPackage) error {
	if len(binFlag) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(binFlag))
	for _, b := range binFlag {
		wanted[b] = true
	}

	filtered := make([]manifest.Binary, 0, len(pkg.Binaries))
	for _, b := range pkg.Binaries {
		if wanted[b.Name] {
			filtered = append(filtered, b)
		}
	}
	if len(filtered) == 0 {
		return ferr.New(ferr.Configuration, "cli.bin-filter", pkg.Name, fmt.Errorf("--bin selection %v matches no binary in %s's manifest", binFlag, pkg.Name))
	}
	pkg.Binaries = filtered
	return nil
}

// buildFetchers constructs the three fetch.Fetcher strategies, sharing
// one Session for the global rate limit, TLS floor, and retry policy
// (spec.md §4.E, §5), plus the sign.Policy the scheduler enforces
// package-wide before racing any of them (spec.md §4.F's "rejected
// without fetching").
func buildFetchers(cfg *config.Config) ([]fetch.Fetcher, sign.Policy, error) {
	minTLS, err := parseMinTLSVersion(minTLSVersionFlag)
	if err != nil {
		return nil, sign.Policy{}, ferr.New(ferr.Configuration, "cli.tls", "", err)
	}

	rl := config.GetRateLimit()
	if rateLimitFlag != "" {
		rl, err = config.ParseRateLimit(rateLimitFlag)
		if err != nil {
			return nil, sign.Policy{}, ferr.New(ferr.Configuration, "cli.rate-limit", "", err)
		}
	}

	var rootCAs *x509.CertPool
	if rootCertificatesFlag != "" {
		pool, err := httputil.LoadRootCAs(rootCertificatesFlag)
		if err != nil {
			return nil, sign.Policy{}, ferr.New(ferr.Configuration, "cli.root-certificates", "", err)
		}
		rootCAs = pool
	}

	session := fetch.NewSession(fetch.Options{
		MinTLSVersion:   minTLS,
		RateLimitTokens: rl.Tokens,
		RateLimitWindow: rl.Window,
		RootCAs:         rootCAs,
	})

	policy := sign.Policy{OnlySigned: onlySignedFlag, SkipSignatures: skipSignaturesFlag}

	all := []fetch.Fetcher{
		fetch.NewMetadataFetcher(session, policy),
		fetch.NewRebuildFetcher(session, defaultRebuildURL, policy),
		fetch.NewSourceFetcher(session),
	}

	selected, err := selectedStrategyNames(strategiesFlag)
	if err != nil {
		return nil, sign.Policy{}, ferr.New(ferr.Configuration, "cli.strategies", "", err)
	}
	disabled, err := resolveDisabledStrategies(disableStrategiesFlag)
	if err != nil {
		return nil, sign.Policy{}, ferr.New(ferr.Configuration, "cli.strategies", "", err)
	}

	out := make([]fetch.Fetcher, 0, len(all))
	for _, f := range all {
		if selected != nil && !selected[f.Name()] {
			continue
		}
		if disabled[f.Name()] {
			continue
		}
		out = append(out, f)
	}
	return out, policy, nil
}

func resolutionTimeout() time.Duration {
	if maxResolutionTimeoutFlag > 0 {
		return time.Duration(maxResolutionTimeoutFlag) * time.Second
	}
	return config.DefaultResolutionTimeout
}

// commitPlan installs every confirmed plan entry, records it in the
// tracking manifest, and cleans up staging (spec.md §4.I, §4.J).
func commitPlan(ctx context.Context, cfg *config.Config, plan *schedule.Plan) error {
	// The tracker itself is always constructed — even under --no-track —
	// so --force can still drop a prior record (spec.md §9's resolved
	// Open Question). Whether commitEntry reads or writes through it is
	// gated by noTrackFlag separately.
	tracker := track.NewTracker(cfg.ManifestDB)

	installer := install.New(install.Options{
		ToolsDir:    filepath.Join(cfg.MetaDir, "tools"),
		BinDir:      cfg.InstallRoot,
		UseSymlinks: !noSymlinksFlag,
	})

	entries := make([]schedule.PlanEntry, len(plan.Entries))
	copy(entries, plan.Entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Package < entries[j].Package })

	var firstErr error
	for _, entry := range entries {
		if err := commitEntry(ctx, cfg, tracker, installer, entry); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			log.Default().Error("install failed", "package", entry.Package, "error", err)
		}
		os.RemoveAll(entry.StagingDir)
	}
	return firstErr
}

func commitEntry(ctx context.Context, cfg *config.Config, tracker *track.Tracker, installer *install.Installer, entry schedule.PlanEntry) error {
	if !noTrackFlag && !forceFlag {
		existing, err := tracker.Lookup(ctx, entry.Package, entry.Version)
		if err != nil {
			return err
		}
		if existing != nil {
			fmt.Fprintf(os.Stdout, "%s %s already installed\n", entry.Package, entry.Version)
			return nil
		}
	}

	if forceFlag {
		if err := tracker.Remove(ctx, entry.Package); err != nil {
			return err
		}
	}

	if noTrackFlag && !forceFlag {
		if err := checkBinConflict(cfg.InstallRoot, entry); err != nil {
			return err
		}
	}

	finalPaths, err := installer.Install(entry.Package, entry.Version, entry.BinPaths)
	if err != nil {
		return err
	}

	if !noTrackFlag {
		record := track.InstallRecord{
			Name:        entry.Package,
			Version:     entry.Version,
			Strategy:    entry.Strategy,
			Target:      entry.Target.String(),
			Binaries:    finalPaths,
			InstalledAt: time.Now().UTC(),
		}
		displaced, err := tracker.Put(ctx, record)
		if err != nil {
			return err
		}
		if displaced != nil {
			for _, path := range displaced.Binaries {
				os.Remove(path)
			}
		}
	}

	fmt.Fprintf(os.Stdout, "installed %s %s via %s\n", entry.Package, entry.Version, entry.Strategy)
	return nil
}

// checkBinConflict refuses to overwrite an existing bin-dir file under
// --no-track without --force (spec.md §4.J, ExitBinConflict).
func checkBinConflict(binDir string, entry schedule.PlanEntry) error {
	for name := range entry.BinPaths {
		path := filepath.Join(binDir, name)
		if _, err := os.Stat(path); err == nil {
			return ferr.New(ferr.Filesystem, "cli.no-track", entry.Package, fmt.Errorf("%w: %s", errBinConflict, path))
		}
	}
	return nil
}
