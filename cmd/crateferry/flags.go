package main

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// Flag variables for the root command, registered in init() (main.go).
var (
	versionFlag string
	targetsFlag []string
	binFlag     []string

	manifestPathFlag string
	gitFlag          string
	indexFlag        string
	registryFlag     string

	strategiesFlag        []string
	disableStrategiesFlag []string

	installPathFlag string
	rootFlag        string
	noSymlinksFlag  bool
	noTrackFlag     bool
	forceFlag       bool

	onlySignedFlag      bool
	skipSignaturesFlag  bool
	minTLSVersionFlag   string
	rootCertificatesFlag string

	rateLimitFlag             string
	maxResolutionTimeoutFlag  int

	dryRunFlag           bool
	noConfirmFlag        bool
	continueOnFailureFlag bool
	logLevelFlag         string
	jsonOutputFlag       bool
)

// cliStrategyNames maps spec.md §6's CLI-facing strategy vocabulary onto
// internal/fetch's Fetcher.Name() values.
var cliStrategyNames = map[string]string{
	"metadata":          "metadata",
	"community-rebuild": "rebuild",
	"source-compile":    "source",
}

// internalStrategyName translates one --strategies/--disable-strategies
// value into the internal fetcher name, or an error naming the bad value.
func internalStrategyName(cliName string) (string, error) {
	name, ok := cliStrategyNames[cliName]
	if !ok {
		return "", fmt.Errorf("unknown strategy %q (expected one of metadata, community-rebuild, source-compile)", cliName)
	}
	return name, nil
}

// resolveDisabledStrategies translates --disable-strategies into the
// internal-name set schedule.buildPairs filters on.
func resolveDisabledStrategies(cliNames []string) (map[string]bool, error) {
	disabled := make(map[string]bool, len(cliNames))
	for _, n := range cliNames {
		internal, err := internalStrategyName(n)
		if err != nil {
			return nil, err
		}
		disabled[internal] = true
	}
	return disabled, nil
}

// selectedStrategyNames translates --strategies into the internal-name
// allowlist; an empty result means "no restriction".
func selectedStrategyNames(cliNames []string) (map[string]bool, error) {
	if len(cliNames) == 0 {
		return nil, nil
	}
	selected := make(map[string]bool, len(cliNames))
	for _, n := range cliNames {
		internal, err := internalStrategyName(n)
		if err != nil {
			return nil, err
		}
		selected[internal] = true
	}
	return selected, nil
}

// packageArg is one parsed positional argument: "name" or "name@version".
type packageArg struct {
	Name       string
	VersionReq string
}

// parsePackageArg splits a "name[@version]" argument. The version
// requirement is whatever follows the first '@' verbatim (a semver range
// expression, validated later by internal/index.Resolve).
func parsePackageArg(arg string) (packageArg, error) {
	name, version, found := strings.Cut(arg, "@")
	if name == "" {
		return packageArg{}, fmt.Errorf("invalid package argument %q: missing name", arg)
	}
	if found && version == "" {
		return packageArg{}, fmt.Errorf("invalid package argument %q: empty version after '@'", arg)
	}
	return packageArg{Name: name, VersionReq: version}, nil
}

// validateSelectionFlags enforces spec.md §6's "--version only when one
// package is given" rule.
func validateSelectionFlags(args []string) error {
	if versionFlag != "" && len(args) != 1 {
		return fmt.Errorf("--version may only be used with exactly one package argument")
	}
	return nil
}

// validateSourceFlags enforces the --index/--registry mutual exclusion
// (spec.md §4.C).
func validateSourceFlags() error {
	if indexFlag != "" && registryFlag != "" {
		return fmt.Errorf("--index and --registry are mutually exclusive")
	}
	return nil
}

// validateStrategyFlags enforces the --strategies/--disable-strategies
// mutual exclusion: picking an explicit allowlist and a denylist at once
// is a contradictory request, not something to silently resolve.
func validateStrategyFlags() error {
	if len(strategiesFlag) > 0 && len(disableStrategiesFlag) > 0 {
		return fmt.Errorf("--strategies and --disable-strategies are mutually exclusive")
	}
	return nil
}

// parseMinTLSVersion maps the --min-tls-version enum to its tls.Version*
// constant. An empty string means "use the default floor".
func parseMinTLSVersion(s string) (uint16, error) {
	switch s {
	case "":
		return 0, nil
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("invalid --min-tls-version %q: expected \"1.2\" or \"1.3\"", s)
	}
}
