// Package platform identifies the target triples crateferry can install
// binaries for, and exposes the cfg-predicate dimensions the template
// engine and manifest overrides match against.
package platform

import "strings"

// Target is a parsed platform triple (arch-vendor-os[-env]).
//
// Triples follow the same shape Rust uses for its compilation targets,
// since package manifests reference them the same way (e.g.
// "x86_64-unknown-linux-gnu", "aarch64-apple-darwin",
// "x86_64-pc-windows-msvc").
type Target struct {
	triple string
	arch   string
	vendor string
	os     string
	env    string
}

// knownTriple describes how to split one canonical triple into components.
// Triples are irregular (some carry an env component, some don't; "apple"
// triples drop the vendor segment length convention that "pc"/"unknown"
// triples use) so a lookup table is more reliable than positional parsing.
var knownTriples = map[string]Target{
	"x86_64-unknown-linux-gnu":   {arch: "x86_64", vendor: "unknown", os: "linux", env: "gnu"},
	"x86_64-unknown-linux-musl":  {arch: "x86_64", vendor: "unknown", os: "linux", env: "musl"},
	"aarch64-unknown-linux-gnu":  {arch: "aarch64", vendor: "unknown", os: "linux", env: "gnu"},
	"aarch64-unknown-linux-musl": {arch: "aarch64", vendor: "unknown", os: "linux", env: "musl"},
	"armv7-unknown-linux-gnueabihf": {arch: "armv7", vendor: "unknown", os: "linux", env: "gnueabihf"},
	"i686-unknown-linux-gnu":     {arch: "i686", vendor: "unknown", os: "linux", env: "gnu"},
	"riscv64gc-unknown-linux-gnu": {arch: "riscv64gc", vendor: "unknown", os: "linux", env: "gnu"},
	"x86_64-apple-darwin":        {arch: "x86_64", vendor: "apple", os: "darwin"},
	"aarch64-apple-darwin":       {arch: "aarch64", vendor: "apple", os: "darwin"},
	"universal-apple-darwin":     {arch: "universal", vendor: "apple", os: "darwin"},
	"x86_64-pc-windows-msvc":     {arch: "x86_64", vendor: "pc", os: "windows", env: "msvc"},
	"x86_64-pc-windows-gnu":      {arch: "x86_64", vendor: "pc", os: "windows", env: "gnu"},
	"aarch64-pc-windows-msvc":    {arch: "aarch64", vendor: "pc", os: "windows", env: "msvc"},
	"i686-pc-windows-msvc":       {arch: "i686", vendor: "pc", os: "windows", env: "msvc"},
}

// NewTarget parses a triple string into a Target. Unrecognized triples are
// parsed heuristically (arch-vendor-os[-env]) rather than rejected, since
// manifests may reference niche targets not in the canonical table.
func NewTarget(triple string) Target {
	if known, ok := knownTriples[triple]; ok {
		known.triple = triple
		return known
	}
	return Target{triple: triple, arch: heuristicArch(triple), vendor: heuristicVendor(triple), os: heuristicOS(triple), env: heuristicEnv(triple)}
}

// String returns the triple string.
func (t Target) String() string { return t.triple }

// OS returns the target_os dimension (e.g. "linux", "darwin", "windows").
func (t Target) OS() string { return t.os }

// Arch returns the target_arch dimension. "universal-apple-darwin" maps to
// "universal" per spec.
func (t Target) Arch() string { return t.arch }

// Env returns the target_env dimension (e.g. "gnu", "musl", "msvc"), empty
// when the triple has none (most "apple" triples).
func (t Target) Env() string { return t.env }

// Vendor returns the target_vendor dimension (e.g. "apple", "pc", "unknown").
func (t Target) Vendor() string { return t.vendor }

// Family returns the target_family dimension: "windows" or "unix".
func (t Target) Family() string {
	if t.os == "windows" {
		return "windows"
	}
	return "unix"
}

func heuristicArch(triple string) string {
	parts := strings.SplitN(triple, "-", 2)
	return parts[0]
}

func heuristicVendor(triple string) string {
	parts := strings.Split(triple, "-")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

func heuristicOS(triple string) string {
	parts := strings.Split(triple, "-")
	switch {
	case len(parts) >= 3:
		return parts[2]
	default:
		return ""
	}
}

func heuristicEnv(triple string) string {
	parts := strings.Split(triple, "-")
	if len(parts) >= 4 {
		return parts[3]
	}
	return ""
}
