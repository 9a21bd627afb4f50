// Package manifest parses a registry-returned package manifest into the
// ResolvedPackage shape the fetch pipeline consumes (spec.md §3, §4.D,
// §6).
package manifest

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/template"
)

// Binary names one executable expected inside the extracted archive.
type Binary struct {
	Name       string `toml:"name"`
	SourcePath string `toml:"source-path"`
}

// Signing describes the detached-signature verification block (spec.md
// §4.F). Algorithm is validated at verify time, not parse time: an
// unrecognized value is a hard ferr.Integrity error raised by
// internal/sign, not a parse failure here.
type Signing struct {
	Algorithm string `toml:"algorithm"`
	PubKey    string `toml:"pubkey"`
	File      string `toml:"file"`
}

// Override is one per-target section of the manifest, keyed by an exact
// triple or a cfg(...) predicate string.
type Override struct {
	Key    string   `toml:"-"` // the raw table key, populated during decode
	PkgURL []string `toml:"pkg-url"`
	BinDir string   `toml:"bin-dir"`
	PkgFmt string   `toml:"pkg-fmt"`
}

// packageSection mirrors the manifest's top-level [package] table
// (spec.md §6's "Manifest format (package side)").
type packageSection struct {
	PkgURL             rawStrings         `toml:"pkg-url"`
	PkgFmt             string             `toml:"pkg-fmt"`
	BinDir             string             `toml:"bin-dir"`
	DisabledStrategies []string           `toml:"disabled-strategies"`
	Signing            *Signing           `toml:"signing"`
	Overrides          map[string]Override `toml:"overrides"`
}

// rawDoc is the full decoded TOML document.
type rawDoc struct {
	Name       string          `toml:"name"`
	Version    string          `toml:"version"`
	Repo       string          `toml:"repo"`
	License    string          `toml:"license"`
	Binaries   []Binary        `toml:"binaries"`
	Package    packageSection  `toml:"package"`
}

// rawStrings decodes either a bare string or an array of strings into a
// []string, since spec.md §6 allows pkg-url to be "string or array of
// templates".
type rawStrings []string

func (r *rawStrings) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*r = []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("pkg-url: array entries must be strings")
			}
			out = append(out, s)
		}
		*r = out
	default:
		return fmt.Errorf("pkg-url: expected string or array of strings")
	}
	return nil
}

// ResolvedPackage is the fully parsed manifest for one concrete version,
// consumed by internal/fetch, internal/sign, and internal/extract.
type ResolvedPackage struct {
	Name    string
	Version string
	Repo    string
	License string

	Binaries []Binary

	PkgURL             []string
	PkgFmt             template.PkgFormat
	BinDir             string
	DisabledStrategies map[string]bool
	Signing            *Signing
	Overrides          []template.Override
}

// Parse decodes raw manifest TOML bytes into a ResolvedPackage. Unknown
// keys are ignored (BurntSushi/toml's default decode behavior); malformed
// fields are reported with their originating key path via toml.Decode's
// own error, wrapped as a ferr.Configuration error.
func Parse(data []byte) (*ResolvedPackage, error) {
	var doc rawDoc
	meta, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, ferr.New(ferr.Configuration, "manifest.parse", "", fmt.Errorf("%w", err))
	}

	if doc.Name == "" {
		return nil, ferr.New(ferr.Configuration, "manifest.parse", "", fmt.Errorf("manifest missing required field \"name\""))
	}
	if doc.Version == "" {
		return nil, ferr.New(ferr.Configuration, "manifest.parse", doc.Name, fmt.Errorf("manifest missing required field \"version\""))
	}
	if len(doc.Package.PkgURL) == 0 {
		return nil, ferr.New(ferr.Configuration, "manifest.parse", doc.Name, fmt.Errorf("package.pkg-url must declare at least one template"))
	}

	disabled := make(map[string]bool, len(doc.Package.DisabledStrategies))
	for _, s := range doc.Package.DisabledStrategies {
		disabled[s] = true
	}

	overrides := decodeOverrides(doc.Package.Overrides, overrideDeclOrder(meta))

	pkgFmt := template.PkgFormat(doc.Package.PkgFmt)
	if pkgFmt == "" {
		pkgFmt = template.FormatTgz
	}

	return &ResolvedPackage{
		Name:               doc.Name,
		Version:            doc.Version,
		Repo:               doc.Repo,
		License:            doc.License,
		Binaries:           doc.Binaries,
		PkgURL:             doc.Package.PkgURL,
		PkgFmt:             pkgFmt,
		BinDir:             doc.Package.BinDir,
		DisabledStrategies: disabled,
		Signing:            doc.Package.Signing,
		Overrides:          overrides,
	}, nil
}

// overrideDeclOrder returns the override table keys in the order they
// were declared in the source document, read from toml.MetaData.Keys()
// (which reports keys in document order, unlike the decoded Go map).
func overrideDeclOrder(meta toml.MetaData) []string {
	var order []string
	seen := make(map[string]bool)
	for _, key := range meta.Keys() {
		if len(key) != 3 || key[0] != "package" || key[1] != "overrides" {
			continue
		}
		name := key[2]
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	return order
}

// decodeOverrides converts the TOML table-keyed overrides map into a
// declaration-ordered slice, using declOrder (from overrideDeclOrder) to
// recover the order BurntSushi/toml's decoded map loses. Manifest §4.A
// match order depends on this: cfg(...) predicates are tried in manifest
// declaration order after the exact-triple check.
func decodeOverrides(raw map[string]Override, declOrder []string) []template.Override {
	out := make([]template.Override, 0, len(raw))
	for _, key := range declOrder {
		ov, ok := raw[key]
		if !ok {
			continue
		}
		out = append(out, template.Override{
			Key:    key,
			PkgURL: ov.PkgURL,
			BinDir: ov.BinDir,
			Format: ov.PkgFmt,
		})
	}
	return out
}
