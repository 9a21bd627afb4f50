package template

import "github.com/tsukumogami/crateferry/internal/platform"

// PkgFormat is the archive/packaging format a candidate is expected to be
// published in.
type PkgFormat string

const (
	FormatBin   PkgFormat = "bin"
	FormatTar   PkgFormat = "tar"
	FormatTgz   PkgFormat = "tgz"
	FormatTbz2  PkgFormat = "tbz2"
	FormatTxz   PkgFormat = "txz"
	FormatTzstd PkgFormat = "tzstd"
	FormatZip   PkgFormat = "zip"
)

// suffixes maps a PkgFormat to the archive-suffix template variable,
// including the leading dot (empty for the single-binary "bin" format).
var suffixes = map[PkgFormat]string{
	FormatBin:   "",
	FormatTar:   ".tar",
	FormatTgz:   ".tgz",
	FormatTbz2:  ".tbz2",
	FormatTxz:   ".txz",
	FormatTzstd: ".tar.zst",
	FormatZip:   ".zip",
}

// StandardVars builds the Vars map for a (name, version, repo, bin, target,
// format) tuple per spec.md §4.A. archive-suffix/archive-format/binary-ext
// are derived; format is context-sensitive (URL templates get
// archive-format, bin-dir templates get binary-ext) so StandardVars sets
// format to archive-format and BinDirVars overrides it.
func StandardVars(name, version, repo, bin string, target platform.Target, format PkgFormat) Vars {
	suffix := suffixes[format]
	if format == FormatBin && target.OS() == "windows" {
		suffix = ".exe"
	}

	archiveFormat := suffix
	if len(archiveFormat) > 0 && archiveFormat[0] == '.' {
		archiveFormat = archiveFormat[1:]
	}

	binaryExt := ""
	if target.OS() == "windows" {
		binaryExt = ".exe"
	}

	return Vars{
		"name":           name,
		"version":        version,
		"repo":           repo,
		"bin":            bin,
		"target":         target.String(),
		"archive-suffix": suffix,
		"archive-format": archiveFormat,
		"binary-ext":     binaryExt,
		"format":         archiveFormat,
		"target-family":  target.Family(),
		"target-arch":    target.Arch(),
		"target-os":      target.OS(),
		"target-env":     target.Env(),
		"target-vendor":  target.Vendor(),
	}
}

// BinDirVars returns a copy of vars with "format" aliased to binary-ext,
// for expanding bin-dir templates rather than URL templates (spec.md
// §4.A's table: "format" means archive-format for URLs, binary-ext for
// bin-dirs).
func BinDirVars(vars Vars) Vars {
	out := make(Vars, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	out["format"] = vars["binary-ext"]
	return out
}
