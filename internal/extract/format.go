package extract

import (
	"bytes"
	"strings"

	"github.com/tsukumogami/crateferry/internal/template"
)

// DetectFormat resolves the effective archive format from the manifest's
// declared format, the candidate URL's extension, and magic-byte
// sniffing of the first bytes, in that precedence order — declared wins
// outright since it is the package author's explicit word, extension is
// a strong hint, and magic bytes are the fallback for extensionless
// URLs (spec.md §4.G).
func DetectFormat(declared template.PkgFormat, url string, head []byte) template.PkgFormat {
	if declared != "" {
		return declared
	}
	if f, ok := formatFromExtension(url); ok {
		return f
	}
	return formatFromMagic(head)
}

func formatFromExtension(url string) (template.PkgFormat, bool) {
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return template.FormatTgz, true
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return template.FormatTbz2, true
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return template.FormatTxz, true
	case strings.HasSuffix(lower, ".tar.zst"):
		return template.FormatTzstd, true
	case strings.HasSuffix(lower, ".tar"):
		return template.FormatTar, true
	case strings.HasSuffix(lower, ".zip"):
		return template.FormatZip, true
	case strings.HasSuffix(lower, ".exe"):
		return template.FormatBin, true
	}
	return "", false
}

// magic-byte signatures for the formats that have one. Plain tar and raw
// binaries have no reliable magic prefix, so they fall through as the
// last-resort default (FormatBin, since a binary is the one format that
// needs no archive handling at all).
var magicSignatures = []struct {
	format template.PkgFormat
	magic  []byte
}{
	{template.FormatTgz, []byte{0x1f, 0x8b}},                   // gzip
	{template.FormatTbz2, []byte("BZh")},                       // bzip2
	{template.FormatTxz, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}}, // xz
	{template.FormatTzstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},     // zstd
	{template.FormatZip, []byte("PK\x03\x04")},                 // zip local file header
}

func formatFromMagic(head []byte) template.PkgFormat {
	for _, sig := range magicSignatures {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.format
		}
	}
	return template.FormatBin
}
