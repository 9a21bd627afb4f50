// Package extract dispatches archive extraction by detected format and
// resolves the final binary path inside the extracted tree (spec.md
// §4.G).
package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/template"
)

// maxEntrySize bounds any single extracted file, guarding against
// decompression-bomb archives the way the teacher's httputil client
// guards against compression bombs at the transport layer.
const maxEntrySize = 1 << 30 // 1 GiB

// Extract decompresses the archive at srcPath (already downloaded and
// signature-verified) into destDir according to format. Raw binaries are
// copied directly under the original candidate's basename.
func Extract(srcPath string, format template.PkgFormat, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return ferr.New(ferr.Filesystem, "extract.mkdir", "", err)
	}

	switch format {
	case template.FormatBin:
		return extractRawBinary(srcPath, destDir)
	case template.FormatTar:
		return extractTarFrom(srcPath, destDir, nil)
	case template.FormatTgz:
		return extractTarFrom(srcPath, destDir, gzipReader)
	case template.FormatTbz2:
		return extractTarFrom(srcPath, destDir, bzip2Reader)
	case template.FormatTxz:
		return extractTarFrom(srcPath, destDir, xzReader)
	case template.FormatTzstd:
		return extractTarFrom(srcPath, destDir, zstdReader)
	case template.FormatZip:
		return extractZip(srcPath, destDir)
	default:
		return ferr.New(ferr.Integrity, "extract.format", "", fmt.Errorf("unsupported archive format %q", format))
	}
}

func extractRawBinary(srcPath, destDir string) error {
	name := filepath.Base(srcPath)
	dst := filepath.Join(destDir, name)
	in, err := os.Open(srcPath)
	if err != nil {
		return ferr.New(ferr.Filesystem, "extract.raw", "", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return ferr.New(ferr.Filesystem, "extract.raw", "", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return ferr.New(ferr.Filesystem, "extract.raw", "", err)
	}
	return nil
}

type decompressor func(io.Reader) (io.Reader, error)

func gzipReader(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }
func bzip2Reader(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r), nil }
func xzReader(r io.Reader) (io.Reader, error)    { return xz.NewReader(r) }
func zstdReader(r io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func extractTarFrom(srcPath, destDir string, decompress decompressor) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return ferr.New(ferr.Filesystem, "extract.tar.open", "", err)
	}
	defer f.Close()

	var r io.Reader = f
	if decompress != nil {
		dr, err := decompress(f)
		if err != nil {
			return ferr.New(ferr.Integrity, "extract.tar.decompress", "", err)
		}
		r = dr
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return ferr.New(ferr.Integrity, "extract.tar.read", "", err)
		}

		switch hdr.Typeflag {
		case tar.TypeSymlink, tar.TypeLink:
			// symlinks inside archives are ignored on extraction, per spec.md.
			continue
		case tar.TypeDir:
			dest, ok := isPathWithinDirectory(destDir, hdr.Name)
			if !ok {
				return ferr.New(ferr.Integrity, "extract.tar.path", "", fmt.Errorf("entry %q escapes archive root", hdr.Name))
			}
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return ferr.New(ferr.Filesystem, "extract.tar.mkdir", "", err)
			}
		case tar.TypeReg:
			dest, ok := isPathWithinDirectory(destDir, hdr.Name)
			if !ok {
				return ferr.New(ferr.Integrity, "extract.tar.path", "", fmt.Errorf("entry %q escapes archive root", hdr.Name))
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return ferr.New(ferr.Filesystem, "extract.tar.mkdir", "", err)
			}
			if err := writeEntry(dest, tr, hdr.Size, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		}
	}
}

func extractZip(srcPath, destDir string) error {
	zr, err := zip.OpenReader(srcPath)
	if err != nil {
		return ferr.New(ferr.Integrity, "extract.zip.open", "", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Mode()&os.ModeSymlink != 0 {
			continue
		}

		dest, ok := isPathWithinDirectory(destDir, f.Name)
		if !ok {
			return ferr.New(ferr.Integrity, "extract.zip.path", "", fmt.Errorf("entry %q escapes archive root", f.Name))
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return ferr.New(ferr.Filesystem, "extract.zip.mkdir", "", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return ferr.New(ferr.Filesystem, "extract.zip.mkdir", "", err)
		}

		rc, err := f.Open()
		if err != nil {
			return ferr.New(ferr.Integrity, "extract.zip.read", "", err)
		}
		err = writeEntry(dest, rc, int64(f.UncompressedSize64), f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(dest string, r io.Reader, size int64, mode os.FileMode) error {
	if size > maxEntrySize {
		return ferr.New(ferr.Integrity, "extract.entry.size", "", fmt.Errorf("entry %q exceeds maximum size", dest))
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return ferr.New(ferr.Filesystem, "extract.entry.create", "", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(r, maxEntrySize+1)); err != nil {
		return ferr.New(ferr.Filesystem, "extract.entry.write", "", err)
	}
	return nil
}

// SniffHead reads up to n bytes from path for magic-byte detection
// without consuming the file handle used for the real extraction pass.
func SniffHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}
