package fetch

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tsukumogami/crateferry/internal/extract"
	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/manifest"
	"github.com/tsukumogami/crateferry/internal/sign"
	"github.com/tsukumogami/crateferry/internal/template"
)

// maxArchiveBytes bounds an in-memory signature-verification read; larger
// archives are a misconfiguration for a binary installer, not a valid
// case to support.
const maxArchiveBytes = 1 << 30 // 1 GiB, matching extract's maxEntrySize

// copyLimited copies from src to dst capped at maxArchiveBytes+1, so a
// hostile Content-Length lie doesn't turn a download into an unbounded
// disk fill.
func copyLimited(dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, io.LimitReader(src, maxArchiveBytes+1))
}

// verifyAndExtractCommon implements the signature-then-extract sequence
// shared by every Fetcher: fetch the detached signature when pkg declares
// a signing block and policy doesn't skip it, verify it against the
// archive bytes, then hand off to internal/extract and resolve each
// declared binary's path.
func verifyAndExtractCommon(ctx context.Context, session *Session, policy sign.Policy, candidate Candidate, archivePath string, pkg *manifest.ResolvedPackage, destDir string) (map[string]string, error) {
	if !policy.SkipSignatures && pkg.Signing != nil {
		if err := verifySignature(ctx, session, policy, candidate, archivePath, pkg); err != nil {
			return nil, err
		}
	}

	head, err := extract.SniffHead(archivePath, 8)
	if err != nil {
		return nil, ferr.New(ferr.Filesystem, "fetch.extract.sniff", pkg.Name, err)
	}
	format := extract.DetectFormat(candidate.Format, candidate.URL, head)

	if err := extract.Extract(archivePath, format, destDir); err != nil {
		return nil, err
	}

	binDir := effectiveBinDir(pkg, candidate.Target)
	vars := template.StandardVars(pkg.Name, pkg.Version, pkg.Repo, primaryBinary(pkg), candidate.Target, format)

	binaries := pkg.Binaries
	if len(binaries) == 0 {
		binaries = []manifest.Binary{{Name: pkg.Name}}
	}

	paths := make(map[string]string, len(binaries))
	for _, b := range binaries {
		path, err := extract.ResolveBinPath(destDir, binDir, vars, b.Name)
		if err != nil {
			return nil, err
		}
		paths[b.Name] = path
	}
	return paths, nil
}

func verifySignature(ctx context.Context, session *Session, policy sign.Policy, candidate Candidate, archivePath string, pkg *manifest.ResolvedPackage) error {
	sigURL := sign.SignatureURL(candidate.URL, pkg.Signing)
	sigText, err := sign.FetchSignature(ctx, session.Client, sigURL)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		return ferr.New(ferr.Filesystem, "fetch.sign.read", pkg.Name, err)
	}
	if int64(len(data)) > maxArchiveBytes {
		return ferr.New(ferr.Integrity, "fetch.sign.read", pkg.Name, fmt.Errorf("archive exceeds maximum signable size"))
	}

	return sign.Verify(pkg.Signing, data, sigText)
}
