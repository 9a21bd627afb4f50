// Package sign verifies a detached minisign signature against a
// manifest-embedded public key (spec.md §4.F).
package sign

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jedisct1/go-minisign"

	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/manifest"
)

// maxSignatureBytes bounds the companion signature fetch, mirroring the
// teacher's size-limited FetchSignature reader in internal/actions/
// signature.go — a detached signature is never more than a few hundred
// bytes, so anything larger indicates a misconfigured or hostile URL.
const maxSignatureBytes = 16 << 10

// algorithmMinisign is the one algorithm spec.md §4.F supports: a
// 64-byte Ed25519 detached signature with an optional trusted-comment
// line, i.e. minisign's wire format.
const algorithmMinisign = "minisign"

// Policy controls how signature requirements gate a candidate.
type Policy struct {
	OnlySigned      bool // reject candidates lacking a signing block, before fetch
	SkipSignatures  bool // disable both fetch and verify entirely
}

// RequireSignature checks policy against pkg's signing declaration before
// any network I/O, per spec.md §4.F: "--only-signed rejects candidates
// lacking a signing block before fetching."
func RequireSignature(pkg *manifest.ResolvedPackage, policy Policy) error {
	if policy.SkipSignatures {
		return nil
	}
	if policy.OnlySigned && pkg.Signing == nil {
		return ferr.New(ferr.Integrity, "sign.require", pkg.Name, fmt.Errorf("--only-signed set but manifest declares no signing block"))
	}
	return nil
}

// SignatureURL returns the companion signature URL for a candidate: the
// manifest's explicit signing.file override if set, otherwise
// candidateURL with ".sig" appended (spec.md §4.F's default).
func SignatureURL(candidateURL string, signing *manifest.Signing) string {
	if signing != nil && signing.File != "" {
		return signing.File
	}
	return candidateURL + ".sig"
}

// FetchSignature downloads the detached signature text from url using
// client, bounded to maxSignatureBytes.
func FetchSignature(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", ferr.New(ferr.Transport, "sign.fetch", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ferr.New(ferr.Integrity, "sign.fetch", "", fmt.Errorf("signature fetch returned status %d for %s", resp.StatusCode, url))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSignatureBytes))
	if err != nil {
		return "", ferr.New(ferr.Transport, "sign.fetch", "", err)
	}
	return string(body), nil
}

// Verify checks data against sigText using the manifest's declared
// signing block. An unrecognized algorithm is a hard ferr.Integrity
// error (spec.md §9's resolved Open Question), never treated as
// "unsigned".
func Verify(signing *manifest.Signing, data []byte, sigText string) error {
	if signing == nil {
		return ferr.New(ferr.Integrity, "sign.verify", "", fmt.Errorf("no signing block declared"))
	}

	algorithm := strings.ToLower(strings.TrimSpace(signing.Algorithm))
	if algorithm != "" && algorithm != algorithmMinisign {
		return ferr.New(ferr.Integrity, "sign.verify", "", fmt.Errorf("unsupported signature algorithm %q", signing.Algorithm))
	}

	pubKey, err := minisign.NewPublicKey(signing.PubKey)
	if err != nil {
		return ferr.New(ferr.Integrity, "sign.verify", "", fmt.Errorf("invalid public key: %w", err))
	}

	sig, err := minisign.DecodeSignature(sigText)
	if err != nil {
		return ferr.New(ferr.Integrity, "sign.verify", "", fmt.Errorf("malformed signature: %w", err))
	}

	ok, err := pubKey.Verify(data, sig)
	if err != nil {
		return ferr.New(ferr.Integrity, "sign.verify", "", fmt.Errorf("signature verification error: %w", err))
	}
	if !ok {
		return ferr.New(ferr.Integrity, "sign.verify", "", fmt.Errorf("signature does not match"))
	}
	return nil
}
