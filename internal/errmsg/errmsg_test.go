package errmsg

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/tsukumogami/crateferry/internal/ferr"
)

func TestFormat_NilError(t *testing.T) {
	result := Format(nil, nil)
	if result != "" {
		t.Errorf("expected empty string for nil error, got %q", result)
	}
}

func TestFormat_GenericError(t *testing.T) {
	err := errors.New("something went wrong")
	result := Format(err, nil)
	if result != "something went wrong" {
		t.Errorf("expected original error message, got %q", result)
	}
}

func TestFormat_FerrResolution(t *testing.T) {
	err := ferr.New(ferr.Resolution, "index.resolve", "ripgrep", errors.New("no version satisfies ^14"))
	ctx := &ErrorContext{Pkg: "ripgrep"}
	result := Format(err, ctx)

	checks := []string{
		"no version satisfies",
		"Possible causes:",
		"Suggestions:",
		"crateferry versions ripgrep",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_FerrIntegrity(t *testing.T) {
	err := ferr.New(ferr.Integrity, "sign.verify", "fd", errors.New("signature mismatch"))
	result := Format(err, nil)

	checks := []string{
		"signature mismatch",
		"Signature verification failed",
		"--only-signed",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_FerrConcurrency(t *testing.T) {
	err := ferr.New(ferr.Concurrency, "track.lock", "", errors.New("lock held"))
	result := Format(err, nil)

	if !strings.Contains(result, "tracking manifest lock") {
		t.Errorf("expected lock guidance, got:\n%s", result)
	}
}

func TestFormat_FerrThroughWrap(t *testing.T) {
	base := ferr.New(ferr.Filesystem, "install.rename", "fd", errors.New("file exists"))
	wrapped := errorWrap(base)
	result := Format(wrapped, nil)

	if !strings.Contains(result, "install root") {
		t.Errorf("expected filesystem guidance to survive wrapping, got:\n%s", result)
	}
}

func errorWrap(err error) error {
	return errorsFmtWrap{err}
}

type errorsFmtWrap struct{ err error }

func (e errorsFmtWrap) Error() string { return "wrapped: " + e.err.Error() }
func (e errorsFmtWrap) Unwrap() error { return e.err }

func TestFormat_RateLimitError(t *testing.T) {
	err := errors.New("GitHub API rate limit exceeded")
	ctx := &ErrorContext{Pkg: "kubectl"}
	result := Format(err, ctx)

	checks := []string{
		"rate limit",
		"Possible causes:",
		"Too many requests",
		"Suggestions:",
		"GITHUB_TOKEN",
		"crateferry install kubectl@<version>",
	}

	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_NetworkError(t *testing.T) {
	err := errors.New("dial tcp: connection refused")
	result := Format(err, nil)

	checks := []string{
		"connection refused",
		"Possible causes:",
		"Network connectivity issue",
		"Suggestions:",
		"Check your internet connection",
	}

	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_NotFoundError(t *testing.T) {
	err := errors.New("package not found in index: nonexistent-pkg")
	ctx := &ErrorContext{Pkg: "nonexistent-pkg"}
	result := Format(err, ctx)

	checks := []string{
		"not found",
		"Possible causes:",
		"does not exist",
		"Typo",
		"Suggestions:",
		"crateferry versions nonexistent-pkg",
	}

	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_PermissionError(t *testing.T) {
	err := errors.New("open /opt/bin: permission denied")
	result := Format(err, nil)

	checks := []string{
		"permission denied",
		"Possible causes:",
		"Insufficient permissions",
		"Suggestions:",
		"install-path",
	}

	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

// mockNetError implements net.Error for testing
type mockNetError struct {
	msg       string
	timeout   bool
	temporary bool
}

func (e mockNetError) Error() string   { return e.msg }
func (e mockNetError) Timeout() bool   { return e.timeout }
func (e mockNetError) Temporary() bool { return e.temporary }

var _ net.Error = mockNetError{}

func TestFormat_NetError_Timeout(t *testing.T) {
	err := mockNetError{
		msg:     "i/o timeout",
		timeout: true,
	}
	result := Format(err, nil)

	checks := []string{
		"i/o timeout",
		"Possible causes:",
		"Request timed out",
		"Suggestions:",
	}

	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_WithoutContext(t *testing.T) {
	err := ferr.New(ferr.Resolution, "index.resolve", "", errors.New("no matching version"))

	result := Format(err, nil)

	if !strings.Contains(result, "crateferry versions <pkg>") {
		t.Errorf("expected generic suggestion, got:\n%s", result)
	}
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"GitHub API rate limit exceeded", true},
		{"rate-limit: too many requests", true},
		{"Too many requests to the server", true},
		{"connection failed", false},
		{"file not found", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isRateLimitError(tt.msg); got != tt.expected {
				t.Errorf("isRateLimitError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"dial tcp: connection refused", true},
		{"connection reset by peer", true},
		{"no such host", true},
		{"i/o timeout", true},
		{"file not found", false},
		{"permission denied", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isNetworkError(tt.msg); got != tt.expected {
				t.Errorf("isNetworkError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"package not found", true},
		{"returned 404", true},
		{"does not exist in index", true},
		{"connection failed", false},
		{"rate limit exceeded", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isNotFoundError(tt.msg); got != tt.expected {
				t.Errorf("isNotFoundError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}

func TestIsPermissionError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"permission denied", true},
		{"access denied", true},
		{"operation not permitted", true},
		{"file not found", false},
		{"connection refused", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isPermissionError(tt.msg); got != tt.expected {
				t.Errorf("isPermissionError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}
