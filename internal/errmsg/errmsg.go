// Package errmsg formats errors with actionable suggestions for the CLI.
package errmsg

import (
	"fmt"
	"net"
	"strings"

	"github.com/tsukumogami/crateferry/internal/ferr"
)

// ErrorContext provides additional context for error formatting.
type ErrorContext struct {
	Pkg string // the package name being installed, for suggestions
}

// Format returns a formatted error message with possible causes and
// suggestions. ctx is optional; pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	var fe *ferr.Error
	if asFerr(err, &fe) {
		return formatByKind(fe, ctx)
	}

	errMsg := err.Error()

	var netErr net.Error
	if asNetError(err, &netErr) {
		return formatNetworkError(netErr, ctx)
	}
	if isRateLimitError(errMsg) {
		return formatRateLimitError(errMsg, ctx)
	}
	if isNetworkError(errMsg) {
		return formatGenericNetworkError(errMsg, ctx)
	}
	if isNotFoundError(errMsg) {
		return formatNotFoundError(errMsg, ctx)
	}
	if isPermissionError(errMsg) {
		return formatPermissionError(errMsg, ctx)
	}

	return errMsg
}

func asFerr(err error, target **ferr.Error) bool {
	for err != nil {
		if fe, ok := err.(*ferr.Error); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func formatByKind(fe *ferr.Error, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(fe.Error())
	sb.WriteString("\n")

	switch fe.Kind {
	case ferr.Configuration:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Conflicting or malformed flags\n")
		sb.WriteString("  - An invalid manifest or cfg() predicate\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check the flag combination against crateferry --help\n")

	case ferr.Resolution:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - No published version satisfies the requested range\n")
		sb.WriteString("  - The index is unreachable\n")
		sb.WriteString("\nSuggestions:\n")
		if ctx != nil && ctx.Pkg != "" {
			sb.WriteString(fmt.Sprintf("  - Run 'crateferry versions %s' to see available versions\n", ctx.Pkg))
		} else {
			sb.WriteString("  - Run 'crateferry versions <pkg>' to see available versions\n")
		}

	case ferr.Candidate:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - This fetch strategy had no matching asset for the target\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - crateferry will try the next strategy automatically\n")

	case ferr.Transport:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Network connectivity issue or DNS failure\n")
		sb.WriteString("  - The host is rate-limiting or returning 5xx\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check your internet connection and retry\n")
		sb.WriteString("  - Set a GITHUB_TOKEN to raise GitHub API rate limits\n")

	case ferr.Integrity:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The downloaded archive format did not match the manifest\n")
		sb.WriteString("  - Signature verification failed or was missing under --only-signed\n")
		sb.WriteString("  - The expected binary was absent from the archive\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Drop --only-signed if the package is not signed, or report the mismatch\n")

	case ferr.Filesystem:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Insufficient permissions on the install root\n")
		sb.WriteString("  - The destination already exists without --force\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check permissions on the install root, or pass --force to overwrite\n")

	case ferr.Concurrency:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Another crateferry process holds the tracking manifest lock\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Wait for the other process to finish and retry\n")

	case ferr.Cancelled:
		sb.WriteString("\nThe operation was cancelled before it completed.\n")

	default:
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Try again in a few minutes\n")
	}

	return sb.String()
}

func formatRateLimitError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Too many requests to the index or metadata host\n")
	sb.WriteString("  - Unauthenticated requests have lower limits\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Set GITHUB_TOKEN to increase rate limit\n")
	sb.WriteString("  - Wait a few minutes before retrying\n")
	if ctx != nil && ctx.Pkg != "" {
		sb.WriteString(fmt.Sprintf("  - Use 'crateferry install %s@<version>' to specify a version directly\n", ctx.Pkg))
	}

	return sb.String()
}

func formatNetworkError(err net.Error, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	if err.Timeout() {
		sb.WriteString("  - Request timed out\n")
		sb.WriteString("  - Slow or unstable network connection\n")
	} else {
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - DNS resolution failure\n")
	}
	sb.WriteString("  - Firewall or proxy blocking the connection\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")

	return sb.String()
}

func formatGenericNetworkError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue\n")
	sb.WriteString("  - DNS resolution failure\n")
	sb.WriteString("  - Service temporarily unavailable\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")

	return sb.String()
}

func formatNotFoundError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - The package does not exist in the index\n")
	sb.WriteString("  - Typo in the package name\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check the spelling of the package name\n")
	if ctx != nil && ctx.Pkg != "" {
		sb.WriteString(fmt.Sprintf("  - Run 'crateferry versions %s' to see what the index knows\n", ctx.Pkg))
	}

	return sb.String()
}

func formatPermissionError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Insufficient permissions on the install root\n")
	sb.WriteString("  - The path is owned by a different user\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check permissions on the install root, or pass --install-path\n")

	return sb.String()
}

func isRateLimitError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate-limit") ||
		strings.Contains(lower, "too many requests")
}

func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "i/o timeout")
}

func isNotFoundError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "404") ||
		strings.Contains(lower, "does not exist")
}

func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted")
}
