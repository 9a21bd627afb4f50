// Package ferr defines the error-kind taxonomy from spec.md §7, shared
// across the resolution-and-fetch pipeline so the scheduler and CLI can
// dispatch on Kind instead of sniffing error strings.
package ferr

import "fmt"

// Kind classifies an error for propagation and exit-code purposes.
type Kind int

const (
	// Configuration covers bad arguments, mutually exclusive flags,
	// malformed manifests, and malformed cfg predicates.
	Configuration Kind = iota
	// Resolution covers unmatched version requirements, an unreachable
	// index, or a registry/index flag conflict.
	Resolution
	// Candidate covers a failed URL probe; not fatal for the package, the
	// scheduler moves on to the next candidate.
	Candidate
	// Transport covers network I/O, TLS negotiation, and retry-exhausted
	// 5xx responses.
	Transport
	// Integrity covers format mismatches, a missing signature under
	// --only-signed, a failed signature verification, or a binary absent
	// from the archive. Integrity errors are never retried against the
	// same candidate.
	Integrity
	// Filesystem covers permission errors, cross-device renames, a full
	// disk, or an existing file without --force.
	Filesystem
	// Concurrency covers a failed lock acquisition.
	Concurrency
	// Cancelled covers cooperative cancellation; not surfaced as a user
	// error unless it prevented completion.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Resolution:
		return "resolution"
	case Candidate:
		return "candidate"
	case Transport:
		return "transport"
	case Integrity:
		return "integrity"
	case Filesystem:
		return "filesystem"
	case Concurrency:
		return "concurrency"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the structured error type propagated through the pipeline.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "fetch.metadata.find"
	Pkg  string // the package name involved, if any
	Err  error  // the underlying error, if any
}

func (e *Error) Error() string {
	switch {
	case e.Pkg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Op, e.Pkg, e.Err)
	case e.Pkg != "":
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Op, e.Pkg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error.
func New(kind Kind, op, pkg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Pkg: pkg, Err: err}
}

// Is reports whether err is an *Error of the given kind, unwrapping
// through the error chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			return fe.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
