package main

import (
	"errors"
	"os"

	"github.com/tsukumogami/crateferry/internal/ferr"
)

// Exit codes, per spec.md §6. Unlike most of the taxonomy, 76/88/94 are
// spec-mandated literal values rather than ours to assign.
const (
	ExitSuccess = 0

	// ExitGeneral covers transport, filesystem, integrity, and
	// concurrency failures with no more specific code.
	ExitGeneral = 1

	// ExitUsage covers argument/config errors: mutually exclusive flags,
	// an invalid version requirement.
	ExitUsage = 2

	// ExitAborted is returned when the user declines the confirmation
	// gate (spec.md §4.H) — a well-defined non-commit status, not an
	// error.
	ExitAborted = 3

	// ExitPartialFailure is returned when --continue-on-failure is set
	// and at least one package failed.
	ExitPartialFailure = 76

	// ExitBinConflict is returned when --no-track refuses to overwrite
	// an existing bin-dir file without --force.
	ExitBinConflict = 88

	// ExitStrategiesExhausted is returned when every (target, strategy)
	// combination failed for a package.
	ExitStrategiesExhausted = 94

	// ExitCancelled is returned on a forced exit after a second
	// SIGINT/SIGTERM.
	ExitCancelled = 130
)

func exitWithCode(code int) {
	os.Exit(code)
}

// exitCodeForErr maps a pipeline error to its exit code: sentinel run.go
// errors first (the literal codes spec.md §6 mandates), then ferr.Kind's
// generic mapping (spec.md §7).
func exitCodeForErr(err error) int {
	switch {
	case errors.Is(err, errConfirmDeclined):
		return ExitAborted
	case errors.Is(err, errBinConflict):
		return ExitBinConflict
	case errors.Is(err, errPartialFailure):
		return ExitPartialFailure
	}

	var fe *ferr.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case ferr.Configuration, ferr.Resolution:
			return ExitUsage
		case ferr.Candidate:
			return ExitStrategiesExhausted
		case ferr.Cancelled:
			return ExitCancelled
		default:
			return ExitGeneral
		}
	}
	return ExitGeneral
}
