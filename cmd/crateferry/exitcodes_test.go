package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tsukumogami/crateferry/internal/ferr"
)

func TestExitCodeForErrSentinels(t *testing.T) {
	assert.Equal(t, ExitAborted, exitCodeForErr(errConfirmDeclined))
	assert.Equal(t, ExitPartialFailure, exitCodeForErr(errPartialFailure))
	assert.Equal(t, ExitBinConflict, exitCodeForErr(fmt.Errorf("wrap: %w", errBinConflict)))
}

func TestExitCodeForErrFerrKinds(t *testing.T) {
	cases := map[ferr.Kind]int{
		ferr.Configuration: ExitUsage,
		ferr.Resolution:    ExitUsage,
		ferr.Candidate:     ExitStrategiesExhausted,
		ferr.Cancelled:     ExitCancelled,
		ferr.Transport:     ExitGeneral,
		ferr.Filesystem:    ExitGeneral,
	}
	for kind, want := range cases {
		err := ferr.New(kind, "op", "pkg", nil)
		assert.Equal(t, want, exitCodeForErr(err), "kind=%s", kind)
	}
}

func TestExitCodeForErrUnknownDefaultsToGeneral(t *testing.T) {
	assert.Equal(t, ExitGeneral, exitCodeForErr(fmt.Errorf("plain error")))
}
