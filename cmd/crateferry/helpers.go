package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tsukumogami/crateferry/internal/errmsg"
)

// handleRunError prints a non-nil run error with actionable formatting
// and exits with its mapped code; called once from main() after
// rootCmd.Execute returns a non-nil error.
func handleRunError(err error) {
	if errors.Is(err, errConfirmDeclined) {
		fmt.Fprintln(os.Stdout, "install declined")
		exitWithCode(exitCodeForErr(err))
	}

	fmt.Fprintln(os.Stderr, errmsg.Format(err, nil))
	exitWithCode(exitCodeForErr(err))
}
