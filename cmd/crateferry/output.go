package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tsukumogami/crateferry/internal/schedule"
)

// planEntryJSON and planFailureJSON mirror schedule.PlanEntry/Failure in
// a stable, purely textual shape for --json-output (spec.md §6).
type planEntryJSON struct {
	Package  string `json:"package"`
	Version  string `json:"version"`
	Target   string `json:"target"`
	Strategy string `json:"strategy"`
}

type planFailureJSON struct {
	Package string `json:"package"`
	Error   string `json:"error"`
}

type planJSON struct {
	Entries  []planEntryJSON   `json:"entries"`
	Failures []planFailureJSON `json:"failures,omitempty"`
}

// printPlanJSON emits the resolved plan as one JSON document to stdout.
func printPlanJSON(plan *schedule.Plan) {
	doc := planJSON{Entries: make([]planEntryJSON, 0, len(plan.Entries))}
	for _, e := range plan.Entries {
		doc.Entries = append(doc.Entries, planEntryJSON{
			Package:  e.Package,
			Version:  e.Version,
			Target:   e.Target.String(),
			Strategy: e.Strategy,
		})
	}
	for _, f := range plan.Failures {
		doc.Failures = append(doc.Failures, planFailureJSON{Package: f.Package, Error: f.Err.Error()})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
