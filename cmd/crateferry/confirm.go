package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tsukumogami/crateferry/internal/schedule"
)

// printPlan renders the resolved install plan before the confirmation
// gate (spec.md §4.H), one line per entry naming the winning strategy and
// target so scheduler behavior is visible to the operator.
func printPlan(plan *schedule.Plan) {
	if jsonOutputFlag {
		printPlanJSON(plan)
		return
	}

	entries := make([]schedule.PlanEntry, len(plan.Entries))
	copy(entries, plan.Entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Package < entries[j].Package })

	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no packages resolved")
	}
	for _, e := range entries {
		fmt.Fprintf(os.Stdout, "  %s %s  (%s via %s)\n", e.Package, e.Version, e.Target, e.Strategy)
	}
	for _, f := range plan.Failures {
		fmt.Fprintf(os.Stdout, "  %s  FAILED: %v\n", f.Package, f.Err)
	}
}

// confirmPlan prompts the operator to accept the plan, returning false on
// any answer but an explicit "y".
func confirmPlan(plan *schedule.Plan) (bool, error) {
	fmt.Fprintf(os.Stdout, "Proceed with installing %d package(s)? [y/N] ", len(plan.Entries))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
