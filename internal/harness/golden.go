package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatTrace renders a run as stable text: one header per step, the
// changes and errors it caused indented below, then the persisted record
// and journal size.
func FormatTrace(name string, r *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	for _, st := range r.Steps {
		fmt.Fprintf(&b, "[%d] %s\n", st.Index, st.Action)
		if len(st.Events) == 0 {
			b.WriteString("    (no change)\n")
		}
		for _, ev := range st.Events {
			fmt.Fprintf(&b, "    %s: %s\n", ev.Kind, ev.Detail)
		}
	}
	if r.Persisted != "" {
		fmt.Fprintf(&b, "persisted: %s\n", r.Persisted)
	} else {
		b.WriteString("persisted: none\n")
	}
	fmt.Fprintf(&b, "journaled: %d\n", r.Journaled)
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// The scenario's own expectations must also hold.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}

	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, result))
}
