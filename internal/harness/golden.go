package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as golden file content: the scenario name,
// one line per trace event and the final file.
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder
	b.WriteString("scenario: " + name + "\n")
	for _, event := range result.Trace {
		b.WriteString(event.String())
		b.WriteString("\n")
	}
	b.WriteString("file: " + result.File + "\n")
	return []byte(b.String())
}

// RunWithGolden runs a scenario, fails the test on unmet expectations and
// compares the snapshot with testdata/golden/<name>.golden.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(name, result))
}
