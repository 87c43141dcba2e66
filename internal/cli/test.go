package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dstore/internal/harness"
	"github.com/roach88/dstore/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string
	Golden string
}

// Golden file states of a scenario.
const (
	goldenMatch    = "match"
	goldenMismatch = "mismatch"
	goldenMissing  = "missing"
	goldenUpdated  = "updated"
)

// scenarioOutcome is the result of one scenario file.
type scenarioOutcome struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// testReport is what dstore test prints.
type testReport struct {
	Scenarios []scenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
}

func (r testReport) String() string {
	if len(r.Scenarios) == 0 {
		return "No scenarios found."
	}

	var b strings.Builder
	for _, s := range r.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %s", mark, s.Name)
		if s.Golden == goldenUpdated {
			b.WriteString(" (golden updated)")
		}
		b.WriteByte('\n')
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed", r.Passed, r.Failed)
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run store scenarios",
		Long: `Run the YAML store scenarios in a directory against a simulated clock.

Each scenario drives a fresh store through its steps and checks the
expectations written next to them. When <golden-dir>/<scenario name>.golden
exists, the recorded trace and final file must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Bad directory or filter

Examples:
  dstore test ./testdata/scenarios
  dstore test ./testdata/scenarios --filter "scenario_*"
  dstore test ./testdata/scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from this run")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenario files whose base name matches this glob")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory (default <scenarios-dir>/../golden)")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return usagef("scenarios directory not found: %s", dir)
	}
	files, err := scenarioFiles(dir, opts.Filter)
	if err != nil {
		return usage("failed to list scenarios", err)
	}

	goldenDir := opts.Golden
	if goldenDir == "" {
		goldenDir = filepath.Join(filepath.Dir(filepath.Clean(dir)), "golden")
	}

	report := testReport{Scenarios: make([]scenarioOutcome, 0, len(files))}
	for _, file := range files {
		out := opts.runScenario(file, goldenDir)
		report.Scenarios = append(report.Scenarios, out)
		if out.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	var fail *ExitError
	if report.Failed > 0 {
		fail = Failure("E_TEST_FAILED", fmt.Sprintf("%d of %d scenarios failed", report.Failed, len(files)), nil)
	}
	return opts.printer(cmd).report(report, fail)
}

// scenarioFiles lists the .yaml and .yml files directly in dir, sorted,
// keeping those whose name without extension matches filter.
func scenarioFiles(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
			}
			if !ok {
				continue
			}
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func (o *TestOptions) runScenario(file, goldenDir string) scenarioOutcome {
	out := scenarioOutcome{Name: filepath.Base(file), File: file}

	sc, err := harness.LoadScenario(file)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return out
	}
	out.Name = sc.Name

	result, err := harness.Run(sc)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("run failed: %v", err)}
		return out
	}
	out.Errors = append(out.Errors, result.Errors...)

	got := harness.Snapshot(sc.Name, result)
	path := filepath.Join(goldenDir, sc.Name+".golden")
	want, err := os.ReadFile(path)
	switch {
	case o.Update:
		if err := writeGolden(path, got); err != nil {
			out.Errors = append(out.Errors, err.Error())
		} else {
			out.Golden = goldenUpdated
		}
	case errors.Is(err, fs.ErrNotExist):
		out.Golden = goldenMissing
	case err != nil:
		out.Errors = append(out.Errors, fmt.Sprintf("read golden file: %v", err))
	case bytes.Equal(want, got):
		out.Golden = goldenMatch
	default:
		out.Golden = goldenMismatch
		out.Errors = append(out.Errors, fmt.Sprintf(
			"trace does not match golden file at %s (run with --update to regenerate)", firstDifference(want, got)))
	}

	out.Pass = len(out.Errors) == 0
	return out
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	if err := store.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}

// firstDifference names the first line where want and got differ.
func firstDifference(want, got []byte) string {
	w := strings.Split(string(want), "\n")
	g := strings.Split(string(got), "\n")
	for i := range max(len(w), len(g)) {
		var wl, gl string
		if i < len(w) {
			wl = w[i]
		}
		if i < len(g) {
			gl = g[i]
		}
		if wl != gl {
			return fmt.Sprintf("line %d: want %q, got %q", i+1, wl, gl)
		}
	}
	return "end of file"
}
