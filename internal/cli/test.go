package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/liftsync/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // glob over scenario file names, without extension
	GoldenDir string // defaults to golden/ next to the scenarios directory
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the outcome of a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run fleet scenarios",
		Long: `Replay scenario files against an in-memory sync core, checking their
expectations and, when a golden file exists, the full trace.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  liftsync test ./testdata/scenarios
  liftsync test ./testdata/scenarios --filter "hall_*"
  liftsync test ./testdata/scenarios --update
  liftsync test ./testdata/scenarios --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return &ExitError{
			Code:    ExitCommandError,
			Kind:    CodeArgs,
			Message: fmt.Sprintf("scenarios directory not found: %s", dir),
		}
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return &ExitError{Code: ExitCommandError, Kind: CodeArgs, Message: "invalid filter pattern", Err: err}
		}
	}
	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(filepath.Dir(filepath.Clean(dir)), "golden")
	}

	files, err := scenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	w := cmd.OutOrStdout()
	text := opts.Format != "json"
	if len(files) == 0 && text {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	result := TestResult{Scenarios: []ScenarioResult{}, Total: len(files)}
	for _, file := range files {
		r := checkScenario(file, goldenDir, opts.Update)
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, r)
		if text {
			printScenario(w, r)
		}
	}

	if text {
		fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		if result.Failed == 0 {
			fmt.Fprintln(w, "✓ All scenarios passed")
		}
	} else if err := writeTestJSON(w, result); err != nil {
		return err
	}

	if result.Failed > 0 {
		return &ExitError{
			Code:     ExitFailure,
			Kind:     CodeTestFailed,
			Message:  fmt.Sprintf("%d scenario(s) failed", result.Failed),
			Reported: !text,
		}
	}
	return nil
}

// scenarioFiles lists *.yaml and *.yml files under dir in lexical order.
func scenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			// The pattern was checked by the caller.
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// checkScenario runs one file and compares its trace with the golden file,
// or rewrites the golden file when update is set. A scenario without a
// golden file is judged on its expectations alone.
func checkScenario(file, goldenDir string, update bool) ScenarioResult {
	sc, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	res, err := harness.Run(sc)
	if err != nil {
		return ScenarioResult{
			Name:   sc.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	out := ScenarioResult{Name: sc.Name, Pass: res.Pass, Errors: res.Errors}
	trace := harness.FormatTrace(sc.Name, res)
	goldenPath := filepath.Join(goldenDir, sc.Name+".golden")

	if update {
		err := os.MkdirAll(goldenDir, 0o755)
		if err == nil {
			err = os.WriteFile(goldenPath, trace, 0o644)
		}
		if err != nil {
			return fail(out, fmt.Sprintf("failed to write golden file: %v", err))
		}
		return out
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return out
	case err != nil:
		return fail(out, fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(golden, trace):
		return fail(out, "trace does not match golden file (run with --update to regenerate)")
	}
	return out
}

func fail(r ScenarioResult, msg string) ScenarioResult {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
	return r
}

func printScenario(w io.Writer, r ScenarioResult) {
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// writeTestJSON writes the whole run as one indented CLIResponse.
func writeTestJSON(w io.Writer, result TestResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    CodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
