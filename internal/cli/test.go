package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pawelekbyra/gridfeed/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Golden string // golden directory; defaults to a "golden" sibling of the scenarios
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "mismatch"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
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
		Short: "Run feed scenarios",
		Long: `Run YAML feed scenarios against a scripted collaborator.

Each scenario drives the feed controller step by step and checks its
assertions. When a golden trace exists for a scenario it must also match.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  feedgrid test ./scenarios
  feedgrid test ./scenarios --filter "like_*"
  feedgrid test ./scenarios --update
  feedgrid test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden trace directory")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	paths, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(paths) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	goldenDir := opts.Golden
	if goldenDir == "" {
		goldenDir = defaultGoldenDir(scenariosDir)
	}

	w := cmd.OutOrStdout()
	text := opts.Format != "json"
	ran := make(map[string]*ScenarioResult, len(paths))

	suite := harness.RunFiles(paths, func(path string, s *harness.Scenario, r *harness.Result) {
		sr := &ScenarioResult{Name: s.Name, Path: path}
		checkGolden(opts, goldenDir, s, r, sr)
		sr.Pass = r.Pass
		sr.Errors = r.Errors
		ran[path] = sr

		if !text {
			return
		}
		if r.Pass {
			suffix := ""
			if sr.Golden == "updated" {
				suffix = " (golden updated)"
			}
			fmt.Fprintf(w, "✓ %s%s\n", s.Name, suffix)
			return
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	})

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(paths)),
		Passed:    suite.Passed,
		Failed:    suite.Failed,
		Total:     suite.Total,
	}
	unran := make(map[string]harness.ScenarioFailure)
	for _, f := range suite.Failures {
		if _, ok := ran[f.Path]; !ok {
			unran[f.Path] = f
		}
	}
	for _, path := range paths {
		if sr, ok := ran[path]; ok {
			result.Scenarios = append(result.Scenarios, *sr)
			continue
		}
		f := unran[path]
		name := f.Name
		if name == "" {
			name = filepath.Base(path)
		}
		result.Scenarios = append(result.Scenarios, ScenarioResult{Name: name, Path: path, Errors: f.Errors})
		if text {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range f.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles finds the YAML scenario files under path whose base
// name, without extension, matches filter.
func findScenarioFiles(path string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	all, err := harness.Discover(path)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return all, nil
	}

	var files []string
	for _, f := range all {
		base := filepath.Base(f)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		if matched, _ := filepath.Match(filter, name); matched {
			files = append(files, f)
		}
	}
	return files, nil
}

// defaultGoldenDir returns the "golden" directory next to the scenarios.
func defaultGoldenDir(path string) string {
	dir := filepath.Clean(path)
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	return filepath.Join(filepath.Dir(dir), "golden")
}

// goldenFilePath returns the golden trace path of the named scenario.
func goldenFilePath(goldenDir, name string) string {
	return filepath.Join(goldenDir, name+".golden")
}

// checkGolden updates or compares the scenario's golden trace. Scenarios
// without a golden file are judged by their assertions alone.
func checkGolden(opts *TestOptions, goldenDir string, s *harness.Scenario, r *harness.Result, sr *ScenarioResult) {
	snapshot, err := harness.Snapshot(r.Trace)
	if err != nil {
		r.AddError(fmt.Sprintf("failed to snapshot trace: %v", err))
		return
	}
	path := goldenFilePath(goldenDir, s.Name)

	if opts.Update {
		if err := updateGoldenFile(path, snapshot); err != nil {
			r.AddError(err.Error())
			return
		}
		sr.Golden = "updated"
		return
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		r.AddError(fmt.Sprintf("failed to read golden file: %v", err))
		return
	}
	if !bytes.Equal(want, snapshot) {
		sr.Golden = "mismatch"
		r.AddError("Golden file mismatch (run with --update to regenerate)")
		return
	}
	sr.Golden = "match"
}

// updateGoldenFile writes the current trace as the golden file.
func updateGoldenFile(path string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, snapshot, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}
	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
