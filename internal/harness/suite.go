package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Name   string   `json:"name,omitempty"`
	Path   string   `json:"path"`
	Errors []string `json:"errors"`
}

// Discover returns the scenario files (*.yaml, *.yml) under dir in lexical
// order. A file path is returned as-is.
func Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ResultFunc observes a scenario that ran. It may add errors to r; a result
// that no longer passes is counted as a failure.
type ResultFunc func(path string, s *Scenario, r *Result)

// RunSuite loads and runs every scenario under dir. onResult, if non-nil,
// is called after each scenario that ran.
func RunSuite(dir string, onResult ResultFunc, opts ...Option) (*SuiteResult, error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	return RunFiles(paths, onResult, opts...), nil
}

// RunFiles loads and runs the scenarios at paths in order.
func RunFiles(paths []string, onResult ResultFunc, opts ...Option) *SuiteResult {
	suite := &SuiteResult{}
	for _, path := range paths {
		suite.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(ScenarioFailure{Path: path, Errors: []string{err.Error()}})
			continue
		}

		result, err := Run(scenario, opts...)
		if err != nil {
			suite.fail(ScenarioFailure{
				Name:   scenario.Name,
				Path:   path,
				Errors: []string{fmt.Sprintf("scenario execution failed: %v", err)},
			})
			continue
		}
		if onResult != nil {
			onResult(path, scenario, result)
		}
		if !result.Pass {
			suite.fail(ScenarioFailure{Name: scenario.Name, Path: path, Errors: result.Errors})
			continue
		}
		suite.Passed++
	}
	return suite
}

func (s *SuiteResult) fail(f ScenarioFailure) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}
