package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// Snapshot renders a trace as canonical JSON, one entry per line, so golden
// diffs point at the step or event that changed.
func Snapshot(trace []TraceEntry) ([]byte, error) {
	var buf bytes.Buffer
	for i, entry := range trace {
		m := map[string]any{
			"type":   entry.Type,
			"action": entry.Action,
			"seq":    entry.Seq,
		}
		if len(entry.Args) > 0 {
			m["args"] = entry.Args
		}
		if len(entry.Result) > 0 {
			m["result"] = entry.Result
		}
		line, err := model.MarshalCanonical(m)
		if err != nil {
			return nil, fmt.Errorf("trace[%d]: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario is malformed; goldie fails the test on
// a trace mismatch.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already executed result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
