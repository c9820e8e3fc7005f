package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/crid/internal/ir"
	"github.com/roach88/crid/internal/registry"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// Object renders the snapshot as an IR object for canonical serialization.
func (s *TraceSnapshot) Object() ir.Object {
	trace := make(ir.Array, len(s.Trace))
	for i, te := range s.Trace {
		entry := ir.Object{
			"step": ir.String(te.Step),
			"as":   ir.String(te.As),
			"op":   ir.String(te.Op),
			"args": te.Args,
			"case": ir.String(te.Case),
		}
		if te.RequestID != "" {
			entry["request_id"] = ir.String(te.RequestID)
		}
		if te.Event != nil {
			entry["event"] = eventObject(*te.Event)
		}
		trace[i] = entry
	}

	return ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"trace":         trace,
	}
}

func eventObject(ev registry.Event) ir.Object {
	return ir.Object{
		"id":      ir.String(ev.ID),
		"seq":     ir.Int(ev.Seq),
		"kind":    ir.String(ev.Kind),
		"payload": ev.Payload(),
	}
}

// MarshalTrace returns the canonical JSON trace of a result, as stored in
// golden files.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.Object())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
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

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
