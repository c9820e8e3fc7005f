package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crid/internal/ir"
)

// TestScenarios runs every scenario in testdata/scenarios and compares its
// trace with testdata/golden/<name>.golden.
//
// Regenerate with:
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalTrace_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/capacity_exhausted.yaml")
	require.NoError(t, err)

	r1, err := Run(scenario)
	require.NoError(t, err)
	r2, err := Run(scenario)
	require.NoError(t, err)

	b1, err := MarshalTrace(scenario.Name, r1)
	require.NoError(t, err)
	b2, err := MarshalTrace(scenario.Name, r2)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
}

func TestMarshalTrace_OmitsEventForRejection(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{
		Step:      "flow[0]",
		RequestID: "r-1",
		As:        "u1",
		Op:        "updateEnrollment",
		Args:      ir.Object{"code": ir.String("X"), "state": ir.String("Pending")},
		Case:      "CourseNotFound",
	})

	got, err := MarshalTrace("rejection", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"rejection","trace":[{"args":{"code":"X","state":"Pending"},"as":"u1","case":"CourseNotFound","op":"updateEnrollment","request_id":"r-1","step":"flow[0]"}]}`,
		string(got))
}
