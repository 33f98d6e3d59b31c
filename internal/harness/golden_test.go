package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name)

			result, err := RunWithGolden(t, newBackend(), scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario := &Scenario{
		Name: "twice",
		Steps: []Step{{
			Name:  "money",
			Input: map[string]any{"construct": map[string]any{"values": map[string]any{"amount": 1.5, "currency": "EUR"}}},
		}},
	}

	first, err := runScenario(t, scenario)
	require.NoError(t, err)
	second, err := runScenario(t, scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"currency": "EUR"`)
}

func TestSnapshot_IncludesErrors(t *testing.T) {
	result := NewResult()
	result.AddError("step one: expected value 1, got 2")

	out, err := Snapshot("failing", result)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"pass": false`)
	assert.Contains(t, string(out), "expected value 1, got 2")
}
