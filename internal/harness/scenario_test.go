package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trialrun/internal/timeline"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "nested_variables.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "nested_variables", scenario.Name)
	assert.Len(t, scenario.Responses, 3)
	require.NotNil(t, scenario.Expect)
	require.NotNil(t, scenario.Expect.Records)
	assert.Equal(t, 3, *scenario.Expect.Records)
	assert.Len(t, scenario.Assertions, 6)
}

func TestLoadScenario_ResolvesFileRelativeToScenario(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "text_choices.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "experiments", "choices.hcl"), scenario.File)

	desc, err := scenario.description()
	require.NoError(t, err)
	root, ok := desc.(map[string]any)
	require.True(t, ok, "expected a timeline map, got %T", desc)
	trials := root["timeline"].([]any)
	assert.Equal(t, timeline.Var("word"), trials[0].(map[string]any)["stimulus"])
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: y\nexperiment: []\nflow: []\n",
			wantErr: "field flow not found",
		},
		{
			name:    "missing name",
			content: "description: y\nexperiment: []\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nexperiment: []\n",
			wantErr: "description is required",
		},
		{
			name:    "no experiment",
			content: "name: x\ndescription: y\n",
			wantErr: "exactly one of experiment and file",
		},
		{
			name:    "both experiment and file",
			content: "name: x\ndescription: y\nexperiment: []\nfile: exp.yaml\n",
			wantErr: "exactly one of experiment and file",
		},
		{
			name:    "bad mode",
			content: "name: x\ndescription: y\nexperiment: []\nmode: headless\n",
			wantErr: `mode "headless"`,
		},
		{
			name:    "negative max trials",
			content: "name: x\ndescription: y\nexperiment: []\nmax_trials: -1\n",
			wantErr: "max_trials must not be negative",
		},
		{
			name:    "assertion without type",
			content: "name: x\ndescription: y\nexperiment: []\nassertions:\n  - event: run_started\n",
			wantErr: "assertion[0]: type is required",
		},
		{
			name:    "unknown assertion type",
			content: "name: x\ndescription: y\nexperiment: []\nassertions:\n  - type: trace_exists\n",
			wantErr: `unknown assertion type "trace_exists"`,
		},
		{
			name:    "trace_count without event",
			content: "name: x\ndescription: y\nexperiment: []\nassertions:\n  - type: trace_count\n    count: 1\n",
			wantErr: "trace_count requires event",
		},
		{
			name:    "final_state bad table",
			content: "name: x\ndescription: y\nexperiment: []\nassertions:\n  - type: final_state\n    table: flows\n    expect: {a: 1}\n",
			wantErr: "final_state table must be runs or trials",
		},
		{
			name:    "final_state without expect",
			content: "name: x\ndescription: y\nexperiment: []\nassertions:\n  - type: final_state\n    table: runs\n",
			wantErr: "final_state requires expect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestRun_CompileErrorIsReturned(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "invalid experiment",
		Experiment:  []any{map[string]any{"type": "scripted", "repetitions": -1, "timeline": []any{}}},
	}
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile experiment")
}

func TestRun_UnexpectedErrorFailsScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "limit",
		Description: "limit without an expect clause",
		Experiment:  []any{map[string]any{"type": "scripted"}, map[string]any{"type": "scripted"}},
		MaxTrials:   1,
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "run failed")
	assert.Equal(t, "aborted", result.Status)
}

func TestRun_ExpectMismatch(t *testing.T) {
	records := 2
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "wrong expectations",
		Experiment:  []any{map[string]any{"type": "scripted"}},
		Expect:      &ExpectClause{Status: "aborted", Error: "boom", Records: &records},
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		`expected run error containing "boom", got ""`,
		`expected status "aborted", got "completed"`,
		"expected 2 records, got 1",
	}, result.Errors)
}
