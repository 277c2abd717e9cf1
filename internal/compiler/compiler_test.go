package compiler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trialrun/internal/engine"
	"github.com/roach88/trialrun/internal/plugin"
	"github.com/roach88/trialrun/internal/testutil"
	"github.com/roach88/trialrun/internal/timeline"
)

func stroopDescription() map[string]any {
	return map[string]any{
		"name": "stroop",
		"timeline": []any{
			map[string]any{"type": "text", "stimulus": "Ready?"},
			map[string]any{
				"name":            "block",
				"repetitions":     int64(2),
				"randomize_order": true,
				"timeline_variables": []any{
					map[string]any{"word": "RED", "color": "red"},
					map[string]any{"word": "BLUE", "color": "blue"},
				},
				"timeline": []any{
					map[string]any{
						"type":           "text",
						"stimulus":       timeline.Var("word"),
						"choices":        []any{"r", "b"},
						"data":           map[string]any{"color": timeline.Var("color")},
						"post_trial_gap": int64(25),
					},
				},
			},
		},
	}
}

func TestLoad_FormatsAgree(t *testing.T) {
	for _, file := range []string{"stroop.yaml", "stroop.cue", "stroop.hcl"} {
		t.Run(file, func(t *testing.T) {
			desc, err := Load(filepath.Join("testdata", file))
			require.NoError(t, err)
			assert.Equal(t, stroopDescription(), desc)
		})
	}
}

func TestLoad_ListRoot(t *testing.T) {
	desc, err := Load(filepath.Join("testdata", "list_root.yaml"))
	require.NoError(t, err)

	list, ok := desc.([]any)
	require.True(t, ok, "root = %T, want []any", desc)
	assert.Len(t, list, 2)
}

func TestLoad_JSONReadAsYAML(t *testing.T) {
	desc, err := Load(filepath.Join("testdata", "stroop.json"))
	require.NoError(t, err)

	root := desc.(map[string]any)
	assert.Equal(t, int64(1), root["repetitions"])
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
	assert.False(t, IsCompileError(err))

	_, err = Load("experiment.toml")
	assert.ErrorContains(t, err, "unsupported experiment file extension")
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"exp.yaml", FormatYAML},
		{"exp.YML", FormatYAML},
		{"exp.json", FormatYAML},
		{"dir/exp.cue", FormatCUE},
		{"exp.hcl", FormatHCL},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestCompile_SchemaViolations(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "negative repetitions",
			src:   "timeline:\n  - type: text\nrepetitions: -1\n",
			field: "repetitions",
		},
		{
			name:  "fractional repetitions",
			src:   "timeline:\n  - type: text\nrepetitions: 1.5\n",
			field: "repetitions",
		},
		{
			name:  "timeline not a list",
			src:   "timeline: nope\n",
			field: "timeline",
		},
		{
			name:  "timeline variables not objects",
			src:   "timeline:\n  - type: text\ntimeline_variables: [1, 2]\n",
			field: "timeline_variables[0]",
		},
		{
			name:  "unknown sample type",
			src:   "timeline:\n  - type: text\nsample:\n  type: shuffle\n",
			field: "sample.type",
		},
		{
			name:  "randomize order not bool",
			src:   "timeline:\n  - type: text\nrandomize_order: yes please\n",
			field: "randomize_order",
		},
		{
			name:  "trial without type",
			src:   "timeline:\n  - stimulus: hello\n",
			field: "timeline[0]",
		},
		{
			name:  "nested timeline",
			src:   "timeline:\n  - timeline:\n      - type: text\n    repetitions: -2\n",
			field: "timeline[0].repetitions",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]byte(tt.src), "exp.yaml", FormatYAML)
			require.Error(t, err)

			ce, ok := AsCompileError(err)
			require.True(t, ok, "error %v is not a CompileError", err)
			assert.Equal(t, tt.field, ce.Field)
			assert.Equal(t, "exp.yaml", ce.File)
		})
	}
}

func TestCompile_EmptyFile(t *testing.T) {
	_, err := Compile(nil, "empty.yaml", FormatYAML)
	assert.True(t, IsCompileError(err), "error = %v", err)
}

func TestCompile_VariableInRepetitions(t *testing.T) {
	src := "timeline:\n  - type: text\nrepetitions: {\"$var\": n}\n"
	desc, err := Compile([]byte(src), "exp.yaml", FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, timeline.Var("n"), desc.(map[string]any)["repetitions"])
}

func TestCompile_MalformedVariable(t *testing.T) {
	src := "timeline:\n  - type: text\n    stimulus: {\"$var\": word, extra: 1}\n"
	_, err := Compile([]byte(src), "exp.yaml", FormatYAML)
	require.Error(t, err)

	ce, ok := AsCompileError(err)
	require.True(t, ok)
	assert.Equal(t, "timeline[0].stimulus", ce.Field)
}

func TestCompile_YAMLSyntaxError(t *testing.T) {
	_, err := Compile([]byte("timeline: [\n"), "bad.yaml", FormatYAML)
	require.Error(t, err)

	ce, ok := AsCompileError(err)
	require.True(t, ok)
	assert.Equal(t, "yaml", ce.Field)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestCompile_CUEErrorHasPosition(t *testing.T) {
	src := "timeline: [{type: \"text\"}]\nrepetitions: 1\nrepetitions: 2\n"
	_, err := Compile([]byte(src), "bad.cue", FormatCUE)
	require.Error(t, err)

	ce, ok := AsCompileError(err)
	require.True(t, ok, "error %v is not a CompileError", err)
	assert.Equal(t, "cue", ce.Field)
	assert.Positive(t, ce.Line)
}

func TestCompile_CUEIncomplete(t *testing.T) {
	src := "timeline: [{type: string}]\n"
	_, err := Compile([]byte(src), "open.cue", FormatCUE)
	assert.True(t, IsCompileError(err), "error = %v", err)
}

func TestCompile_HCLErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "timeline = [\n"},
		{"block", "trial {\n  type = \"text\"\n}\n"},
		{"unknown function", "timeline = [{ type = \"text\", stimulus = var(\"x\") }]\n"},
		{"empty variable name", "timeline = [{ type = \"text\", stimulus = variable(\"\") }]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]byte(tt.src), "bad.hcl", FormatHCL)
			require.Error(t, err)

			ce, ok := AsCompileError(err)
			require.True(t, ok, "error %v is not a CompileError", err)
			assert.Equal(t, "hcl", ce.Field)
			assert.Positive(t, ce.Line)
		})
	}
}

func TestCompile_HCLNumbers(t *testing.T) {
	src := "timeline = [{ type = \"text\", post_trial_gap = 12.5, weight = 3 }]\n"
	desc, err := Compile([]byte(src), "n.hcl", FormatHCL)
	require.NoError(t, err)

	trial := desc.(map[string]any)["timeline"].([]any)[0].(map[string]any)
	assert.Equal(t, 12.5, trial["post_trial_gap"])
	assert.Equal(t, int64(3), trial["weight"])
}

func TestCompileError_Error(t *testing.T) {
	tests := []struct {
		err  *CompileError
		want string
	}{
		{&CompileError{File: "a.cue", Line: 3, Column: 7, Field: "cue", Message: "conflict"}, "a.cue:3:7: cue: conflict"},
		{&CompileError{File: "a.yaml", Field: "repetitions", Message: "bad"}, "a.yaml: repetitions: bad"},
		{&CompileError{File: "a.yaml", Message: "bad"}, "a.yaml: bad"},
		{&CompileError{Field: "x", Message: "bad"}, "x: bad"},
		{&CompileError{Message: "bad"}, "bad"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestPointerToPath(t *testing.T) {
	assert.Equal(t, "(root)", pointerToPath(""))
	assert.Equal(t, "timeline[0].repetitions", pointerToPath("/timeline/0/repetitions"))
	assert.Equal(t, "data.a/b", pointerToPath("/data/a~1b"))
}

func TestCheckPlugins(t *testing.T) {
	reg := plugin.NewRegistry(testutil.NewScriptedPlugin("text"))

	desc, err := Load(filepath.Join("testdata", "stroop.yaml"))
	require.NoError(t, err)
	assert.NoError(t, CheckPlugins(desc, reg))

	bad := []any{
		map[string]any{"type": "text"},
		map[string]any{"timeline": []any{map[string]any{"type": "audio"}}},
	}
	err = CheckPlugins(bad, reg)
	require.Error(t, err)
	ce, ok := AsCompileError(err)
	require.True(t, ok)
	assert.Equal(t, "[1].timeline[0].type", ce.Field)
	assert.Contains(t, ce.Message, `"audio"`)
}

func TestLoad_RunsThroughEngine(t *testing.T) {
	for _, file := range []string{"stroop.yaml", "stroop.cue", "stroop.hcl"} {
		t.Run(file, func(t *testing.T) {
			desc, err := Load(filepath.Join("testdata", file))
			require.NoError(t, err)

			e := engine.New(
				engine.WithPlugins(plugin.NewRegistry(testutil.NewScriptedPlugin("text"))),
				engine.WithSeed("compiler-test"),
			)
			results, err := e.Run(context.Background(), desc)
			require.NoError(t, err)
			require.Equal(t, 5, results.Count())

			words := map[any]int{}
			for _, rec := range results.Records()[1:] {
				words[rec["stimulus"]]++
				switch rec["stimulus"] {
				case "RED":
					assert.Equal(t, "red", rec["color"])
				case "BLUE":
					assert.Equal(t, "blue", rec["color"])
				}
			}
			assert.Equal(t, map[any]int{"RED": 2, "BLUE": 2}, words)
		})
	}
}
