package plugins

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/engine"
	"github.com/roach88/trialrun/internal/plugin"
	"github.com/roach88/trialrun/internal/testutil"
)

func newEngine(r Responder, opts ...engine.EngineOption) *engine.Engine {
	base := []engine.EngineOption{
		engine.WithPlugins(Builtins(r)),
		engine.WithRunIDGenerator(testutil.NewSequentialIDs("run")),
		engine.WithSeed("plugins"),
	}
	return engine.New(append(base, opts...)...)
}

func run(t *testing.T, e *engine.Engine, desc any) *data.Collection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := e.Run(ctx, desc)
	require.NoError(t, err)
	return c
}

func TestText_RecordsResponse(t *testing.T) {
	var out bytes.Buffer
	e := newEngine(NewScriptResponder("yes", "no"), engine.WithDisplay(plugin.NewWriterDisplay(&out)))

	c := run(t, e, []any{
		map[string]any{"type": "text", "stimulus": "Ready?"},
		map[string]any{"type": "text", "stimulus": "Sure?", "prompt": "type an answer"},
	})

	assert.Equal(t, []any{"yes", "no"}, c.Values("response"))
	assert.Equal(t, []any{"Ready?", "Sure?"}, c.Values("stimulus"))
	assert.Equal(t, "Ready?\nSure?\ntype an answer\n", out.String())
}

func TestText_IgnoresInvalidChoices(t *testing.T) {
	e := newEngine(NewScriptResponder("x", "maybe", "f"))

	c := run(t, e, []any{
		map[string]any{"type": "text", "stimulus": "?", "choices": []any{"f", "j"}},
	})
	assert.Equal(t, []any{"f"}, c.Values("response"))
}

func TestText_TrialDurationWithoutResponse(t *testing.T) {
	e := newEngine(NewScriptResponder())

	c := run(t, e, []any{
		map[string]any{"type": "text", "stimulus": "?", "trial_duration": 10},
	})
	assert.Equal(t, []any{nil}, c.Values("response"))
	assert.Equal(t, []any{nil}, c.Values("rt"))
}

func TestText_ResponseHeldUntilDuration(t *testing.T) {
	e := newEngine(NewScriptResponder("a", "b"))

	c := run(t, e, []any{
		map[string]any{"type": "text", "stimulus": "?", "trial_duration": 20, "response_ends_trial": false},
	})
	assert.Equal(t, []any{"a"}, c.Values("response"), "the first response is kept")
}

func TestText_EOFEndsUntimedTrial(t *testing.T) {
	e := newEngine(NewScriptResponder())

	c := run(t, e, []any{map[string]any{"type": "text", "stimulus": "?"}})
	assert.Equal(t, []any{nil}, c.Values("response"))
}

func TestText_MissingStimulus(t *testing.T) {
	e := newEngine(NewScriptResponder())

	_, err := e.Run(context.Background(), []any{map[string]any{"type": "text"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING_PARAMETER")
}

func TestText_SimulateDataOnly(t *testing.T) {
	e := newEngine(NewScriptResponder())

	c, err := e.Simulate(context.Background(), []any{
		map[string]any{"type": "text", "stimulus": "?", "choices": []any{"f", "j"}},
		map[string]any{"type": "text", "stimulus": "?", "simulation_options": map[string]any{"data": map[string]any{"response": "forced"}}},
	}, plugin.DataOnly, nil)
	require.NoError(t, err)

	responses := c.Values("response")
	require.Len(t, responses, 2)
	assert.Contains(t, []any{"f", "j"}, responses[0])
	assert.Equal(t, "forced", responses[1])
	for _, rt := range c.Values("rt") {
		assert.IsType(t, int64(0), rt)
		assert.Positive(t, rt.(int64))
	}
}

func TestText_SimulateIsReproducible(t *testing.T) {
	desc := []any{
		map[string]any{"type": "text", "stimulus": "a"},
		map[string]any{"type": "text", "stimulus": "b"},
	}
	first, err := newEngine(NewScriptResponder()).Simulate(context.Background(), desc, plugin.DataOnly, nil)
	require.NoError(t, err)
	second, err := newEngine(NewScriptResponder()).Simulate(context.Background(), desc, plugin.DataOnly, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Values("response"), second.Values("response"))
	assert.Equal(t, first.Values("rt"), second.Values("rt"))
}

func TestSurveyText(t *testing.T) {
	e := newEngine(NewScriptResponder("Ada", "", "42"))

	c := run(t, e, []any{
		map[string]any{
			"type":     "survey-text",
			"preamble": "About you",
			"questions": []any{
				map[string]any{"prompt": "Name?", "name": "name"},
				map[string]any{"prompt": "Age?", "required": true},
			},
		},
	})

	require.Equal(t, 1, c.Count())
	assert.Equal(t, map[string]any{"name": "Ada", "Q1": "42"}, c.Records()[0]["response"],
		"an empty answer to a required question is asked again")
}

func TestSurveyText_MissingPrompt(t *testing.T) {
	e := newEngine(NewScriptResponder())

	_, err := e.Run(context.Background(), []any{
		map[string]any{"type": "survey-text", "questions": []any{map[string]any{"name": "x"}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "questions[0].prompt")
}

func TestSurveyText_Simulate(t *testing.T) {
	e := newEngine(NewScriptResponder())

	c, err := e.Simulate(context.Background(), []any{
		map[string]any{"type": "survey-text", "questions": []any{map[string]any{"prompt": "a"}, map[string]any{"prompt": "b", "name": "second"}}},
	}, plugin.DataOnly, nil)
	require.NoError(t, err)

	answers, ok := c.Records()[0]["response"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, answers, 2)
	assert.Contains(t, answers, "Q0")
	assert.Contains(t, answers, "second")
}

func TestCallFunction(t *testing.T) {
	calls := 0
	e := newEngine(NewScriptResponder())

	c := run(t, e, []any{
		map[string]any{"type": "call-function", "func": func() any { calls++; return "computed" }},
		map[string]any{"type": "call-function", "func": func() { calls++ }},
		map[string]any{"type": "call-function", "async": true, "func": func(done func(any)) {
			go done(int64(7))
		}},
	})

	assert.Equal(t, 2, calls)
	assert.Equal(t, []any{"computed", nil, int64(7)}, c.Values("value"))
}

func TestCallFunction_WrongShape(t *testing.T) {
	e := newEngine(NewScriptResponder())

	_, err := e.Run(context.Background(), []any{
		map[string]any{"type": "call-function", "async": true, "func": func() any { return nil }},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "async func must be")
}

func TestExternal_WaitsForFinishTrial(t *testing.T) {
	var out bytes.Buffer
	e := newEngine(NewScriptResponder(), engine.WithDisplay(plugin.NewWriterDisplay(&out)))

	loaded := make(chan struct{})
	done := make(chan *data.Collection, 1)
	go func() {
		c, err := e.Run(context.Background(), []any{map[string]any{
			"type":    "external",
			"message": "waiting",
			"on_load": func() { close(loaded) },
		}})
		assert.NoError(t, err)
		done <- c
	}()

	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("trial did not load")
	}
	e.FinishTrial(map[string]any{"source": "operator"})

	select {
	case c := <-done:
		assert.Equal(t, []any{"operator"}, c.Values("source"))
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.Equal(t, "waiting\n", out.String())
}

func TestExternal_Simulate(t *testing.T) {
	e := newEngine(NewScriptResponder())

	c, err := e.Simulate(context.Background(), []any{
		map[string]any{"type": "external", "simulation_options": map[string]any{"data": map[string]any{"ok": true}}},
	}, plugin.DataOnly, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{true}, c.Values("ok"))
}

func TestLineResponder(t *testing.T) {
	r := NewLineResponder(strings.NewReader("first\r\nsecond\n"))
	ctx := context.Background()

	line, err := r.Respond(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = r.Respond(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	_, err = r.Respond(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineResponder_Cancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	r := NewLineResponder(pr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Respond(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScriptResponder(t *testing.T) {
	r := NewScriptResponder("a")
	assert.Equal(t, 1, r.Remaining())

	line, err := r.Respond(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", line)

	_, err = r.Respond(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestMillis(t *testing.T) {
	tests := []struct {
		in   any
		want time.Duration
		ok   bool
	}{
		{int(250), 250 * time.Millisecond, true},
		{int64(1000), time.Second, true},
		{1.5, 1500 * time.Microsecond, true},
		{-1, 0, false},
		{nil, 0, false},
		{"100", 0, false},
	}
	for _, tt := range tests {
		got, ok := millis(tt.in)
		assert.Equal(t, tt.ok, ok, "millis(%v)", tt.in)
		assert.Equal(t, tt.want, got, "millis(%v)", tt.in)
	}
}

func TestBuiltins(t *testing.T) {
	names := Builtins(NewScriptResponder()).Names()
	assert.Equal(t, []string{"call-function", "external", "survey-text", "text"}, names)

	for _, name := range names {
		p, _ := Builtins(NewScriptResponder()).Lookup(name)
		assert.Empty(t, p.Info().Missing(), "%s declares version and data", name)
	}
}
