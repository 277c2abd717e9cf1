package plugins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/roach88/trialrun/internal/plugin"
	"github.com/roach88/trialrun/internal/sampling"
)

// SurveyText asks free-text questions in order and records the answers
// keyed by question name. Unnamed questions are keyed Q0, Q1, ...
type SurveyText struct {
	responder Responder
}

var (
	_ plugin.Plugin    = (*SurveyText)(nil)
	_ plugin.Simulator = (*SurveyText)(nil)
)

// NewSurveyText creates the "survey-text" plugin.
func NewSurveyText(r Responder) *SurveyText {
	return &SurveyText{responder: r}
}

func (p *SurveyText) Info() plugin.Info {
	return plugin.Info{
		Name:    "survey-text",
		Version: "1.0.0",
		Parameters: []plugin.Parameter{
			{Name: "questions", Type: plugin.Complex, Array: true, Required: true, Nested: []plugin.Parameter{
				{Name: "prompt", Type: plugin.HTMLString, Required: true},
				{Name: "placeholder", Type: plugin.String, Default: ""},
				{Name: "name", Type: plugin.String, Default: ""},
				{Name: "required", Type: plugin.Bool, Default: false},
			}},
			{Name: "preamble", Type: plugin.HTMLString, Default: ""},
		},
		Data: []plugin.Parameter{
			{Name: "response", Type: plugin.Object},
			{Name: "rt", Type: plugin.Int},
		},
	}
}

type question struct {
	prompt      string
	placeholder string
	name        string
	required    bool
}

func questions(v any) []question {
	list, _ := v.([]any)
	out := make([]question, 0, len(list))
	for i, e := range list {
		m, _ := e.(map[string]any)
		q := question{
			prompt:   fmt.Sprint(m["prompt"]),
			required: boolParam(m["required"], false),
		}
		q.placeholder, _ = m["placeholder"].(string)
		q.name, _ = m["name"].(string)
		if q.name == "" {
			q.name = fmt.Sprintf("Q%d", i)
		}
		out = append(out, q)
	}
	return out
}

func (p *SurveyText) Trial(ctx context.Context, call *plugin.Call) (*plugin.Deferred, error) {
	qs := questions(call.Params["questions"])
	if preamble, _ := call.Params["preamble"].(string); preamble != "" {
		fmt.Fprintln(call.Display, preamble)
	}
	call.OnLoad()

	d := plugin.NewDeferred()
	start := call.API.TotalTime()
	go func() {
		answers := make(map[string]any, len(qs))
		for _, q := range qs {
			answer, err := p.ask(ctx, call, q)
			if err != nil {
				d.Reject(err)
				return
			}
			answers[q.name] = answer
		}
		d.Resolve(map[string]any{
			"response": answers,
			"rt":       elapsedMillis(call.API.TotalTime() - start),
		})
	}()
	return d, nil
}

// ask repeats a required question until it gets a non-empty answer. Running
// out of input answers with the empty string.
func (p *SurveyText) ask(ctx context.Context, call *plugin.Call, q question) (string, error) {
	for {
		if q.placeholder != "" {
			fmt.Fprintf(call.Display, "%s (%s)\n", q.prompt, q.placeholder)
		} else {
			fmt.Fprintln(call.Display, q.prompt)
		}
		answer, err := p.responder.Respond(ctx)
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("read answer to %q: %w", q.name, err)
		}
		if answer != "" || !q.required {
			return answer, nil
		}
	}
}

// Simulate answers every question with a random word.
func (p *SurveyText) Simulate(_ context.Context, call *plugin.Call, opts plugin.SimulationOptions) (*plugin.Deferred, error) {
	r := call.API.Rand()
	answers := make(map[string]any)
	var rt int64
	for _, q := range questions(call.Params["questions"]) {
		answers[q.name] = sampling.RandomID(r, 6)
		rt += int64(sampling.SampleExGaussian(r, 2000, 400, 1.0/500, true))
	}
	data := map[string]any{"response": answers, "rt": rt}
	maps.Copy(data, opts.Data)
	if opts.Mode == plugin.Visual {
		call.OnLoad()
	}
	return plugin.Resolved(data), nil
}
