package plugins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/trialrun/internal/plugin"
	"github.com/roach88/trialrun/internal/sampling"
)

// Text shows a stimulus and records the participant's response.
//
// With choices set, responses outside the list are ignored. trial_duration
// ends the trial with a nil response if nothing valid arrives in time. With
// response_ends_trial false a response is held until trial_duration elapses.
type Text struct {
	responder Responder
}

var (
	_ plugin.Plugin    = (*Text)(nil)
	_ plugin.Simulator = (*Text)(nil)
)

// NewText creates the "text" plugin.
func NewText(r Responder) *Text {
	return &Text{responder: r}
}

func (p *Text) Info() plugin.Info {
	return plugin.Info{
		Name:    "text",
		Version: "1.0.0",
		Parameters: []plugin.Parameter{
			{Name: "stimulus", Type: plugin.HTMLString, Required: true},
			{Name: "prompt", Type: plugin.HTMLString, Default: ""},
			{Name: "choices", Type: plugin.Keys, Array: true},
			{Name: "trial_duration", Type: plugin.Int},
			{Name: "response_ends_trial", Type: plugin.Bool, Default: true},
		},
		Data: []plugin.Parameter{
			{Name: "stimulus", Type: plugin.HTMLString},
			{Name: "response", Type: plugin.String},
			{Name: "rt", Type: plugin.Int},
		},
	}
}

// textResponse collects the first valid response of a trial.
type textResponse struct {
	mu       sync.Mutex
	response any
	rt       any
}

func (r *textResponse) set(response string, rt int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.response != nil {
		return false
	}
	r.response = response
	r.rt = rt
	return true
}

func (r *textResponse) data(stimulus string) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]any{"stimulus": stimulus, "response": r.response, "rt": r.rt}
}

func (p *Text) Trial(ctx context.Context, call *plugin.Call) (*plugin.Deferred, error) {
	stimulus := fmt.Sprint(call.Params["stimulus"])
	choices := stringList(call.Params["choices"])
	endsTrial := boolParam(call.Params["response_ends_trial"], true)
	duration, timed := millis(call.Params["trial_duration"])

	fmt.Fprintln(call.Display, stimulus)
	if prompt, _ := call.Params["prompt"].(string); prompt != "" {
		fmt.Fprintln(call.Display, prompt)
	}
	if len(choices) > 0 {
		fmt.Fprintf(call.Display, "[%s]\n", strings.Join(choices, "/"))
	}
	call.OnLoad()

	d := plugin.NewDeferred()
	resp := &textResponse{}
	start := call.API.TotalTime()

	if timed {
		call.API.SetTimeout(duration, func() {
			d.Resolve(resp.data(stimulus))
		})
	}

	tctx, cancel := context.WithCancel(ctx)
	go func() {
		<-d.Done()
		cancel()
	}()
	go func() {
		for {
			line, err := p.responder.Respond(tctx)
			switch {
			case errors.Is(err, io.EOF):
				if !timed {
					d.Resolve(resp.data(stimulus))
				}
				return
			case err != nil:
				if tctx.Err() == nil {
					d.Reject(fmt.Errorf("read response: %w", err))
				}
				return
			}
			if len(choices) > 0 && !slices.Contains(choices, line) {
				continue
			}
			resp.set(line, elapsedMillis(call.API.TotalTime()-start))
			if endsTrial || !timed {
				d.Resolve(resp.data(stimulus))
				return
			}
		}
	}()
	return d, nil
}

// Simulate picks a random choice (or a random word) and an ex-Gaussian
// response time. In visual mode the trial is shown and ends after that time.
func (p *Text) Simulate(_ context.Context, call *plugin.Call, opts plugin.SimulationOptions) (*plugin.Deferred, error) {
	r := call.API.Rand()
	stimulus := fmt.Sprint(call.Params["stimulus"])
	choices := stringList(call.Params["choices"])

	var response any
	if len(choices) > 0 {
		response = choices[r.IntN(len(choices))]
	} else {
		response = sampling.RandomID(r, 8)
	}
	rt := int64(math.Round(sampling.SampleExGaussian(r, 500, 50, 1.0/150, true)))

	data := map[string]any{"stimulus": stimulus, "response": response, "rt": rt}
	if duration, ok := millis(call.Params["trial_duration"]); ok && rt > duration.Milliseconds() {
		data["response"] = nil
		data["rt"] = nil
	}
	maps.Copy(data, opts.Data)

	if opts.Mode == plugin.DataOnly {
		return plugin.Resolved(data), nil
	}

	fmt.Fprintln(call.Display, stimulus)
	call.OnLoad()
	delay, ok := millis(data["rt"])
	if !ok {
		delay, _ = millis(call.Params["trial_duration"])
	}
	d := plugin.NewDeferred()
	call.API.SetTimeout(delay, func() { d.Resolve(data) })
	return d, nil
}
