package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/engine"
)

// maxBodyBytes bounds request bodies of control calls.
const maxBodyBytes = 1 << 20

type progressResponse struct {
	RunID   string `json:"run_id"`
	Running bool   `json:"running"`
	engine.Progress
}

type trialResponse struct {
	RunID      string `json:"run_id"`
	Running    bool   `json:"running"`
	TrialIndex int    `json:"trial_index"`
	TrialType  string `json:"trial_type"`
	Status     string `json:"status"`
}

type warningResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	TrialIndex int    `json:"trial_index"`
}

type abortRequest struct {
	EndMessage string         `json:"end_message"`
	Data       map[string]any `json:"data"`
}

type eventPayload struct {
	Type       string           `json:"type"`
	RunID      string           `json:"run_id"`
	TrialIndex int              `json:"trial_index"`
	TrialType  string           `json:"trial_type,omitempty"`
	Record     data.Record      `json:"record,omitempty"`
	Warning    *warningResponse `json:"warning,omitempty"`
	Status     string           `json:"status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case engine.IsNotRunning(err):
		status = http.StatusConflict
	case engine.IsTimelineNotFound(err):
		status = http.StatusNotFound
	default:
		s.logger.Error("control call failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeBody decodes an optional JSON body into v. An empty body is not an
// error.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, progressResponse{
		RunID:    s.runner.RunID(),
		Running:  s.runner.Running(),
		Progress: s.runner.Progress(),
	})
}

func (s *Server) handleTrial(w http.ResponseWriter, r *http.Request) {
	tr := s.runner.CurrentTrial()
	if tr == nil {
		http.Error(w, "no trial has started", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, trialResponse{
		RunID:      s.runner.RunID(),
		Running:    s.runner.Running(),
		TrialIndex: tr.Index(),
		TrialType:  tr.PluginInfo().Name,
		Status:     tr.Status().String(),
	})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	c := s.runner.Data()
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		b, err := c.MarshalJSON()
		if err != nil {
			s.writeError(w, fmt.Errorf("encode data: %w", err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		if err := c.WriteCSV(w); err != nil {
			s.logger.Error("failed to write csv", "error", err)
		}
	default:
		http.Error(w, fmt.Sprintf("unknown format %q (want json or csv)", format), http.StatusBadRequest)
	}
}

func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	warnings := s.runner.Warnings()
	out := make([]warningResponse, len(warnings))
	for i, wn := range warnings {
		out[i] = warningResponse{Code: string(wn.Code), Message: wn.Message, TrialIndex: wn.TrialIndex}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleEvents streams engine events as server-sent events until the run
// finishes or the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sub := s.runner.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}
	for {
		ev, err := sub.Next(r.Context())
		if err != nil {
			return
		}
		payload, err := json.Marshal(toPayload(ev))
		if err != nil {
			s.logger.Error("failed to encode event", "type", ev.Type.String(), "error", err)
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
		if canFlush {
			flusher.Flush()
		}
		if ev.Type == engine.EventRunFinished {
			return
		}
	}
}

func toPayload(ev engine.Event) eventPayload {
	p := eventPayload{
		Type:       ev.Type.String(),
		RunID:      ev.RunID,
		TrialIndex: ev.TrialIndex,
		TrialType:  ev.TrialType,
		Record:     ev.Record,
		Status:     ev.Status,
	}
	if ev.Warning != nil {
		p.Warning = &warningResponse{
			Code:       string(ev.Warning.Code),
			Message:    ev.Warning.Message,
			TrialIndex: ev.Warning.TrialIndex,
		}
	}
	return p
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Pause(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Resume(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := decodeBody(w, r, &values); err != nil {
		http.Error(w, "body must be a JSON object", http.StatusBadRequest)
		return
	}
	if !s.runner.Running() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no run in progress"})
		return
	}
	s.runner.FinishTrial(values)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	var req abortRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "body must be a JSON object", http.StatusBadRequest)
		return
	}
	if err := s.runner.AbortExperiment(req.EndMessage, req.Data); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAbortCurrent(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.AbortCurrentTimeline(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAbortTimeline(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.AbortTimelineByName(chi.URLParam(r, "name")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
