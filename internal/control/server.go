// Package control exposes a running engine over HTTP.
//
// Routes:
//
//	GET  /health                      liveness
//	GET  /progress                    naive progress of the current or last run
//	GET  /trial                       latest trial (404 before the first run)
//	GET  /data                        records as JSON, or CSV with ?format=csv
//	GET  /warnings                    advisory warnings of the run
//	GET  /events                      server-sent events until the run finishes
//	POST /pause                       pause after the current trial
//	POST /resume                      resume a paused run
//	POST /finish                      finish the current trial; body is its data
//	POST /abort                       abort the run; body {"end_message", "data"}
//	POST /abort/current               abort the innermost active timeline
//	POST /abort/timeline/{name}       abort the active timeline with that name
//
// Control calls made while no run is in progress answer 409 Conflict.
package control

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/engine"
	"github.com/roach88/trialrun/internal/timeline"
)

// Runner is the part of the engine the server drives.
type Runner interface {
	RunID() string
	Running() bool
	Progress() engine.Progress
	CurrentTrial() *timeline.Trial
	Data() *data.Collection
	Warnings() []timeline.Warning
	Subscribe() *engine.Subscription

	Pause() error
	Resume() error
	FinishTrial(values map[string]any)
	AbortExperiment(endMessage string, values map[string]any) error
	AbortCurrentTimeline() error
	AbortTimelineByName(name string) error
}

var _ Runner = (*engine.Engine)(nil)

// ServerOption configures optional Server behavior.
type ServerOption func(*Server)

// WithLogger sets the logger for request and error logs.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// Server serves the control API for one Runner.
type Server struct {
	runner Runner
	logger *slog.Logger
	router chi.Router
}

// NewServer creates a Server with all routes configured.
func NewServer(r Runner, opts ...ServerOption) *Server {
	s := &Server{
		runner: r,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/progress", s.handleProgress)
	r.Get("/trial", s.handleTrial)
	r.Get("/data", s.handleData)
	r.Get("/warnings", s.handleWarnings)
	r.Get("/events", s.handleEvents)

	r.Post("/pause", s.handlePause)
	r.Post("/resume", s.handleResume)
	r.Post("/finish", s.handleFinish)
	r.Post("/abort", s.handleAbort)
	r.Post("/abort/current", s.handleAbortCurrent)
	r.Post("/abort/timeline/{name}", s.handleAbortTimeline)
	return r
}

// ServeHTTP delegates to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
