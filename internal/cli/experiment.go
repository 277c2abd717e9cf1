package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/trialrun/internal/compiler"
	"github.com/roach88/trialrun/internal/control"
	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/engine"
	"github.com/roach88/trialrun/internal/plugin"
	"github.com/roach88/trialrun/internal/plugins"
	"github.com/roach88/trialrun/internal/store"
)

// runFlags holds the flags shared by run and simulate.
type runFlags struct {
	Database  string
	Seed      string
	Listen    string
	Out       string
	ITI       time.Duration
	MaxTrials int

	// RunIDs overrides the run id generator (for testing).
	RunIDs engine.IDGenerator
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Database, "db", DefaultDatabase, "path to SQLite database")
	cmd.Flags().StringVar(&f.Seed, "seed", "", "random seed (random when empty)")
	cmd.Flags().StringVar(&f.Listen, "listen", "", "serve the HTTP control API on this address (e.g. :8080)")
	cmd.Flags().StringVarP(&f.Out, "out", "o", "", "write the run's data to a .csv or .json file")
	cmd.Flags().DurationVar(&f.ITI, "iti", 0, "default inter-trial interval")
	cmd.Flags().IntVar(&f.MaxTrials, "max-trials", engine.DefaultMaxTrials, "abort the run after this many trials (0 = no limit)")
}

// runSummary is the result of run and simulate.
type runSummary struct {
	RunID     string           `json:"run_id"`
	SubjectID string           `json:"subject_id"`
	Seed      string           `json:"seed"`
	Mode      string           `json:"mode,omitempty"`
	Status    string           `json:"status"`
	Records   int              `json:"records"`
	Warnings  int              `json:"warnings"`
	Data      *data.Collection `json:"data"`
}

func (s runSummary) renderText(w io.Writer) error {
	mode := "live"
	if s.Mode != "" {
		mode = s.Mode
	}
	_, err := fmt.Fprintf(w, "run %s (%s, seed %s): %s, %d records, %d warnings\n",
		s.RunID, mode, s.Seed, s.Status, s.Records, s.Warnings)
	return err
}

// loadExperiment compiles an experiment file and checks that every trial
// type is registered.
func loadExperiment(path string, reg *plugin.Registry) (any, error) {
	desc, err := compiler.Load(path)
	if err != nil {
		return nil, err
	}
	if err := compiler.CheckPlugins(desc, reg); err != nil {
		return nil, err
	}
	return desc, nil
}

// executeExperiment runs (mode == "") or simulates the experiment at path.
func executeExperiment(cmd *cobra.Command, opts *RootOptions, flags *runFlags, path string, mode plugin.SimulationMode, simOptions map[string]any) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts, cmd.ErrOrStderr())

	registry := plugins.Builtins(plugins.NewLineResponder(cmd.InOrStdin()))
	desc, err := loadExperiment(path, registry)
	if err != nil {
		_ = formatter.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid experiment", err)
	}

	logger.Debug("opening database", "path", flags.Database)
	st, err := store.Open(flags.Database, store.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// Trials render to stdout unless stdout carries JSON.
	screen := cmd.OutOrStdout()
	if opts.Format == "json" {
		screen = cmd.ErrOrStderr()
	}
	engineOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithPlugins(registry),
		engine.WithSink(st),
		engine.WithDisplay(plugin.NewWriterDisplay(screen)),
		engine.WithSeed(flags.Seed),
		engine.WithDefaultITI(flags.ITI),
		engine.WithMaxTrials(flags.MaxTrials),
	}
	if flags.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(flags.RunIDs))
	}
	eng := engine.New(engineOpts...)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	// The first signal aborts the run so its data is kept; the run context
	// stays alive until the engine has written the final status.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, aborting run", "signal", sig)
			if err := eng.AbortExperiment("interrupted", nil); err != nil {
				cancel()
			}
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	if flags.Listen != "" {
		srv := control.NewServer(eng, control.WithLogger(logger))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, flags.Listen); err != nil {
				logger.Error("control server stopped", "error", err)
			}
		}()
	}

	var collection *data.Collection
	var runErr error
	if mode == "" {
		collection, runErr = eng.Run(ctx, desc)
	} else {
		collection, runErr = eng.Simulate(ctx, desc, mode, simOptions)
	}
	cancel()
	wg.Wait()

	if collection == nil {
		collection = data.NewCollection()
	}
	summary := runSummary{
		RunID:     eng.RunID(),
		SubjectID: eng.SubjectID(),
		Seed:      eng.Seed(),
		Mode:      string(mode),
		Records:   collection.Count(),
		Warnings:  len(eng.Warnings()),
		Data:      collection,
	}
	if run, err := st.ReadRun(context.WithoutCancel(ctx), summary.RunID); err == nil {
		summary.Status = run.Status
	} else if runErr == nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if flags.Out != "" {
		if err := writeCollection(flags.Out, collection); err != nil {
			return WrapExitError(ExitCommandError, "failed to write data", err)
		}
		formatter.VerboseLog("wrote %d records to %s", collection.Count(), flags.Out)
	}

	if runErr != nil {
		_ = formatter.Failure(ErrCodeRunFailed, summary, summary.RunID, runErr)
		return WrapExitError(ExitFailure, "run failed", runErr)
	}
	return formatter.Success(summary)
}

// writeCollection writes c to path as CSV or JSON, chosen by extension.
func writeCollection(path string, c *data.Collection) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".json" {
		return fmt.Errorf("unsupported data file extension %q (want .csv or .json)", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if ext == ".csv" {
		return c.WriteCSV(f)
	}
	out, err := c.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = f.Write(append(out, '\n'))
	return err
}
