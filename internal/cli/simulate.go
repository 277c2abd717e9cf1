package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/trialrun/internal/plugin"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	runFlags
	Mode    string
	Options string
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <experiment>",
		Short: "Simulate an experiment without a participant",
		Long: `Simulate an experiment file with generated responses.

In data-only mode trials produce data immediately and post-trial gaps are
skipped. In visual mode trials are shown and end after their simulated
response time. Plugins without a simulator run normally.

--options names a YAML file mapping option set names to simulation options.
Trials select a set with simulation_options; the "default" set applies to
every trial.

Example:
  trialrun simulate stroop.yaml
  trialrun simulate --mode visual --seed s1 stroop.yaml
  trialrun simulate --options sim.yaml --out data.json stroop.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := plugin.SimulationMode(opts.Mode)
			if !mode.Valid() {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q: must be %s or %s", opts.Mode, plugin.DataOnly, plugin.Visual))
			}
			simOptions, err := loadSimulationOptions(opts.Options)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load simulation options", err)
			}
			return executeExperiment(cmd, opts.RootOptions, &opts.runFlags, args[0], mode, simOptions)
		},
	}

	opts.runFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Mode, "mode", string(plugin.DataOnly), "simulation mode (data-only|visual)")
	cmd.Flags().StringVar(&opts.Options, "options", "", "YAML file of named simulation option sets")
	return cmd
}

// loadSimulationOptions reads the option sets file. An empty path means no
// options.
func loadSimulationOptions(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sets map[string]any
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	if err := decoder.Decode(&sets); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for name, set := range sets {
		if _, ok := set.(map[string]any); !ok {
			return nil, fmt.Errorf("option set %q must be a mapping, got %T", name, set)
		}
	}
	return sets, nil
}
