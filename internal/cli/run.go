package cli

import (
	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	runFlags
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <experiment>",
		Short: "Run an experiment with a participant at the terminal",
		Long: `Run an experiment file (.yaml, .yml, .json, .cue or .hcl).

Trials are shown on stdout and responses are read from stdin, one per line.
Every record is written to the SQLite database as the trial finishes, so an
interrupted run keeps the data collected so far. With --listen the run can be
paused, advanced and aborted over HTTP.

Example:
  trialrun run stroop.yaml
  trialrun run --db ./lab.db --seed s1 --out data.csv stroop.cue
  trialrun run --listen :8080 --format json task.hcl`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeExperiment(cmd, opts.RootOptions, &opts.runFlags, args[0], "", nil)
		},
	}

	opts.runFlags.register(cmd)
	return cmd
}
