package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/trialrun/internal/store"
)

// RunInfo is one row of the runs listing.
type RunInfo struct {
	ID            string `json:"id"`
	SubjectID     string `json:"subject_id"`
	Seed          string `json:"seed"`
	Mode          string `json:"mode,omitempty"`
	Status        string `json:"status"`
	EndMessage    string `json:"end_message,omitempty"`
	Records       int    `json:"records"`
	EngineVersion string `json:"engine_version"`
}

// RunList is the result of the runs command.
type RunList struct {
	Runs []RunInfo `json:"runs"`
}

func (l RunList) renderText(w io.Writer) error {
	if len(l.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSUBJECT\tMODE\tSTATUS\tRECORDS")
	for _, r := range l.Runs {
		mode := r.Mode
		if mode == "" {
			mode = "live"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.SubjectID, mode, r.Status, r.Records)
	}
	return tw.Flush()
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Long: `List the runs stored in the database, oldest first, with their status
and record counts.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(rootOpts, database, cmd)
		},
	}

	cmd.Flags().StringVar(&database, "db", DefaultDatabase, "path to SQLite database")
	return cmd
}

func runRuns(opts *RootOptions, database string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	list := RunList{Runs: make([]RunInfo, 0, len(runs))}
	for _, r := range runs {
		n, err := st.CountTrials(ctx, r.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count records", err)
		}
		list.Runs = append(list.Runs, RunInfo{
			ID:            r.ID,
			SubjectID:     r.SubjectID,
			Seed:          r.Seed,
			Mode:          r.Mode,
			Status:        r.Status,
			EndMessage:    r.EndMessage,
			Records:       n,
			EngineVersion: r.EngineVersion,
		})
	}
	return formatter.Success(list)
}
