package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/query"
	"github.com/roach88/trialrun/internal/store"
)

// RecordsOptions holds flags for the records command.
type RecordsOptions struct {
	*RootOptions
	Database string
	Where    []string
	Ignore   []string
	Last     int
}

// NewRecordsCommand creates the records command.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "records <run-id>",
		Short: "Export the records of a stored run",
		Long: `Export the trial records of a run from the database.

Text format writes CSV with one column per record field; JSON format writes
the records as a JSON array. --where keeps records whose field equals the
given value (values are parsed as YAML scalars, so 3 and true are typed).

Example:
  trialrun records 0190a5c2-7d1e-7c4b-9f3a-2b8e4d6f1a90 > data.csv
  trialrun records --where trial_type=text --ignore stimulus RUN_ID
  trialrun records --format json --last 5 RUN_ID`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecords(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", DefaultDatabase, "path to SQLite database")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "keep records with field=value (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Ignore, "ignore", nil, "drop these columns")
	cmd.Flags().IntVar(&opts.Last, "last", 0, "keep only the last n records")

	return cmd
}

func runRecords(opts *RecordsOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	filter, err := parseWhere(opts.Where)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --where", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := st.ReadRun(ctx, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run %s not found", runID), nil)
			return NewExitError(ExitFailure, fmt.Sprintf("run %s not found", runID))
		}
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	q := query.Select{RunID: runID}
	if len(filter) > 0 {
		q.Filter = query.Where(filter)
	}
	trials, err := st.QueryTrials(ctx, q)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read records", err)
	}
	records := data.NewCollection()
	for _, tr := range trials {
		records.Add(tr.Data)
	}
	if len(opts.Ignore) > 0 {
		records = records.Ignore(opts.Ignore...)
	}
	if opts.Last > 0 {
		records = records.Last(opts.Last)
	}
	formatter.VerboseLog("%d records", records.Count())

	if opts.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: records, RunID: runID})
	}
	return records.WriteCSV(formatter.Writer)
}

// parseWhere turns field=value pairs into a record filter.
func parseWhere(pairs []string) (map[string]any, error) {
	filter := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%q is not field=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		n, err := data.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		filter[key] = n
	}
	return filter, nil
}
