package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/query"
)

// ReadRun retrieves a single run by ID.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, seed, mode, status, end_message, engine_version, schema_version
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run ordered by id. Run ids are ULIDs, so this is
// creation order.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, seed, mode, status, end_message, engine_version, schema_version
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadTrials returns the trial records of a run.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the run has no records.
func (s *Store) ReadTrials(ctx context.Context, runID string) ([]TrialRecord, error) {
	return s.QueryTrials(ctx, query.Select{RunID: runID})
}

// QueryTrials returns the records of q.RunID that match q.Filter, in the
// same order as ReadTrials. The filter runs in SQLite.
func (s *Store) QueryTrials(ctx context.Context, q query.Select) ([]TrialRecord, error) {
	sqlText, params, err := query.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query trial records: %w", err)
	}
	defer rows.Close()

	records := []TrialRecord{}
	for rows.Next() {
		var rec TrialRecord
		var dataJSON string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Seq, &rec.TrialIndex, &rec.TrialType, &dataJSON); err != nil {
			return nil, fmt.Errorf("scan trial record: %w", err)
		}
		rec.Data, err = unmarshalRecord(dataJSON)
		if err != nil {
			return nil, fmt.Errorf("trial record %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trial records: %w", err)
	}
	return records, nil
}

// ReadCollection returns a run's records as a data collection.
func (s *Store) ReadCollection(ctx context.Context, runID string) (*data.Collection, error) {
	records, err := s.ReadTrials(ctx, runID)
	if err != nil {
		return nil, err
	}
	c := data.NewCollection()
	for _, rec := range records {
		c.Add(rec.Data)
	}
	return c, nil
}

// CountTrials returns the number of records stored for a run.
func (s *Store) CountTrials(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM trial_records WHERE run_id = ?
	`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count trial records: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	err := row.Scan(
		&run.ID,
		&run.SubjectID,
		&run.Seed,
		&run.Mode,
		&run.Status,
		&run.EndMessage,
		&run.EngineVersion,
		&run.SchemaVersion,
	)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}
