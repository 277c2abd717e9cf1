package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/trialrun/internal/data"
)

// BeginRun inserts a run row.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a repeated BeginRun for
// the same id leaves the first row in place.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.Status == "" {
		run.Status = RunRunning
	}
	if run.EngineVersion == "" {
		run.EngineVersion = data.EngineVersion
	}
	if run.SchemaVersion == "" {
		run.SchemaVersion = data.SchemaVersion
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, subject_id, seed, mode, status, end_message, engine_version, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.SubjectID,
		run.Seed,
		run.Mode,
		run.Status,
		run.EndMessage,
		run.EngineVersion,
		run.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WriteTrial inserts a trial record.
// Uses ON CONFLICT DO NOTHING for idempotency - the id is content-addressed,
// so writing the same record twice is silently ignored.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteTrial(ctx context.Context, rec TrialRecord) error {
	dataJSON, err := marshalRecord(rec.Data)
	if err != nil {
		return fmt.Errorf("write trial: %w", err)
	}

	if rec.ID == "" {
		rec.ID, err = data.RecordID(rec.RunID, rec.Seq, rec.Data)
		if err != nil {
			return fmt.Errorf("write trial: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trial_records
		(id, run_id, seq, trial_index, trial_type, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.ID,
		rec.RunID,
		rec.Seq,
		rec.TrialIndex,
		rec.TrialType,
		dataJSON,
	)
	if err != nil {
		return fmt.Errorf("write trial: %w", err)
	}
	return nil
}

// FinishRun records a run's final status.
// Returns an error wrapping sql.ErrNoRows if the run does not exist.
func (s *Store) FinishRun(ctx context.Context, runID, status, endMessage string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, end_message = ? WHERE id = ?
	`, status, endMessage, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}
