package store

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/roach88/trialrun/internal/data"
)

func beginTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.BeginRun(context.Background(), Run{ID: id, Seed: "seed-1"}); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
}

func TestBeginRun_Defaults(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	run, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if run.Status != RunRunning {
		t.Errorf("Status = %q, want %q", run.Status, RunRunning)
	}
	if run.EngineVersion != data.EngineVersion || run.SchemaVersion != data.SchemaVersion {
		t.Errorf("versions = %q/%q, want %q/%q", run.EngineVersion, run.SchemaVersion, data.EngineVersion, data.SchemaVersion)
	}
}

func TestBeginRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.BeginRun(ctx, Run{ID: "run-1", Seed: "first"}); err != nil {
		t.Fatalf("first BeginRun() failed: %v", err)
	}
	if err := s.BeginRun(ctx, Run{ID: "run-1", Seed: "second"}); err != nil {
		t.Fatalf("second BeginRun() failed: %v", err)
	}

	run, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if run.Seed != "first" {
		t.Errorf("Seed = %q, want first row to win", run.Seed)
	}
}

func TestWriteTrial_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	rec := data.Record{
		"trial_type":  "text",
		"trial_index": int64(0),
		"rt":          512.5,
		"big":         int64(1) << 60,
		"choices":     []any{"a", "b"},
		"nested":      map[string]any{"n": int64(3)},
	}
	if err := s.WriteTrial(ctx, TrialRecord{RunID: "run-1", Seq: 1, TrialType: "text", Data: rec}); err != nil {
		t.Fatalf("WriteTrial() failed: %v", err)
	}

	got, err := s.ReadTrials(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadTrials() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if !reflect.DeepEqual(got[0].Data, rec) {
		t.Errorf("Data = %#v, want %#v", got[0].Data, rec)
	}
	if want := data.MustRecordID("run-1", 1, rec); got[0].ID != want {
		t.Errorf("ID = %q, want content-addressed %q", got[0].ID, want)
	}
}

func TestWriteTrial_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	rec := TrialRecord{RunID: "run-1", Seq: 1, TrialType: "text", Data: data.Record{"rt": int64(1)}}
	for i := 0; i < 2; i++ {
		if err := s.WriteTrial(ctx, rec); err != nil {
			t.Fatalf("WriteTrial() #%d failed: %v", i, err)
		}
	}

	n, err := s.CountTrials(ctx, "run-1")
	if err != nil {
		t.Fatalf("CountTrials() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CountTrials() = %d, want 1", n)
	}
}

func TestWriteTrial_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteTrial(context.Background(), TrialRecord{RunID: "missing", Seq: 1, Data: data.Record{}})
	if err == nil {
		t.Error("expected foreign key error, got nil")
	}
}

func TestReadTrials_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	for _, seq := range []int64{3, 1, 2} {
		rec := TrialRecord{RunID: "run-1", Seq: seq, TrialIndex: seq - 1, TrialType: "text", Data: data.Record{"seq": seq}}
		if err := s.WriteTrial(ctx, rec); err != nil {
			t.Fatalf("WriteTrial() failed: %v", err)
		}
	}

	got, err := s.ReadCollection(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadCollection() failed: %v", err)
	}
	want := []any{int64(1), int64(2), int64(3)}
	if !reflect.DeepEqual(got.Values("seq"), want) {
		t.Errorf("seq order = %v, want %v", got.Values("seq"), want)
	}
}

func TestReadTrials_EmptyRun(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadTrials(context.Background(), "none")
	if err != nil {
		t.Fatalf("ReadTrials() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ReadTrials() = %#v, want empty non-nil slice", got)
	}
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	if err := s.FinishRun(ctx, "run-1", RunAborted, "stopped early"); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}
	run, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if run.Status != RunAborted || run.EndMessage != "stopped early" {
		t.Errorf("run = %+v, want aborted with end message", run)
	}

	err = s.FinishRun(ctx, "missing", RunCompleted, "")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("FinishRun(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestListRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Fatalf("ListRuns() = %#v, want empty non-nil slice", runs)
	}

	beginTestRun(t, s, "01B")
	beginTestRun(t, s, "01A")

	runs, err = s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "01A" || runs[1].ID != "01B" {
		t.Errorf("ListRuns() = %+v, want 01A then 01B", runs)
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadRun(missing) error = %v, want sql.ErrNoRows", err)
	}
}
