package store

import (
	"context"
	"testing"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/query"
)

func seedQueryRun(t *testing.T, s *Store) {
	t.Helper()
	beginTestRun(t, s, "run-1")
	beginTestRun(t, s, "run-2")

	records := []data.Record{
		{"trial_type": "text", "response": "y", "rt": int64(300), "correct": true},
		{"trial_type": "text", "response": "n", "rt": 450.5, "correct": false},
		{"trial_type": "call-function", "value": nil},
		{"trial_type": "text", "response": "y", "rt": int64(310), "correct": true},
	}
	for i, rec := range records {
		tr := TrialRecord{RunID: "run-1", Seq: int64(i + 1), TrialIndex: int64(i), TrialType: rec["trial_type"].(string), Data: rec}
		if err := s.WriteTrial(context.Background(), tr); err != nil {
			t.Fatalf("WriteTrial() failed: %v", err)
		}
	}
	other := TrialRecord{RunID: "run-2", Seq: 1, TrialType: "text", Data: data.Record{"trial_type": "text", "response": "y"}}
	if err := s.WriteTrial(context.Background(), other); err != nil {
		t.Fatalf("WriteTrial() failed: %v", err)
	}
}

func TestQueryTrials(t *testing.T) {
	s := createTestStore(t)
	seedQueryRun(t, s)

	tests := []struct {
		name     string
		filter   query.Predicate
		wantSeqs []int64
	}{
		{"no filter", nil, []int64{1, 2, 3, 4}},
		{"string", query.Equals{Field: "response", Value: "y"}, []int64{1, 4}},
		{"int", query.Equals{Field: "rt", Value: int64(310)}, []int64{4}},
		{"float", query.Equals{Field: "rt", Value: 450.5}, []int64{2}},
		{"int matches whole float", query.Equals{Field: "rt", Value: 300.0}, []int64{1}},
		{"bool", query.Equals{Field: "correct", Value: false}, []int64{2}},
		{"null", query.Equals{Field: "value", Value: nil}, []int64{3}},
		{"missing field", query.Equals{Field: "stimulus", Value: "x"}, nil},
		{"string does not match number", query.Equals{Field: "rt", Value: "300"}, nil},
		{"and", query.Where(map[string]any{"trial_type": "text", "correct": true}), []int64{1, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryTrials(context.Background(), query.Select{RunID: "run-1", Filter: tt.filter})
			if err != nil {
				t.Fatalf("QueryTrials() failed: %v", err)
			}
			var seqs []int64
			for _, rec := range got {
				if rec.RunID != "run-1" {
					t.Errorf("record from run %q leaked into run-1 results", rec.RunID)
				}
				seqs = append(seqs, rec.Seq)
			}
			if len(seqs) != len(tt.wantSeqs) {
				t.Fatalf("seqs = %v, want %v", seqs, tt.wantSeqs)
			}
			for i := range seqs {
				if seqs[i] != tt.wantSeqs[i] {
					t.Errorf("seqs = %v, want %v", seqs, tt.wantSeqs)
					break
				}
			}
		})
	}
}

func TestQueryTrials_InvalidFilter(t *testing.T) {
	s := createTestStore(t)

	_, err := s.QueryTrials(context.Background(), query.Select{RunID: "run-1", Filter: query.Equals{Field: ""}})
	if err == nil {
		t.Fatal("expected error for empty field name, got nil")
	}
}
