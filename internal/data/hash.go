package data

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room to change the algorithm without colliding with stored ids.
const (
	DomainRecord = "trialrun/record/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordID computes the content-addressed id of a record written at seq
// within run. The same run, sequence number and record always hash to the
// same id.
func RecordID(runID string, seq int64, rec Record) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"run_id": runID,
		"seq":    seq,
		"record": map[string]any(rec),
	})
	if err != nil {
		return "", fmt.Errorf("RecordID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// MustRecordID is like RecordID but panics on error.
func MustRecordID(runID string, seq int64, rec Record) string {
	id, err := RecordID(runID, seq, rec)
	if err != nil {
		panic(err)
	}
	return id
}
