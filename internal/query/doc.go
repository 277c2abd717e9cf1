// Package query compiles record filters to parameterized SQLite queries.
//
// Trial records are stored as canonical JSON in trial_records.data. A Select
// names a run and an optional Predicate over record fields; Compile turns it
// into SQL that reads fields with json_extract, so filtering happens in the
// database instead of after decoding every record.
//
// Predicate is a sealed interface: only Equals and And implement it, which
// keeps the type switch in Compile exhaustive.
//
// Every compiled query orders by seq then id, matching store.ReadTrials.
// Values are always bound as parameters, never interpolated.
package query
