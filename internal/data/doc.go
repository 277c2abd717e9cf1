// Package data holds trial records and the collections they are gathered in.
//
// A Record is the plain key/value result of one trial after the core has
// merged its bookkeeping fields into it. Values are normalized to JSON-native
// Go types (string, bool, int64, float64, nil, []any, map[string]any) before
// they enter a Collection, so every consumer sees the same shapes whether the
// record came from a plugin, a stored run or a scenario file.
//
// Records are serialized with MarshalCanonical: RFC 8785 key ordering, NFC
// normalized strings and no HTML escaping. Stored record ids are derived from
// that encoding so a replayed run produces identical ids.
package data
