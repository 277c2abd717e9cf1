package plugins

import (
	"fmt"
	"time"
)

// millis converts a millisecond count from a description to a duration.
// nil and negative values report false.
func millis(v any) (time.Duration, bool) {
	var ms float64
	switch n := v.(type) {
	case int:
		ms = float64(n)
	case int64:
		ms = float64(n)
	case float64:
		ms = n
	case time.Duration:
		return n, n >= 0
	default:
		return 0, false
	}
	if ms < 0 {
		return 0, false
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}

// stringList converts a list parameter to strings.
func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return nil
	}
}

func boolParam(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func elapsedMillis(d time.Duration) int64 {
	return d.Milliseconds()
}
