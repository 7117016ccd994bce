package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// RangeWithDefaults parses a from/to pair. A missing or invalid "to"
// defaults to now; a missing or invalid "from" defaults to span before to.
func RangeWithDefaults(fromStr, toStr string, now time.Time, span time.Duration) (from, to time.Time) {
	to = ParseTimeDefault(toStr, now)
	from = ParseTimeDefault(fromStr, to.Add(-span))
	return from, to
}
