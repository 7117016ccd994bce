package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	unix := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	cases := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"rfc3339", "2024-10-10T10:10:10Z", time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC), true},
		{"unix seconds", strconv.FormatInt(unix, 10), time.Unix(unix, 0), true},
		{"empty", "", time.Time{}, false},
		{"garbage", "yesterday", time.Time{}, false},
		{"negative unix", "-5", time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseTime(tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && !got.Equal(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatalf("empty input: got %v, want default", got)
	}
	if got := ParseTimeDefault("not-a-time", def); !got.Equal(def) {
		t.Fatalf("invalid input: got %v, want default", got)
	}
}

func TestRangeWithDefaults(t *testing.T) {
	now := time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)

	from, to := RangeWithDefaults("", "", now, 24*time.Hour)
	if !to.Equal(now) {
		t.Fatalf("to = %v, want now", to)
	}
	if !from.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("from = %v, want now-24h", from)
	}

	from, to = RangeWithDefaults("2024-10-09T00:00:00Z", "2024-10-10T00:00:00Z", now, 24*time.Hour)
	if !from.Equal(time.Date(2024, 10, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("explicit from not honored: %v", from)
	}
	if !to.Equal(time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("explicit to not honored: %v", to)
	}
}
