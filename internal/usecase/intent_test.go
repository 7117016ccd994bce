package usecase

import "testing"

func TestIntentResolverMatch(t *testing.T) {
	r := NewIntentResolver([]string{"Portfolio", "StockDetail", "Assistant"}, 0.6, "Assistant")

	tests := []struct {
		phrase string
		want   string
		ok     bool
	}{
		{"portfolio", "Portfolio", true},
		{"portfolo", "Portfolio", true},      // one edit away
		{"stock detail", "StockDetail", true}, // space vs camel case
		{"assistant", "Assistant", true},
		{"open the pod bay doors", "Assistant", true}, // fallback
		{"", "Assistant", true},
	}

	for _, tt := range tests {
		got, ok := r.Match(tt.phrase)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Match(%q) = %q/%v, want %q/%v", tt.phrase, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIntentResolverNoFallback(t *testing.T) {
	r := NewIntentResolver([]string{"Portfolio"}, 0.8, "")

	if got, ok := r.Match("zzzzzz"); ok || got != "" {
		t.Errorf("Match with no fallback = %q/%v, want miss", got, ok)
	}
	if got, ok := r.Match("portfolio"); !ok || got != "Portfolio" {
		t.Errorf("exact-ish match = %q/%v, want Portfolio", got, ok)
	}
}
