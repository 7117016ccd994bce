package usecase

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// IntentResolver maps a detected voice phrase to the closest known screen
// by normalized edit distance. Phrases that match nothing well enough
// resolve to the fallback screen, so a wake always lands somewhere.
type IntentResolver struct {
	screens   []string
	threshold float64 // minimum similarity in [0,1] to accept a match
	fallback  string
}

// NewIntentResolver creates a new IntentResolver instance.
func NewIntentResolver(screens []string, threshold float64, fallback string) *IntentResolver {
	return &IntentResolver{screens: screens, threshold: threshold, fallback: fallback}
}

// Match resolves phrase to a screen name. ok is false only when nothing
// matched and no fallback is configured.
func (r *IntentResolver) Match(phrase string) (string, bool) {
	norm := strings.ToLower(strings.TrimSpace(phrase))
	if norm == "" {
		return r.fallback, r.fallback != ""
	}

	best := ""
	bestScore := 0.0
	for _, s := range r.screens {
		score := similarity(norm, strings.ToLower(s))
		if score > bestScore {
			best, bestScore = s, score
		}
	}

	if best != "" && bestScore >= r.threshold {
		return best, true
	}
	return r.fallback, r.fallback != ""
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxlen := len(a)
	if len(b) > maxlen {
		maxlen = len(b)
	}
	if maxlen == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxlen)
}
