package usecase

import (
	"sync"
	"time"

	"FinSight/internal/domain/models"
)

// SnapshotResolver merges the three live portfolio inputs with the
// deterministic fallback into a complete snapshot. Per-field priority is
// poller > push > cached > fallback, and each field falls through
// independently when a source is absent or non-finite.
//
// Resolve is memoized on the identity of the input triple: callers that
// pass the same three pointers back get the previous snapshot unchanged,
// holdings slice included. Sources must therefore allocate a new
// PortfolioMetrics per real update, which all ingestion boundaries do.
type SnapshotResolver struct {
	fallback *models.PortfolioMetrics

	mu         sync.Mutex
	lastPoller *models.PortfolioMetrics
	lastPush   *models.PortfolioMetrics
	lastCached *models.PortfolioMetrics
	lastSnap   models.PortfolioSnapshot
	valid      bool
}

func NewSnapshotResolver() *SnapshotResolver {
	return &SnapshotResolver{fallback: models.FallbackMetrics()}
}

// Resolve computes the merged snapshot for the given inputs. Any of the
// three may be nil. The result is always complete: the fallback supplies
// whatever no live source can.
func (r *SnapshotResolver) Resolve(poller, push, cached *models.PortfolioMetrics) models.PortfolioSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.valid && poller == r.lastPoller && push == r.lastPush && cached == r.lastCached {
		return r.lastSnap
	}

	snap := r.merge(poller, push, cached)
	r.lastPoller, r.lastPush, r.lastCached = poller, push, cached
	r.lastSnap = snap
	r.valid = true
	return snap
}

// Fallback returns the baseline snapshot with no live inputs applied.
func (r *SnapshotResolver) Fallback() models.PortfolioSnapshot {
	return r.Resolve(nil, nil, nil)
}

func (r *SnapshotResolver) merge(poller, push, cached *models.PortfolioMetrics) models.PortfolioSnapshot {
	ordered := []struct {
		name string
		m    *models.PortfolioMetrics
	}{
		{models.SourcePoller, poller},
		{models.SourcePush, push},
		{models.SourceCached, cached},
		{models.SourceFallback, r.fallback},
	}

	var snap models.PortfolioSnapshot
	for _, c := range ordered {
		if c.m.HasTotalValue() {
			snap.TotalValue = *c.m.TotalValue
			snap.Sources.TotalValue = c.name
			break
		}
	}
	for _, c := range ordered {
		if c.m.HasTotalReturn() {
			snap.TotalReturn = *c.m.TotalReturn
			snap.Sources.TotalReturn = c.name
			break
		}
	}
	for _, c := range ordered {
		if c.m.HasTotalReturnPercent() {
			snap.TotalReturnPercent = *c.m.TotalReturnPercent
			snap.Sources.TotalReturnPercent = c.name
			break
		}
	}
	// Holdings win or lose as a whole list. The winner's slice is carried
	// by reference so identical inputs keep an identical slice header.
	for _, c := range ordered {
		if c.m.HasHoldings() {
			snap.Holdings = c.m.Holdings
			snap.Sources.Holdings = c.name
			break
		}
	}

	snap.ResolvedAt = time.Now()
	return snap
}
