package usecase

import (
	"math"
	"testing"

	"FinSight/internal/domain/models"
)

func fptr(v float64) *float64 { return &v }

func TestResolverFallbackOnly(t *testing.T) {
	r := NewSnapshotResolver()
	snap := r.Resolve(nil, nil, nil)

	if len(snap.Holdings) != 5 {
		t.Fatalf("expected 5 fallback holdings, got %d", len(snap.Holdings))
	}
	if snap.TotalValue <= 0 {
		t.Errorf("fallback total value should be positive, got %f", snap.TotalValue)
	}
	if snap.Sources.TotalValue != models.SourceFallback {
		t.Errorf("expected fallback source, got %q", snap.Sources.TotalValue)
	}
	if snap.Sources.Holdings != models.SourceFallback {
		t.Errorf("expected fallback holdings source, got %q", snap.Sources.Holdings)
	}

	var sum float64
	for _, h := range snap.Holdings {
		if h.Value != h.Quantity*h.Price {
			t.Errorf("%s: value %f != quantity*price %f", h.Symbol, h.Value, h.Quantity*h.Price)
		}
		sum += h.Value
	}
	if math.Abs(sum-snap.TotalValue) > 1e-9 {
		t.Errorf("holdings sum %f != total value %f", sum, snap.TotalValue)
	}
}

func TestResolverPerFieldPriority(t *testing.T) {
	r := NewSnapshotResolver()

	poller := &models.PortfolioMetrics{TotalValue: fptr(1000), Source: models.SourcePoller}
	push := &models.PortfolioMetrics{
		TotalValue:  fptr(900),
		TotalReturn: fptr(50),
		Holdings:    []models.Holding{{Symbol: "AAPL", Quantity: 1}},
		Source:      models.SourcePush,
	}
	cached := &models.PortfolioMetrics{
		TotalReturn:        fptr(40),
		TotalReturnPercent: fptr(4.2),
		Source:             models.SourceCached,
	}

	snap := r.Resolve(poller, push, cached)

	if snap.TotalValue != 1000 {
		t.Errorf("total value: poller should win, got %f", snap.TotalValue)
	}
	if snap.Sources.TotalValue != models.SourcePoller {
		t.Errorf("total value source = %q, want poller", snap.Sources.TotalValue)
	}
	if snap.TotalReturn != 50 {
		t.Errorf("total return: push should win over cached, got %f", snap.TotalReturn)
	}
	if snap.TotalReturnPercent != 4.2 {
		t.Errorf("total return percent: cached should win, got %f", snap.TotalReturnPercent)
	}
	if snap.Sources.TotalReturnPercent != models.SourceCached {
		t.Errorf("return percent source = %q, want cached", snap.Sources.TotalReturnPercent)
	}
	if len(snap.Holdings) != 1 || snap.Holdings[0].Symbol != "AAPL" {
		t.Errorf("holdings: push list should win, got %+v", snap.Holdings)
	}
}

func TestResolverNonFiniteFallsThrough(t *testing.T) {
	r := NewSnapshotResolver()

	poller := &models.PortfolioMetrics{TotalValue: fptr(math.NaN()), Source: models.SourcePoller}
	push := &models.PortfolioMetrics{TotalValue: fptr(math.Inf(1)), Source: models.SourcePush}
	cached := &models.PortfolioMetrics{TotalValue: fptr(777), Source: models.SourceCached}

	snap := r.Resolve(poller, push, cached)

	if snap.TotalValue != 777 {
		t.Errorf("non-finite values must fall through, got %f", snap.TotalValue)
	}
	if snap.Sources.TotalValue != models.SourceCached {
		t.Errorf("source = %q, want cached", snap.Sources.TotalValue)
	}
}

func TestResolverMemoization(t *testing.T) {
	r := NewSnapshotResolver()

	poller := &models.PortfolioMetrics{
		TotalValue: fptr(1234),
		Holdings:   []models.Holding{{Symbol: "MSFT", Quantity: 2}},
		Source:     models.SourcePoller,
	}

	first := r.Resolve(poller, nil, nil)
	second := r.Resolve(poller, nil, nil)

	if !first.ResolvedAt.Equal(second.ResolvedAt) {
		t.Errorf("memoized resolve must not restamp: %v vs %v", first.ResolvedAt, second.ResolvedAt)
	}
	if &first.Holdings[0] != &second.Holdings[0] {
		t.Error("memoized resolve must keep the identical holdings slice")
	}

	// A new input pointer invalidates the memo even with equal contents.
	next := &models.PortfolioMetrics{
		TotalValue: fptr(1234),
		Holdings:   []models.Holding{{Symbol: "MSFT", Quantity: 2}},
		Source:     models.SourcePoller,
	}
	third := r.Resolve(next, nil, nil)
	if &third.Holdings[0] == &first.Holdings[0] {
		t.Error("new input must produce a freshly merged snapshot")
	}
}

func TestResolverHoldingsWinAsWholeList(t *testing.T) {
	r := NewSnapshotResolver()

	poller := &models.PortfolioMetrics{
		Holdings: []models.Holding{{Symbol: "JNJ"}},
		Source:   models.SourcePoller,
	}
	push := &models.PortfolioMetrics{
		Holdings: []models.Holding{{Symbol: "JPM"}, {Symbol: "PG"}},
		Source:   models.SourcePush,
	}

	snap := r.Resolve(poller, push, nil)

	if len(snap.Holdings) != 1 || snap.Holdings[0].Symbol != "JNJ" {
		t.Errorf("poller holdings must win as a whole list, got %+v", snap.Holdings)
	}
	if snap.Sources.TotalValue != models.SourceFallback {
		t.Errorf("numeric fields should still come from fallback, got %q", snap.Sources.TotalValue)
	}
}

func TestResolverDoesNotMutateInputs(t *testing.T) {
	r := NewSnapshotResolver()

	tv := 500.0
	poller := &models.PortfolioMetrics{TotalValue: &tv, Source: models.SourcePoller}
	r.Resolve(poller, nil, nil)

	if poller.TotalValue != &tv || *poller.TotalValue != 500.0 {
		t.Error("resolver must not mutate its inputs")
	}
	if poller.Holdings != nil {
		t.Error("resolver must not backfill absent holdings on the input")
	}
}
