package models

import (
	"math"
	"time"
)

// Source names in merge priority order. Every resolved field records which
// one of these supplied its value.
const (
	SourcePoller   = "poller"
	SourcePush     = "push"
	SourceCached   = "cached"
	SourceFallback = "fallback"
)

// Holding is the canonical position shape. Collaborator-specific aliases
// (shares, companyName, currentPrice, returnAmount, ...) are translated to
// this at each ingestion boundary, never downstream.
type Holding struct {
	Symbol        string
	Name          string
	Quantity      float64
	Price         float64
	Value         float64
	CostBasis     float64
	Return        float64
	ReturnPercent float64
	Sector        string
}

// PortfolioMetrics is the partial view a single source contributes.
// A nil field means the source did not supply it; non-finite values are
// treated the same as absent. Note: no transport (json/http) concerns here.
type PortfolioMetrics struct {
	TotalValue         *float64
	TotalReturn        *float64
	TotalReturnPercent *float64
	Holdings           []Holding // nil = not supplied
	AsOf               time.Time
	Source             string
}

// HasTotalValue reports whether the source supplied a usable total value.
func (m *PortfolioMetrics) HasTotalValue() bool {
	return m != nil && finite(m.TotalValue)
}

func (m *PortfolioMetrics) HasTotalReturn() bool {
	return m != nil && finite(m.TotalReturn)
}

func (m *PortfolioMetrics) HasTotalReturnPercent() bool {
	return m != nil && finite(m.TotalReturnPercent)
}

func (m *PortfolioMetrics) HasHoldings() bool {
	return m != nil && m.Holdings != nil
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// FieldSources records, per resolved field, the source that won the merge.
type FieldSources struct {
	TotalValue         string
	TotalReturn        string
	TotalReturnPercent string
	Holdings           string
}

// PortfolioSnapshot is the fully resolved view. Every field is set: the
// deterministic fallback guarantees completeness even when all live
// sources are absent.
type PortfolioSnapshot struct {
	TotalValue         float64
	TotalReturn        float64
	TotalReturnPercent float64
	Holdings           []Holding
	Sources            FieldSources
	ResolvedAt         time.Time
}

// SnapshotRecord is one persisted history row.
type SnapshotRecord struct {
	SessionID          string
	ResolvedAt         time.Time
	TotalValue         float64
	TotalReturn        float64
	TotalReturnPercent float64
	HoldingCount       int
	ValueSource        string
}

// FallbackMetrics returns the deterministic baseline portfolio used as the
// lowest-priority merge input. Fixed demo book: five blue chips with fixed
// prices, so the resolved snapshot is reproducible across runs.
func FallbackMetrics() *PortfolioMetrics {
	holdings := []Holding{
		{Symbol: "AAPL", Name: "Apple Inc.", Quantity: 50, Price: 175.50, CostBasis: 7500.00, Sector: "Technology"},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Quantity: 30, Price: 415.00, CostBasis: 10000.00, Sector: "Technology"},
		{Symbol: "JNJ", Name: "Johnson & Johnson", Quantity: 25, Price: 154.00, CostBasis: 3500.00, Sector: "Healthcare"},
		{Symbol: "JPM", Name: "JPMorgan Chase & Co.", Quantity: 20, Price: 196.00, CostBasis: 2800.00, Sector: "Finance"},
		{Symbol: "PG", Name: "Procter & Gamble Co.", Quantity: 15, Price: 160.00, CostBasis: 2000.00, Sector: "Consumer"},
	}

	var totalValue, totalCost float64
	for i := range holdings {
		h := &holdings[i]
		h.Value = h.Quantity * h.Price
		h.Return = h.Value - h.CostBasis
		h.ReturnPercent = h.Return / h.CostBasis * 100
		totalValue += h.Value
		totalCost += h.CostBasis
	}
	totalReturn := totalValue - totalCost
	totalReturnPercent := totalReturn / totalCost * 100

	return &PortfolioMetrics{
		TotalValue:         &totalValue,
		TotalReturn:        &totalReturn,
		TotalReturnPercent: &totalReturnPercent,
		Holdings:           holdings,
		Source:             SourceFallback,
	}
}
