package backendapi

import (
	"math"
	"time"

	"FinSight/internal/domain/models"
)

// Wire shapes for the backend REST surface. The backend speaks the
// shares/companyName/currentPrice alias family; everything is translated
// to canonical models here and nowhere else.

type holdingWire struct {
	Symbol        string  `json:"symbol"`
	CompanyName   string  `json:"companyName"`
	Shares        float64 `json:"shares"`
	CurrentPrice  float64 `json:"currentPrice"`
	TotalValue    float64 `json:"totalValue"`
	CostBasis     float64 `json:"costBasis"`
	ReturnAmount  float64 `json:"returnAmount"`
	ReturnPercent float64 `json:"returnPercent"`
	Sector        string  `json:"sector"`
}

type metricsWire struct {
	TotalValue         *float64      `json:"totalValue"`
	TotalReturn        *float64      `json:"totalReturn"`
	TotalReturnPercent *float64      `json:"totalReturnPercent"`
	Holdings           []holdingWire `json:"holdings"`
}

func (w *metricsWire) toModel(source string) *models.PortfolioMetrics {
	m := &models.PortfolioMetrics{
		TotalValue:         sanitize(w.TotalValue),
		TotalReturn:        sanitize(w.TotalReturn),
		TotalReturnPercent: sanitize(w.TotalReturnPercent),
		AsOf:               time.Now(),
		Source:             source,
	}
	if w.Holdings != nil {
		m.Holdings = make([]models.Holding, 0, len(w.Holdings))
		for _, hw := range w.Holdings {
			m.Holdings = append(m.Holdings, hw.toModel())
		}
	}
	return m
}

func (hw *holdingWire) toModel() models.Holding {
	return models.Holding{
		Symbol:        hw.Symbol,
		Name:          hw.CompanyName,
		Quantity:      hw.Shares,
		Price:         hw.CurrentPrice,
		Value:         hw.TotalValue,
		CostBasis:     hw.CostBasis,
		Return:        hw.ReturnAmount,
		ReturnPercent: hw.ReturnPercent,
		Sector:        hw.Sector,
	}
}

// sanitize drops non-finite numbers so they read as absent downstream.
func sanitize(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
