package analytics

import (
	"sort"
	"time"

	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/domain/service"
)

// Analyzer derives volatility, forecasts and risk from price history.
// All methods are pure given the injected clock.
type Analyzer struct {
	cfg Config
	now func() time.Time
}

// AnalyzerOption configures Analyzer.
type AnalyzerOption func(*Analyzer)

func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

func NewAnalyzer(cfg Config, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{cfg: cfg.withDefaults(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) Config() Config { return a.cfg }

// sortedPrices returns positive prices ordered by date.
func sortedPrices(series []models.PricePoint) ([]models.PricePoint, []float64) {
	pts := make([]models.PricePoint, 0, len(series))
	for _, p := range series {
		if p.Price > 0 {
			pts = append(pts, p)
		}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
	vals := make([]float64, len(pts))
	for i, p := range pts {
		vals[i] = p.Price
	}
	return pts, vals
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func trendLabel(change, noise float64) string {
	switch {
	case change > noise:
		return models.TrendRising
	case change < -noise:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

var _ service.PriceAnalytics = (*Analyzer)(nil)
