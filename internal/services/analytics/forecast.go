package analytics

import (
	"math"

	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/services/features"
)

// ForecastNext projects the next period with a least-squares line over the
// trailing window. A non-positive projection is clamped to a small positive
// floor and its confidence capped.
func (a *Analyzer) ForecastNext(series []models.PricePoint) (models.Forecast, error) {
	_, vals := sortedPrices(series)
	if len(vals) < a.cfg.MinForecastPoints {
		return models.Forecast{}, &InsufficientError{
			Kind: ErrInsufficientHistory, What: "forecast",
			Observed: len(vals), Required: a.cfg.MinForecastPoints,
		}
	}
	if len(vals) > a.cfg.ForecastWindow {
		vals = vals[len(vals)-a.cfg.ForecastWindow:]
	}

	reg := features.LinearRegression(vals)
	n := float64(len(vals))
	mean := meanOf(vals)
	next := reg.At(n)

	residualCV := 0.0
	if mean > 0 {
		residualCV = reg.ResidualStd / mean
	}
	fit := 1 / (1 + residualCV/a.cfg.FitScale)
	length := math.Min(1, n/float64(a.cfg.FullLengthPoints))
	conf := features.Clamp(fit*(0.5+0.5*length), 0, 1)

	var change float64
	if mean > 0 {
		change = reg.Slope * n / mean
	}

	f := models.Forecast{
		NextPeriod: next,
		Confidence: conf,
		Trend:      trendLabel(change, a.cfg.TrendNoise),
	}
	if next <= 0 {
		last := vals[len(vals)-1]
		f.NextPeriod = math.Max(a.cfg.MinFloor, a.cfg.FloorRatio*last)
		f.Confidence = math.Min(f.Confidence, a.cfg.ClampedConfidenceCeiling)
		f.Clamped = true
	}
	return f, nil
}
