package analytics

import (
	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/services/features"
)

// AnalyzeVolatility classifies the coefficient of variation of the series and
// compares the most recent third against the earliest third.
func (a *Analyzer) AnalyzeVolatility(series []models.PricePoint) (models.Volatility, error) {
	_, vals := sortedPrices(series)
	if len(vals) < a.cfg.MinVolatilityPoints {
		return models.Volatility{}, &InsufficientError{
			Kind: ErrInsufficientHistory, What: "volatility",
			Observed: len(vals), Required: a.cfg.MinVolatilityPoints,
		}
	}

	cv := features.CoefficientOfVariation(vals)
	third := len(vals) / 3
	early := meanOf(vals[:third])
	recent := meanOf(vals[len(vals)-third:])

	var change float64
	if early > 0 {
		change = (recent - early) / early
	}

	return models.Volatility{
		CoefficientOfVariation: cv,
		Trend:                  trendLabel(change, a.cfg.TrendNoise),
		Classification:         a.classify(cv),
	}, nil
}

func (a *Analyzer) classify(cv float64) string {
	switch {
	case cv < a.cfg.LowCV:
		return models.VolatilityLow
	case cv > a.cfg.HighCV:
		return models.VolatilityHigh
	default:
		return models.VolatilityMedium
	}
}
