package analytics

import (
	"fmt"
	"math"
	"time"

	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/services/features"
)

var categoryOrder = []string{
	models.RiskPriceVolatility,
	models.RiskStockAvailability,
	models.RiskSupplierConcentration,
	models.RiskSeasonality,
	models.RiskDataQuality,
}

var mitigations = map[string][]string{
	models.RiskPriceVolatility: {
		"Lock in prices with fixed-price or index-linked supply contracts",
		"Stagger purchases over time to average out price swings",
	},
	models.RiskStockAvailability: {
		"Keep safety stock sized to the observed stock-out frequency",
		"Pre-qualify substitute products for out-of-stock periods",
	},
	models.RiskSupplierConcentration: {
		"Qualify additional suppliers or markets for this product",
		"Split volume across sources to reduce single-supplier dependence",
	},
	models.RiskSeasonality: {
		"Buy ahead of historically expensive months",
		"Plan menus or production around seasonal price peaks",
	},
	models.RiskDataQuality: {
		"Add fresher or more complete price sources for this product",
		"Refresh quotes more often before relying on the estimate",
	},
}

const baselineMitigation = "Continue routine price monitoring"

// completenessFields counts the optional quote fields considered for data quality.
const completenessFields = 5

// AnalyzeRisk scores the five risk categories and combines them into an overall
// score and level. It needs enough price points or stock observations.
func (a *Analyzer) AnalyzeRisk(quotes []models.Quote, priceHistory []models.PricePoint, stockHistory []models.StockObservation) (models.RiskAnalysis, error) {
	rc := a.cfg.Risk
	_, prices := sortedPrices(priceHistory)
	if len(prices) < rc.MinPricePoints && len(stockHistory) < rc.MinStockObservations {
		return models.RiskAnalysis{}, &InsufficientError{
			Kind: ErrInsufficientData, What: "risk",
			Observed: len(prices), Required: rc.MinPricePoints,
		}
	}

	scores := map[string]models.CategoryScore{
		models.RiskPriceVolatility:       a.priceVolatilityRisk(prices),
		models.RiskStockAvailability:     stockRisk(stockHistory),
		models.RiskSupplierConcentration: concentrationRisk(quotes, stockHistory),
		models.RiskSeasonality:           a.seasonalityRisk(priceHistory),
		models.RiskDataQuality:           a.dataQualityRisk(quotes),
	}

	out := models.RiskAnalysis{
		Categories:  make([]models.CategoryScore, 0, len(categoryOrder)),
		Alerts:      []models.RiskAlert{},
		GeneratedAt: a.now(),
	}
	if len(quotes) > 0 {
		out.ProductKey = quotes[0].ProductKey
	}

	var weighted, wsum float64
	for _, name := range categoryOrder {
		cs := scores[name]
		cs.Score = features.Clamp(cs.Score, 0, 100)
		out.Categories = append(out.Categories, cs)

		w := rc.Weights[name]
		weighted += w * cs.Score
		wsum += w

		if cs.Score > rc.AlertThreshold {
			sev := models.SeverityWarning
			if cs.Score > rc.CriticalThreshold {
				sev = models.SeverityCritical
			}
			out.Alerts = append(out.Alerts, models.RiskAlert{
				Category: name,
				Severity: sev,
				Score:    cs.Score,
				Message:  fmt.Sprintf("%s risk is %.0f/100", name, cs.Score),
			})
		}
		if cs.Score >= rc.MitigationThreshold {
			out.MitigationStrategies = append(out.MitigationStrategies, mitigations[name]...)
		}
	}
	if len(out.MitigationStrategies) == 0 {
		out.MitigationStrategies = []string{baselineMitigation}
	}
	if wsum > 0 {
		out.OverallRiskScore = features.Clamp(weighted/wsum, 0, 100)
	}
	out.RiskLevel = a.RiskLevel(out.OverallRiskScore)
	return out, nil
}

// RiskLevel maps an overall score to low, medium or high.
func (a *Analyzer) RiskLevel(score float64) string {
	switch {
	case score < a.cfg.Risk.LowBelow:
		return models.RiskLevelLow
	case score > a.cfg.Risk.HighAbove:
		return models.RiskLevelHigh
	default:
		return models.RiskLevelMedium
	}
}

func (a *Analyzer) priceVolatilityRisk(prices []float64) models.CategoryScore {
	cs := models.CategoryScore{Name: models.RiskPriceVolatility}
	if len(prices) < a.cfg.Risk.MinPricePoints {
		cs.Detail = fmt.Sprintf("insufficient price history (%d points)", len(prices))
		return cs
	}
	cv := features.CoefficientOfVariation(prices)
	cs.Score = math.Min(100, cv*100*a.cfg.Risk.VolatilityScale)
	cs.Detail = fmt.Sprintf("coefficient of variation %.1f%%", cv*100)
	return cs
}

func stockRisk(obs []models.StockObservation) models.CategoryScore {
	cs := models.CategoryScore{Name: models.RiskStockAvailability}
	if len(obs) == 0 {
		cs.Detail = "no stock observations"
		return cs
	}
	short := 0
	for _, o := range obs {
		if o.Status == models.StockOutOfStock || o.Status == models.StockLimited {
			short++
		}
	}
	cs.Score = float64(short) / float64(len(obs)) * 100
	cs.Detail = fmt.Sprintf("%d of %d observations out of stock or limited", short, len(obs))
	return cs
}

// concentrationRisk scores the supplier distribution with the HHI. Quote
// sources are preferred; stock-history markets are used when no quotes exist.
func concentrationRisk(quotes []models.Quote, obs []models.StockObservation) models.CategoryScore {
	cs := models.CategoryScore{Name: models.RiskSupplierConcentration}
	counts := make(map[string]int)
	for _, q := range quotes {
		if q.Source != "" {
			counts[q.Source]++
		}
	}
	if len(counts) == 0 {
		for _, o := range obs {
			if o.Market != "" {
				counts[o.Market]++
			}
		}
	}
	if len(counts) == 0 {
		cs.Score = 100
		cs.Detail = "no known suppliers"
		return cs
	}
	cs.Score = features.HHI(counts) * 100
	cs.Detail = fmt.Sprintf("%d distinct suppliers", len(counts))
	return cs
}

func (a *Analyzer) seasonalityRisk(series []models.PricePoint) models.CategoryScore {
	cs := models.CategoryScore{Name: models.RiskSeasonality}
	pts, vals := sortedPrices(series)
	dates := make([]time.Time, len(pts))
	for i, p := range pts {
		dates[i] = p.Date
	}
	months := features.MonthlyMeans(dates, vals)
	if len(months) < 2 {
		cs.Detail = "fewer than two months of history"
		return cs
	}
	monthly := make([]float64, 0, len(months))
	for _, m := range months {
		monthly = append(monthly, m)
	}
	_, std := features.MeanStd(monthly)
	overall := meanOf(vals)
	if overall <= 0 {
		return cs
	}
	cs.Score = math.Min(100, std/overall*100*a.cfg.Risk.SeasonalityScale)
	cs.Detail = fmt.Sprintf("monthly averages vary %.1f%% across %d months", std/overall*100, len(months))
	return cs
}

func (a *Analyzer) dataQualityRisk(quotes []models.Quote) models.CategoryScore {
	cs := models.CategoryScore{Name: models.RiskDataQuality}
	if len(quotes) == 0 {
		cs.Score = 100
		cs.Detail = "no current quotes"
		return cs
	}

	var newest time.Time
	filled := 0
	for _, q := range quotes {
		if q.AsOf.After(newest) {
			newest = q.AsOf
		}
		if q.Unit != "" {
			filled++
		}
		if q.Brand != "" {
			filled++
		}
		if q.Quantity > 0 {
			filled++
		}
		if q.StockStatus.Known() {
			filled++
		}
		if q.SourceTrust > 0 {
			filled++
		}
	}

	staleness := 1.0
	if !newest.IsZero() {
		age := a.now().Sub(newest)
		if age < 0 {
			age = 0
		}
		staleness = math.Min(1, float64(age)/float64(a.cfg.Risk.MaxPriceAge))
	}
	completeness := float64(filled) / float64(len(quotes)*completenessFields)

	cs.Score = 100 * (0.5*staleness + 0.5*(1-completeness))
	cs.Detail = fmt.Sprintf("staleness %.0f%%, completeness %.0f%%", staleness*100, completeness*100)
	return cs
}
