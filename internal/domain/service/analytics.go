package service

import "PriceFusion/internal/domain/models"

// VolatilityAnalyzer classifies the dispersion and direction of a price series.
type VolatilityAnalyzer interface {
	AnalyzeVolatility(series []models.PricePoint) (models.Volatility, error)
}

// Forecaster projects the next period price from a history.
type Forecaster interface {
	ForecastNext(series []models.PricePoint) (models.Forecast, error)
}

// RiskAnalyzer scores supply and price risk for one product.
type RiskAnalyzer interface {
	AnalyzeRisk(quotes []models.Quote, priceHistory []models.PricePoint, stockHistory []models.StockObservation) (models.RiskAnalysis, error)
}

// PriceAnalytics is everything the enrichment and risk paths need.
type PriceAnalytics interface {
	VolatilityAnalyzer
	Forecaster
	RiskAnalyzer
}
