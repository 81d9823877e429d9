package models

import "time"

// Risk category names.
const (
	RiskPriceVolatility       = "price_volatility"
	RiskStockAvailability     = "stock_availability"
	RiskSupplierConcentration = "supplier_concentration"
	RiskSeasonality           = "seasonality"
	RiskDataQuality           = "data_quality"
)

// Risk levels.
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

type StockObservation struct {
	Date   time.Time   `json:"date"`
	Status StockStatus `json:"status"`
	Market string      `json:"market,omitempty"`
}

type CategoryScore struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Detail string  `json:"detail,omitempty"`
}

type RiskAlert struct {
	Category string  `json:"category"`
	Severity string  `json:"severity"`
	Score    float64 `json:"score"`
	Message  string  `json:"message"`
}

// RiskAnalysis is the multi-dimensional risk report for one product.
type RiskAnalysis struct {
	ProductKey           string          `json:"product_key,omitempty"`
	Categories           []CategoryScore `json:"categories"`
	OverallRiskScore     float64         `json:"overall_risk_score"`
	RiskLevel            string          `json:"risk_level"`
	Alerts               []RiskAlert     `json:"alerts"`
	MitigationStrategies []string        `json:"mitigation_strategies"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

// Category returns the named category score.
func (r RiskAnalysis) Category(name string) (CategoryScore, bool) {
	for _, c := range r.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return CategoryScore{}, false
}

// NormalizedProduct is the canonical identity produced by the normalizer.
type NormalizedProduct struct {
	ProductKey  string  `json:"product_key"`
	DisplayName string  `json:"display_name"`
	Unit        string  `json:"unit,omitempty"`
	Confidence  float64 `json:"confidence"`
}
