package analytics

import (
	"time"

	"PriceFusion/internal/domain/models"
)

// Config holds the thresholds of the volatility, forecast and risk analyzers.
type Config struct {
	MinVolatilityPoints int
	LowCV               float64 // below: low
	HighCV              float64 // above: high
	TrendNoise          float64 // relative change treated as flat

	MinForecastPoints        int
	ForecastWindow           int
	FullLengthPoints         int
	FitScale                 float64
	FloorRatio               float64
	MinFloor                 float64
	ClampedConfidenceCeiling float64

	Risk RiskConfig
}

type RiskConfig struct {
	MinPricePoints       int
	MinStockObservations int
	VolatilityScale      float64
	SeasonalityScale     float64
	AlertThreshold       float64
	CriticalThreshold    float64
	MitigationThreshold  float64
	LowBelow             float64
	HighAbove            float64
	MaxPriceAge          time.Duration
	Weights              map[string]float64
}

func DefaultConfig() Config {
	return Config{
		MinVolatilityPoints:      7,
		LowCV:                    0.10,
		HighCV:                   0.25,
		TrendNoise:               0.02,
		MinForecastPoints:        3,
		ForecastWindow:           30,
		FullLengthPoints:         30,
		FitScale:                 0.05,
		FloorRatio:               0.01,
		MinFloor:                 0.01,
		ClampedConfidenceCeiling: 0.3,
		Risk: RiskConfig{
			MinPricePoints:       3,
			MinStockObservations: 2,
			VolatilityScale:      4,
			SeasonalityScale:     5,
			AlertThreshold:       70,
			CriticalThreshold:    85,
			MitigationThreshold:  50,
			LowBelow:             34,
			HighAbove:            66,
			MaxPriceAge:          30 * 24 * time.Hour,
			Weights: map[string]float64{
				models.RiskPriceVolatility:       0.2,
				models.RiskStockAvailability:     0.2,
				models.RiskSupplierConcentration: 0.2,
				models.RiskSeasonality:           0.2,
				models.RiskDataQuality:           0.2,
			},
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinVolatilityPoints <= 0 {
		c.MinVolatilityPoints = d.MinVolatilityPoints
	}
	if c.LowCV <= 0 || c.HighCV <= c.LowCV {
		c.LowCV, c.HighCV = d.LowCV, d.HighCV
	}
	if c.TrendNoise <= 0 {
		c.TrendNoise = d.TrendNoise
	}
	if c.MinForecastPoints < 2 {
		c.MinForecastPoints = d.MinForecastPoints
	}
	if c.ForecastWindow < c.MinForecastPoints {
		c.ForecastWindow = d.ForecastWindow
	}
	if c.FullLengthPoints <= 0 {
		c.FullLengthPoints = d.FullLengthPoints
	}
	if c.FitScale <= 0 {
		c.FitScale = d.FitScale
	}
	if c.FloorRatio <= 0 {
		c.FloorRatio = d.FloorRatio
	}
	if c.MinFloor <= 0 {
		c.MinFloor = d.MinFloor
	}
	if c.ClampedConfidenceCeiling <= 0 {
		c.ClampedConfidenceCeiling = d.ClampedConfidenceCeiling
	}
	r, dr := &c.Risk, d.Risk
	if r.MinPricePoints <= 0 {
		r.MinPricePoints = dr.MinPricePoints
	}
	if r.MinStockObservations <= 0 {
		r.MinStockObservations = dr.MinStockObservations
	}
	if r.VolatilityScale <= 0 {
		r.VolatilityScale = dr.VolatilityScale
	}
	if r.SeasonalityScale <= 0 {
		r.SeasonalityScale = dr.SeasonalityScale
	}
	if r.AlertThreshold <= 0 {
		r.AlertThreshold = dr.AlertThreshold
	}
	if r.CriticalThreshold <= r.AlertThreshold {
		r.CriticalThreshold = dr.CriticalThreshold
	}
	if r.MitigationThreshold <= 0 {
		r.MitigationThreshold = dr.MitigationThreshold
	}
	if r.LowBelow <= 0 || r.HighAbove <= r.LowBelow {
		r.LowBelow, r.HighAbove = dr.LowBelow, dr.HighAbove
	}
	if r.MaxPriceAge <= 0 {
		r.MaxPriceAge = dr.MaxPriceAge
	}
	var wsum float64
	for _, w := range r.Weights {
		wsum += w
	}
	if wsum <= 0 {
		r.Weights = dr.Weights
	}
	return c
}
