package fusion

import (
	"time"

	"PriceFusion/internal/domain/models"
)

// Config holds every tunable of the fusion engine. It is built once from the
// application config and injected; the engine keeps no package state.
type Config struct {
	MaxPriceAge    time.Duration
	Currencies     []models.Currency
	TrustPriors    map[string]float64
	DefaultTrust   float64
	MADThreshold   float64
	MinSourceCount int
	Accuracy       AccuracyConfig
	Confidence     ConfidenceConfig
}

// AccuracyConfig shapes the historical-accuracy multiplier of dynamic trust.
type AccuracyConfig struct {
	Floor          float64
	DeviationScale float64
	MinSamples     int
}

// ConfidenceConfig weights the three confidence components.
type ConfidenceConfig struct {
	FullCoverageSources int
	AgreementScale      float64
	CoverageWeight      float64
	AgreementWeight     float64
	TrustWeight         float64
	MinAgreeingSources  int
	SparseCap           float64
}

func DefaultConfig() Config {
	return Config{
		MaxPriceAge: 30 * 24 * time.Hour,
		Currencies:  []models.Currency{models.CurrencyTRY, models.CurrencyUSD, models.CurrencyEUR},
		TrustPriors: map[string]float64{
			models.SourceGovStats:     0.95,
			models.SourceCuratedDB:    0.85,
			models.SourceHistoricalDB: 0.75,
			models.SourceWebScrape:    0.6,
			models.SourceAIEstimate:   0.35,
		},
		DefaultTrust:   0.5,
		MADThreshold:   3.0,
		MinSourceCount: 2,
		Accuracy: AccuracyConfig{
			Floor:          0.2,
			DeviationScale: 0.5,
			MinSamples:     3,
		},
		Confidence: ConfidenceConfig{
			FullCoverageSources: 3,
			AgreementScale:      0.10,
			CoverageWeight:      0.35,
			AgreementWeight:     0.40,
			TrustWeight:         0.25,
			MinAgreeingSources:  2,
			SparseCap:           0.6,
		},
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxPriceAge <= 0 {
		c.MaxPriceAge = d.MaxPriceAge
	}
	if len(c.Currencies) == 0 {
		c.Currencies = d.Currencies
	}
	if c.TrustPriors == nil {
		c.TrustPriors = d.TrustPriors
	}
	if c.DefaultTrust <= 0 {
		c.DefaultTrust = d.DefaultTrust
	}
	if c.MADThreshold <= 0 {
		c.MADThreshold = d.MADThreshold
	}
	if c.MinSourceCount <= 0 {
		c.MinSourceCount = d.MinSourceCount
	}
	if c.Accuracy.DeviationScale <= 0 {
		c.Accuracy = d.Accuracy
	}
	if c.Confidence.CoverageWeight+c.Confidence.AgreementWeight+c.Confidence.TrustWeight <= 0 {
		c.Confidence = d.Confidence
	}
	if c.Confidence.FullCoverageSources <= 0 {
		c.Confidence.FullCoverageSources = d.Confidence.FullCoverageSources
	}
	if c.Confidence.AgreementScale <= 0 {
		c.Confidence.AgreementScale = d.Confidence.AgreementScale
	}
	if c.Confidence.SparseCap <= 0 || c.Confidence.SparseCap >= 1 {
		c.Confidence.SparseCap = d.Confidence.SparseCap
	}
	return c
}

// Options are per-call switches for Fuse.
type Options struct {
	EnableValidation  bool
	EnableBrandPrices bool
	UseDynamicTrust   bool
	// MinSourceCount overrides Config.MinSourceCount when positive.
	MinSourceCount int
	// Accuracy feeds dynamic trust; keyed by source name.
	Accuracy map[string]models.SourceAccuracy
}

func DefaultOptions() Options {
	return Options{EnableValidation: true, EnableBrandPrices: true}
}
