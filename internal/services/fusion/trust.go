package fusion

import (
	"time"

	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/services/features"
)

type TrustMode string

const (
	TrustStatic  TrustMode = "static"
	TrustDynamic TrustMode = "dynamic"
)

// TrustScorer assigns every quote a weight in [0,1].
type TrustScorer struct {
	cfg Config
	now func() time.Time
}

func NewTrustScorer(cfg Config, now func() time.Time) *TrustScorer {
	if now == nil {
		now = time.Now
	}
	return &TrustScorer{cfg: cfg.withDefaults(), now: now}
}

// Score dispatches on mode. accuracy is only consulted in dynamic mode and may be nil.
func (s *TrustScorer) Score(q models.Quote, mode TrustMode, accuracy map[string]models.SourceAccuracy) float64 {
	if mode == TrustDynamic {
		return s.Dynamic(q, accuracy)
	}
	return s.Static(q)
}

// Static prefers the quote's own trust, then the per-source prior, then the default.
func (s *TrustScorer) Static(q models.Quote) float64 {
	if q.SourceTrust > 0 {
		return features.Clamp(q.SourceTrust, 0, 1)
	}
	if p, ok := s.cfg.TrustPriors[q.Source]; ok {
		return features.Clamp(p, 0, 1)
	}
	return features.Clamp(s.cfg.DefaultTrust, 0, 1)
}

// Dynamic discounts static trust by quote age and by the source's track record.
func (s *TrustScorer) Dynamic(q models.Quote, accuracy map[string]models.SourceAccuracy) float64 {
	trust := s.Static(q) * s.freshness(q.AsOf) * s.accuracyMultiplier(accuracy[q.Source])
	return features.Clamp(trust, 0, 1)
}

func (s *TrustScorer) freshness(asOf time.Time) float64 {
	age := s.now().Sub(asOf)
	if age < 0 {
		age = 0
	}
	f := 1 - float64(age)/float64(s.cfg.MaxPriceAge)
	if f < 0 {
		return 0
	}
	return f
}

func (s *TrustScorer) accuracyMultiplier(a models.SourceAccuracy) float64 {
	ac := s.cfg.Accuracy
	if a.Samples < ac.MinSamples {
		return 1
	}
	m := 1 - a.MeanDeviation/ac.DeviationScale
	if m < ac.Floor {
		m = ac.Floor
	}
	return features.Clamp(m, 0, 1)
}
