package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"PriceFusion/internal/domain/models"
)

func TestTrustScorer_Static(t *testing.T) {
	s := NewTrustScorer(DefaultConfig(), fixedClock)

	assert.Equal(t, 0.9, s.Static(quote("anything", 1, 0.9)))
	assert.Equal(t, 0.95, s.Static(quote(models.SourceGovStats, 1, 0)))
	assert.Equal(t, 0.35, s.Static(quote(models.SourceAIEstimate, 1, 0)))
	assert.Equal(t, 0.5, s.Static(quote("unknown", 1, 0)))

	cfg := DefaultConfig()
	assert.Greater(t, cfg.TrustPriors[models.SourceGovStats], cfg.TrustPriors[models.SourceCuratedDB])
	assert.Greater(t, cfg.TrustPriors[models.SourceCuratedDB], cfg.TrustPriors[models.SourceWebScrape])
	assert.Greater(t, cfg.TrustPriors[models.SourceWebScrape], cfg.TrustPriors[models.SourceAIEstimate])
}

func TestTrustScorer_DynamicFreshness(t *testing.T) {
	s := NewTrustScorer(DefaultConfig(), fixedClock)

	q := quote("A", 1, 0.8)
	q.AsOf = testNow.Add(-15 * 24 * time.Hour)
	assert.InDelta(t, 0.4, s.Dynamic(q, nil), 1e-9)

	q.AsOf = testNow
	assert.InDelta(t, 0.8, s.Score(q, TrustDynamic, nil), 1e-9)

	q.AsOf = testNow.Add(-45 * 24 * time.Hour)
	assert.Equal(t, 0.0, s.Dynamic(q, nil))
}

func TestTrustScorer_DynamicAccuracy(t *testing.T) {
	s := NewTrustScorer(DefaultConfig(), fixedClock)
	q := quote("A", 1, 0.8)
	q.AsOf = testNow

	acc := map[string]models.SourceAccuracy{"A": {MeanDeviation: 0.1, Samples: 10}}
	assert.InDelta(t, 0.8*0.8, s.Dynamic(q, acc), 1e-9)

	acc["A"] = models.SourceAccuracy{MeanDeviation: 2, Samples: 10}
	assert.InDelta(t, 0.8*0.2, s.Dynamic(q, acc), 1e-9, "multiplier never drops below floor")

	acc["A"] = models.SourceAccuracy{MeanDeviation: 2, Samples: 1}
	assert.InDelta(t, 0.8, s.Dynamic(q, acc), 1e-9, "too few samples are ignored")

	assert.InDelta(t, 0.8, s.Score(q, TrustStatic, acc), 1e-9)
}

func TestTrustScorer_Clamped(t *testing.T) {
	s := NewTrustScorer(DefaultConfig(), fixedClock)
	q := quote("A", 1, 7)
	assert.Equal(t, 1.0, s.Static(q))
	q.AsOf = testNow
	assert.Equal(t, 1.0, s.Dynamic(q, nil))
}
