package accuracy

import (
	"math"
	"sync"

	"PriceFusion/internal/domain/models"
)

// DefaultAlpha weights the newest observation in the moving average.
const DefaultAlpha = 0.2

// Tracker keeps an exponential moving average of each source's relative
// deviation from fused prices.
type Tracker struct {
	mu    sync.RWMutex
	alpha float64
	m     map[string]models.SourceAccuracy
}

func NewTracker(alpha float64) *Tracker {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Tracker{alpha: alpha, m: make(map[string]models.SourceAccuracy)}
}

// Observe folds one quote price against the fused reference price.
func (t *Tracker) Observe(source string, quoted, fused float64) {
	if source == "" || fused <= 0 || quoted <= 0 {
		return
	}
	dev := math.Abs(quoted-fused) / fused

	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.m[source]
	if a.Samples == 0 {
		a.MeanDeviation = dev
	} else {
		a.MeanDeviation = t.alpha*dev + (1-t.alpha)*a.MeanDeviation
	}
	a.Samples++
	t.m[source] = a
}

// ObserveFusion records every contributing quote of fp. outliers carries the
// quotes dropped during fusion so unreliable sources are penalised too.
func (t *Tracker) ObserveFusion(fp models.FusedPrice, outliers []models.Quote) {
	ref := fp.Price.InexactFloat64()
	for _, s := range fp.Sources {
		t.Observe(s.Source, s.UnitPrice.InexactFloat64(), ref)
	}
	for _, q := range outliers {
		t.Observe(q.Source, q.Price(), ref)
	}
}

// Snapshot returns a copy safe to hand to the fusion engine.
func (t *Tracker) Snapshot() map[string]models.SourceAccuracy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]models.SourceAccuracy, len(t.m))
	for k, v := range t.m {
		out[k] = v
	}
	return out
}
