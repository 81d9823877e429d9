package accuracy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"PriceFusion/internal/domain/models"
)

func TestTracker_Observe(t *testing.T) {
	tr := NewTracker(0.5)
	tr.Observe("a", 110, 100)
	tr.Observe("a", 100, 100)
	tr.Observe("", 1, 1)
	tr.Observe("b", 1, 0)

	snap := tr.Snapshot()
	assert.Len(t, snap, 1)
	assert.Equal(t, 2, snap["a"].Samples)
	assert.InDelta(t, 0.05, snap["a"].MeanDeviation, 1e-9)

	snap["a"] = models.SourceAccuracy{}
	assert.Equal(t, 2, tr.Snapshot()["a"].Samples, "snapshot is a copy")
}

func TestTracker_ObserveFusion(t *testing.T) {
	tr := NewTracker(0)
	fp := models.FusedPrice{
		Price: decimal.NewFromInt(100),
		Sources: []models.SourceWeight{
			{Source: "a", UnitPrice: decimal.NewFromInt(100)},
			{Source: "b", UnitPrice: decimal.NewFromInt(102)},
		},
	}
	tr.ObserveFusion(fp, []models.Quote{{Source: "c", UnitPrice: decimal.NewFromInt(250)}})

	snap := tr.Snapshot()
	assert.InDelta(t, 0.0, snap["a"].MeanDeviation, 1e-9)
	assert.InDelta(t, 0.02, snap["b"].MeanDeviation, 1e-9)
	assert.InDelta(t, 1.5, snap["c"].MeanDeviation, 1e-9)
}
