package fusion

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceFusion/internal/domain/models"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func quote(source string, price float64, trust float64) models.Quote {
	return models.Quote{
		ProductKey:  "tomato",
		UnitPrice:   decimal.NewFromFloat(price),
		Currency:    models.CurrencyTRY,
		Unit:        "kg",
		Source:      source,
		SourceTrust: trust,
		AsOf:        testNow.Add(-2 * time.Hour),
	}
}

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig(), WithClock(fixedClock))
}

func TestFuse_DropsOutlierAndWeightsByTrust(t *testing.T) {
	e := newTestEngine()
	fp, err := e.Fuse([]models.Quote{
		quote("A", 100, 0.9),
		quote("B", 102, 0.8),
		quote("C", 250, 0.3),
	}, DefaultOptions())
	require.NoError(t, err)

	assert.InDelta(t, 100.94, fp.Price.InexactFloat64(), 0.01)
	assert.Equal(t, []string{"C"}, fp.OutliersRemoved)
	require.Len(t, fp.Sources, 2)
	assert.Greater(t, fp.Confidence, 0.7)
	assert.Equal(t, "tomato", fp.ProductKey)
	assert.Equal(t, "kg", fp.Unit)
	assert.Equal(t, models.CurrencyTRY, fp.Currency)
}

func TestFuse_InsufficientSources(t *testing.T) {
	e := newTestEngine()
	bad := quote("B", 0, 0.8)

	_, err := e.Fuse([]models.Quote{quote("A", 100, 0.9), bad}, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientSources))

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 1, fe.Observed)
	assert.Equal(t, 2, fe.Required)
	require.Len(t, fe.Rejections, 1)
	assert.Equal(t, models.RejectNonPositivePrice, fe.Rejections[0].Reason)
	assert.Contains(t, err.Error(), "observed 1")
	assert.Contains(t, err.Error(), "required 2")
}

func TestFuse_MinSourceCountOverride(t *testing.T) {
	e := newTestEngine()
	opts := DefaultOptions()
	opts.MinSourceCount = 1

	fp, err := e.Fuse([]models.Quote{quote("A", 100, 1)}, opts)
	require.NoError(t, err)
	assert.True(t, fp.Price.Equal(decimal.NewFromInt(100)))
	assert.Less(t, fp.Confidence, 1.0)
	assert.LessOrEqual(t, fp.Confidence, DefaultConfig().Confidence.SparseCap)
}

func TestFuse_IdenticalPricesSkipOutlierStep(t *testing.T) {
	e := newTestEngine()
	fp, err := e.Fuse([]models.Quote{
		quote("A", 50, 0.9),
		quote("B", 50, 0.4),
		quote("C", 50, 0.6),
	}, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, fp.OutliersRemoved)
	assert.True(t, fp.Price.Equal(decimal.NewFromInt(50)))
	assert.Len(t, fp.Sources, 3)
}

func TestFuse_Postconditions(t *testing.T) {
	e := newTestEngine()
	cases := [][]models.Quote{
		{quote("A", 10, 0.9), quote("B", 11, 0.1), quote("C", 12, 0.5)},
		{quote("A", 99.5, 0.7), quote("B", 101.25, 0.7), quote("C", 100, 0), quote("D", 98, 0.3)},
		{quote("A", 3, 0.2), quote("B", 4, 0.2)},
	}
	for i, qs := range cases {
		fp, err := e.Fuse(qs, DefaultOptions())
		require.NoError(t, err, "case %d", i)

		var sum float64
		minP, maxP := 1e18, 0.0
		for _, s := range fp.Sources {
			sum += s.Weight
			p := s.UnitPrice.InexactFloat64()
			if p < minP {
				minP = p
			}
			if p > maxP {
				maxP = p
			}
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "case %d weights", i)
		price := fp.Price.InexactFloat64()
		assert.GreaterOrEqual(t, price, minP-1e-4, "case %d", i)
		assert.LessOrEqual(t, price, maxP+1e-4, "case %d", i)
		assert.GreaterOrEqual(t, fp.Confidence, 0.0)
		assert.LessOrEqual(t, fp.Confidence, 1.0)
		assert.GreaterOrEqual(t, len(fp.Sources), 1)
	}
}

func TestFuse_ZeroTrustFallsBackToEqualWeights(t *testing.T) {
	e := newTestEngine()
	opts := DefaultOptions()
	opts.UseDynamicTrust = true

	a := quote("A", 10, 0.9)
	b := quote("B", 20, 0.9)
	a.AsOf = testNow.Add(-30 * 24 * time.Hour)
	b.AsOf = testNow.Add(-30 * 24 * time.Hour)

	fp, err := e.Fuse([]models.Quote{a, b}, opts)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, fp.Price.InexactFloat64(), 1e-9)
	assert.InDelta(t, 0.5, fp.Sources[0].Weight, 1e-9)
}

func TestFuse_DominantCurrency(t *testing.T) {
	e := newTestEngine()
	usd := quote("D", 3, 0.9)
	usd.Currency = models.CurrencyUSD

	fp, err := e.Fuse([]models.Quote{quote("A", 100, 0.9), quote("B", 101, 0.9), usd}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, models.CurrencyTRY, fp.Currency)
	require.Len(t, fp.Rejections, 1)
	assert.Equal(t, "currency_mismatch", fp.Rejections[0].Reason)
}

func TestFuse_ValidationDisabledStillDropsNonPositive(t *testing.T) {
	e := newTestEngine()
	stale := quote("A", 100, 0.9)
	stale.AsOf = testNow.Add(-400 * 24 * time.Hour)

	opts := DefaultOptions()
	opts.EnableValidation = false
	fp, err := e.Fuse([]models.Quote{stale, quote("B", 102, 0.9), quote("C", -1, 0.9)}, opts)
	require.NoError(t, err)
	assert.Len(t, fp.Sources, 2)
	require.Len(t, fp.Rejections, 1)
	assert.Equal(t, models.RejectNonPositivePrice, fp.Rejections[0].Reason)
}

func TestFuse_BrandBreakdown(t *testing.T) {
	e := newTestEngine()
	a := quote("A", 100, 0.5)
	a.Brand = "Tat"
	b := quote("B", 104, 0.5)
	b.Brand = "Tat"
	c := quote("C", 102, 0.5)
	c.Brand = "Tamek"
	d := quote("D", 101, 0.5)

	fp, err := e.Fuse([]models.Quote{a, b, c, d}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, fp.PriceByBrand, 2)
	assert.Equal(t, "Tamek", fp.PriceByBrand[0].Brand)
	assert.Equal(t, 1, fp.PriceByBrand[0].Count)
	assert.Equal(t, "Tat", fp.PriceByBrand[1].Brand)
	assert.Equal(t, 2, fp.PriceByBrand[1].Count)
	assert.InDelta(t, 102.0, fp.PriceByBrand[1].Price.InexactFloat64(), 1e-9)

	opts := DefaultOptions()
	opts.EnableBrandPrices = false
	fp, err = e.Fuse([]models.Quote{a, b, c, d}, opts)
	require.NoError(t, err)
	assert.Empty(t, fp.PriceByBrand)
}

func TestRejectOutliers_Idempotent(t *testing.T) {
	sets := [][]float64{
		{100, 102, 250},
		{100, 101, 102, 110, 250, 400},
		{10, 10, 10, 13},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 100},
		{5, 5.1},
	}
	for _, prices := range sets {
		items := make([]weighted, len(prices))
		for i, p := range prices {
			items[i] = weighted{q: models.Quote{Source: "s"}, price: p, trust: 0.5}
		}
		kept, _ := rejectOutliers(items, 3)
		again, dropped := rejectOutliers(kept, 3)
		assert.Empty(t, dropped, "prices %v", prices)
		assert.Equal(t, len(kept), len(again))
		assert.NotEmpty(t, kept)
	}
}

func TestRejectOutliers_KeepsTwoClosestWhenAllRejected(t *testing.T) {
	items := []weighted{{price: 100}, {price: 104}, {price: 110}, {price: 120}}
	kept, dropped := rejectOutliers(items, 0.5)
	require.Len(t, kept, 2)
	assert.Len(t, dropped, 2)
	got := []float64{kept[0].price, kept[1].price}
	assert.ElementsMatch(t, []float64{104, 110}, got)
}

func TestConfidence_MonotonicInAgreement(t *testing.T) {
	e := newTestEngine()
	prev := 2.0
	for _, spread := range []float64{0, 1, 5, 10, 20} {
		fp, err := e.Fuse([]models.Quote{
			quote("A", 100-spread, 0.8),
			quote("B", 100, 0.8),
			quote("C", 100+spread, 0.8),
		}, DefaultOptions())
		require.NoError(t, err)
		assert.Less(t, fp.Confidence, prev, "spread %v", spread)
		prev = fp.Confidence
	}
}

func TestAggregateStock(t *testing.T) {
	mk := func(statuses ...models.StockStatus) []weighted {
		out := make([]weighted, len(statuses))
		for i, s := range statuses {
			out[i] = weighted{q: models.Quote{StockStatus: s}}
		}
		return out
	}
	tests := []struct {
		name string
		in   []weighted
		want models.StockStatus
	}{
		{"none", mk("", models.StockUnknown), models.StockUnknown},
		{"all in stock", mk(models.StockInStock, models.StockInStock), models.StockInStock},
		{"out without in", mk(models.StockOutOfStock, models.StockLimited), models.StockOutOfStock},
		{"out with in", mk(models.StockOutOfStock, models.StockInStock), models.StockLimited},
		{"limited and in", mk(models.StockLimited, models.StockInStock, models.StockInStock), models.StockLimited},
		{"all out", mk(models.StockOutOfStock, ""), models.StockOutOfStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, aggregateStock(tt.in))
		})
	}
}

func TestFuse_SubCentPricesStayPositive(t *testing.T) {
	e := newTestEngine()
	a := quote("A", 0.00004, 0.8)
	a.Brand = "acme"
	fp, err := e.Fuse([]models.Quote{a, quote("B", 0.00004, 0.6)}, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, fp.Price.IsPositive())
	got, _ := fp.Price.Float64()
	assert.InDelta(t, 0.00004, got, 1e-12)
	require.Len(t, fp.PriceByBrand, 1)
	assert.True(t, fp.PriceByBrand[0].Price.IsPositive())
}

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, "12.3457", roundPrice(12.345678).String())
	assert.Equal(t, "0.00001", roundPrice(0.00001).String())
	assert.True(t, roundPrice(0).IsZero())
}
