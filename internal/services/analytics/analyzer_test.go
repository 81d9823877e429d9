package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceFusion/internal/domain/models"
)

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(DefaultConfig(), WithClock(func() time.Time { return testNow }))
}

func daily(prices ...float64) []models.PricePoint {
	out := make([]models.PricePoint, len(prices))
	start := testNow.AddDate(0, 0, -len(prices))
	for i, p := range prices {
		out[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Price: p}
	}
	return out
}

func flat(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func TestAnalyzeVolatility(t *testing.T) {
	a := newTestAnalyzer()

	tests := []struct {
		name   string
		prices []float64
		class  string
		trend  string
	}{
		{"flat", flat(10, 20), models.VolatilityLow, models.TrendStable},
		{"rising", []float64{10, 10, 10, 11, 12, 13, 14, 14, 14}, models.VolatilityMedium, models.TrendRising},
		{"falling wild", []float64{40, 30, 45, 20, 10, 15, 5, 8, 6}, models.VolatilityHigh, models.TrendFalling},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := a.AnalyzeVolatility(daily(tt.prices...))
			require.NoError(t, err)
			assert.Equal(t, tt.class, v.Classification)
			assert.Equal(t, tt.trend, v.Trend)
			assert.GreaterOrEqual(t, v.CoefficientOfVariation, 0.0)
		})
	}
}

func TestAnalyzeVolatility_InsufficientHistory(t *testing.T) {
	a := newTestAnalyzer()
	_, err := a.AnalyzeVolatility(daily(1, 2, 3, 4, 5, 6))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))

	var ie *InsufficientError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 6, ie.Observed)
	assert.Equal(t, 7, ie.Required)
}

func TestAnalyzeVolatility_UnorderedInput(t *testing.T) {
	a := newTestAnalyzer()
	pts := daily(10, 10, 10, 11, 12, 13, 14, 14, 14)
	pts[0], pts[8] = pts[8], pts[0]
	v, err := a.AnalyzeVolatility(pts)
	require.NoError(t, err)
	assert.Equal(t, models.TrendRising, v.Trend)
}

func TestForecastNext_Flat(t *testing.T) {
	a := newTestAnalyzer()
	f, err := a.ForecastNext(daily(flat(90, 42)...))
	require.NoError(t, err)
	assert.InDelta(t, 42.0, f.NextPeriod, 1e-9)
	assert.Greater(t, f.Confidence, 0.9)
	assert.Equal(t, models.TrendStable, f.Trend)
	assert.False(t, f.Clamped)
}

func TestForecastNext_Linear(t *testing.T) {
	a := newTestAnalyzer()
	f, err := a.ForecastNext(daily(10, 11, 12, 13, 14))
	require.NoError(t, err)
	assert.InDelta(t, 15.0, f.NextPeriod, 1e-9)
	assert.Equal(t, models.TrendRising, f.Trend)
}

func TestForecastNext_ClampsNegativeProjection(t *testing.T) {
	a := newTestAnalyzer()
	f, err := a.ForecastNext(daily(10, 6, 2))
	require.NoError(t, err)
	assert.True(t, f.Clamped)
	assert.Greater(t, f.NextPeriod, 0.0)
	assert.LessOrEqual(t, f.Confidence, DefaultConfig().ClampedConfidenceCeiling)
	assert.Equal(t, models.TrendFalling, f.Trend)
}

func TestForecastNext_InsufficientHistory(t *testing.T) {
	a := newTestAnalyzer()
	_, err := a.ForecastNext(daily(1, 2))
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}

func TestForecastNext_ConfidenceGrowsWithLength(t *testing.T) {
	a := newTestAnalyzer()
	short, err := a.ForecastNext(daily(10, 10.5, 10, 10.5))
	require.NoError(t, err)
	long, err := a.ForecastNext(daily(10, 10.5, 10, 10.5, 10, 10.5, 10, 10.5, 10, 10.5, 10, 10.5, 10, 10.5, 10, 10.5))
	require.NoError(t, err)
	assert.Greater(t, long.Confidence, short.Confidence)
}

func stockObs(statuses ...models.StockStatus) []models.StockObservation {
	out := make([]models.StockObservation, len(statuses))
	for i, s := range statuses {
		out[i] = models.StockObservation{Date: testNow.AddDate(0, 0, -i), Status: s, Market: "hal"}
	}
	return out
}

func riskQuote(source string) models.Quote {
	return models.Quote{
		ProductKey:  "onion",
		UnitPrice:   decimal.NewFromInt(10),
		Currency:    models.CurrencyTRY,
		Unit:        "kg",
		Source:      source,
		SourceTrust: 0.8,
		Brand:       "x",
		Quantity:    1,
		StockStatus: models.StockInStock,
		AsOf:        testNow,
	}
}

func TestAnalyzeRisk_StockAvailability(t *testing.T) {
	a := newTestAnalyzer()
	obs := stockObs(
		models.StockOutOfStock, models.StockOutOfStock, models.StockOutOfStock,
		models.StockOutOfStock, models.StockOutOfStock, models.StockOutOfStock,
		models.StockInStock, models.StockInStock, models.StockInStock, models.StockInStock,
	)
	r, err := a.AnalyzeRisk(nil, nil, obs)
	require.NoError(t, err)

	cs, ok := r.Category(models.RiskStockAvailability)
	require.True(t, ok)
	assert.InDelta(t, 60.0, cs.Score, 1e-9)
	assert.Len(t, r.Categories, 5)
}

func TestAnalyzeRisk_SingleSupplier(t *testing.T) {
	a := newTestAnalyzer()
	quotes := []models.Quote{riskQuote("only"), riskQuote("only"), riskQuote("only")}
	r, err := a.AnalyzeRisk(quotes, daily(10, 10, 10), nil)
	require.NoError(t, err)

	cs, _ := r.Category(models.RiskSupplierConcentration)
	assert.Equal(t, 100.0, cs.Score)

	require.NotEmpty(t, r.Alerts)
	var found bool
	for _, al := range r.Alerts {
		if al.Category == models.RiskSupplierConcentration {
			found = true
			assert.Equal(t, models.SeverityCritical, al.Severity)
		}
	}
	assert.True(t, found)
	assert.Contains(t, r.MitigationStrategies, mitigations[models.RiskSupplierConcentration][0])
	assert.Equal(t, "onion", r.ProductKey)
}

func TestAnalyzeRisk_EvenSuppliersLowConcentration(t *testing.T) {
	a := newTestAnalyzer()
	var quotes []models.Quote
	for _, s := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		quotes = append(quotes, riskQuote(s))
	}
	r, err := a.AnalyzeRisk(quotes, daily(10, 10, 10), nil)
	require.NoError(t, err)
	cs, _ := r.Category(models.RiskSupplierConcentration)
	assert.InDelta(t, 10.0, cs.Score, 1e-9)

	dq, _ := r.Category(models.RiskDataQuality)
	assert.InDelta(t, 0.0, dq.Score, 1e-9, "fresh and complete quotes")
	assert.Equal(t, models.RiskLevelLow, r.RiskLevel)
	assert.Empty(t, r.Alerts)
	assert.Equal(t, []string{baselineMitigation}, r.MitigationStrategies)
}

func TestAnalyzeRisk_InsufficientData(t *testing.T) {
	a := newTestAnalyzer()
	_, err := a.AnalyzeRisk([]models.Quote{riskQuote("a")}, daily(10, 11), stockObs(models.StockInStock))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestAnalyzeRisk_Seasonality(t *testing.T) {
	a := newTestAnalyzer()
	var pts []models.PricePoint
	for m := 1; m <= 12; m++ {
		price := 10.0
		if m >= 6 && m <= 8 {
			price = 20
		}
		pts = append(pts, models.PricePoint{Date: time.Date(2024, time.Month(m), 15, 0, 0, 0, 0, time.UTC), Price: price})
	}
	r, err := a.AnalyzeRisk(nil, pts, nil)
	require.NoError(t, err)
	cs, _ := r.Category(models.RiskSeasonality)
	assert.Greater(t, cs.Score, 50.0)

	r, err = a.AnalyzeRisk(nil, daily(10, 10, 10), nil)
	require.NoError(t, err)
	cs, _ = r.Category(models.RiskSeasonality)
	assert.Equal(t, 0.0, cs.Score)
}

func TestAnalyzeRisk_ScoresBounded(t *testing.T) {
	a := newTestAnalyzer()
	stale := riskQuote("a")
	stale.AsOf = testNow.AddDate(-1, 0, 0)
	stale.Unit, stale.Brand = "", ""

	r, err := a.AnalyzeRisk([]models.Quote{stale}, daily(1, 100, 1, 100, 1), stockObs(models.StockLimited, models.StockOutOfStock))
	require.NoError(t, err)
	for _, c := range r.Categories {
		assert.GreaterOrEqual(t, c.Score, 0.0, c.Name)
		assert.LessOrEqual(t, c.Score, 100.0, c.Name)
	}
	assert.GreaterOrEqual(t, r.OverallRiskScore, 0.0)
	assert.LessOrEqual(t, r.OverallRiskScore, 100.0)
	assert.Equal(t, a.RiskLevel(r.OverallRiskScore), r.RiskLevel)
}

func TestRiskLevel(t *testing.T) {
	a := newTestAnalyzer()
	assert.Equal(t, models.RiskLevelLow, a.RiskLevel(0))
	assert.Equal(t, models.RiskLevelLow, a.RiskLevel(33.9))
	assert.Equal(t, models.RiskLevelMedium, a.RiskLevel(34))
	assert.Equal(t, models.RiskLevelMedium, a.RiskLevel(66))
	assert.Equal(t, models.RiskLevelHigh, a.RiskLevel(66.1))
	assert.Equal(t, models.RiskLevelHigh, a.RiskLevel(100))
}
