package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/services/analytics"
)

func TestRiskUseCase_FallsBackToStoredQuotes(t *testing.T) {
	store := &fakeStore{
		latest: []models.Quote{
			quote(models.SourceGovStats, "24.00"),
			quote(models.SourceWebScrape, "25.00"),
		},
		history: dailyHistory(30, 20, 0.1),
	}
	uc := NewRiskUseCase(&fakeSource{}, nil, analytics.NewAnalyzer(analytics.DefaultConfig()), store, nil, nil)

	ra, err := uc.Analyze(context.Background(), "tomato", 0)
	require.NoError(t, err)
	assert.Equal(t, "tomato", ra.ProductKey)
	assert.Len(t, ra.Categories, 5)
	assert.Equal(t, 1, store.latestN)
	assert.GreaterOrEqual(t, ra.OverallRiskScore, 0.0)
	assert.LessOrEqual(t, ra.OverallRiskScore, 100.0)
}

func TestRiskUseCase_LiveQuotesSkipStore(t *testing.T) {
	src := &fakeSource{quotes: []models.Quote{quote(models.SourceGovStats, "24.00")}}
	store := &fakeStore{history: dailyHistory(10, 20, 0)}
	uc := NewRiskUseCase(src, nil, analytics.NewAnalyzer(analytics.DefaultConfig()), store, nil, nil)

	_, err := uc.Analyze(context.Background(), "tomato", 30)
	require.NoError(t, err)
	assert.Equal(t, 0, store.latestN)
}

func TestRiskUseCase_InsufficientData(t *testing.T) {
	uc := NewRiskUseCase(&fakeSource{}, nil, analytics.NewAnalyzer(analytics.DefaultConfig()), &fakeStore{}, nil, nil)

	_, err := uc.Analyze(context.Background(), "tomato", 30)
	require.Error(t, err)
	assert.True(t, errors.Is(err, analytics.ErrInsufficientData))
}

func TestRiskUseCase_AnalyzeSupplied(t *testing.T) {
	uc := NewRiskUseCase(nil, nil, analytics.NewAnalyzer(analytics.DefaultConfig()), nil, nil, nil)
	stock := []models.StockObservation{
		{Status: models.StockInStock, Market: "a"},
		{Status: models.StockOutOfStock, Market: "b"},
	}

	ra, err := uc.AnalyzeSupplied(context.Background(), "rice", nil, nil, stock)
	require.NoError(t, err)
	assert.Equal(t, "rice", ra.ProductKey)
}

func TestRiskUseCase_MalformedQuotesDoNotCountAsSuppliers(t *testing.T) {
	bad := quote(models.SourceWebScrape, "0")
	bad.Currency = "XXX"
	bad.AsOf = time.Now().Add(48 * time.Hour)
	src := &fakeSource{quotes: []models.Quote{quote(models.SourceGovStats, "24.00"), bad}}
	store := &fakeStore{history: dailyHistory(30, 20, 0.1)}
	m := &recordingMetrics{}
	uc := NewRiskUseCase(src, nil, analytics.NewAnalyzer(analytics.DefaultConfig()), store, m, nil)

	ra, err := uc.Analyze(context.Background(), "tomato", 30)
	require.NoError(t, err)
	conc, ok := ra.Category(models.RiskSupplierConcentration)
	require.True(t, ok)
	assert.InDelta(t, 100.0, conc.Score, 1e-9)
	assert.Equal(t, []string{models.RejectNonPositivePrice}, m.rejections)
}

func TestRiskUseCase_AnalyzeSuppliedValidatesQuotes(t *testing.T) {
	future := quote(models.SourceWebScrape, "25.00")
	future.AsOf = time.Now().Add(time.Hour)
	negative := quote(models.SourceCuratedDB, "1")
	negative.UnitPrice = decimal.NewFromInt(-1)
	quotes := []models.Quote{quote(models.SourceGovStats, "24.00"), future, negative}
	uc := NewRiskUseCase(nil, nil, analytics.NewAnalyzer(analytics.DefaultConfig()), nil, nil, nil)

	ra, err := uc.AnalyzeSupplied(context.Background(), "tomato", quotes, dailyHistory(10, 20, 0), nil)
	require.NoError(t, err)
	conc, ok := ra.Category(models.RiskSupplierConcentration)
	require.True(t, ok)
	assert.InDelta(t, 100.0, conc.Score, 1e-9)
}
