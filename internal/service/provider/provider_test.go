package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceFusion/internal/domain/models"
)

func TestHTTPProvider_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["product_key"] == "unknown" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"unit_price":"24.90","currency":"TRY","unit":"kg","as_of":"2025-03-01T10:00:00Z","stock_status":"limited"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{Name: "web_scrape", URL: srv.URL, Trust: 0.6, Timeout: time.Second})
	assert.Equal(t, "web_scrape", p.Name())

	q, err := p.Fetch(context.Background(), "tomato")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.True(t, q.UnitPrice.Equal(decimal.RequireFromString("24.90")))
	assert.Equal(t, models.CurrencyTRY, q.Currency)
	assert.Equal(t, "web_scrape", q.Source)
	assert.Equal(t, 0.6, q.SourceTrust)
	assert.Equal(t, models.StockLimited, q.StockStatus)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), q.AsOf.UTC())

	q, err = p.Fetch(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestHTTPProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{Name: "gov_stats", URL: srv.URL, Attempts: 1})
	_, err := p.Fetch(context.Background(), "tomato")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gov_stats")
}

type stubStore struct {
	quotes []models.Quote
}

func (s *stubStore) Init(context.Context) error                          { return nil }
func (s *stubStore) SaveQuotes(context.Context, []models.Quote) error    { return nil }
func (s *stubStore) SaveFusion(context.Context, models.FusedPrice) error { return nil }
func (s *stubStore) Health(context.Context) error                        { return nil }
func (s *stubStore) Close() error                                        { return nil }
func (s *stubStore) LatestQuotes(context.Context, string, time.Time) ([]models.Quote, error) {
	return s.quotes, nil
}

func TestHistoryProvider_Fetch(t *testing.T) {
	now := time.Now()
	store := &stubStore{quotes: []models.Quote{
		{Source: "a", UnitPrice: decimal.NewFromInt(10), AsOf: now.Add(-2 * time.Hour)},
		{Source: "b", UnitPrice: decimal.NewFromInt(11), AsOf: now.Add(-time.Hour)},
		{Source: models.SourceHistoricalDB, UnitPrice: decimal.NewFromInt(99), AsOf: now},
	}}
	p := NewHistoryProvider(store, 0)

	q, err := p.Fetch(context.Background(), "milk")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, models.SourceHistoricalDB, q.Source)
	assert.True(t, q.UnitPrice.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, "b", q.Meta["origin_source"])

	empty := NewHistoryProvider(&stubStore{}, time.Hour)
	q, err = empty.Fetch(context.Background(), "milk")
	require.NoError(t, err)
	assert.Nil(t, q)
}
