package repository

import (
	"context"
	"time"

	"PriceFusion/internal/domain/models"
)

// QuoteProvider is one external price source. Fetch returns (nil, nil) when
// the source has no quote for the product.
type QuoteProvider interface {
	Name() string
	Fetch(ctx context.Context, productKey string) (*models.Quote, error)
}

// QuoteCache stores fused prices by product key with a time-to-live.
type QuoteCache interface {
	Get(ctx context.Context, key string) (models.FusedPrice, bool, error)
	Set(ctx context.Context, key string, v models.FusedPrice, ttl time.Duration) error
}

type QuoteStore interface {
	Init(ctx context.Context) error // ensure tables
	SaveQuotes(ctx context.Context, quotes []models.Quote) error
	SaveFusion(ctx context.Context, fp models.FusedPrice) error
	LatestQuotes(ctx context.Context, productKey string, since time.Time) ([]models.Quote, error)
	Health(ctx context.Context) error
	Close() error
}

type HistoryStore interface {
	PriceHistory(ctx context.Context, productKey string, from, to time.Time) ([]models.PricePoint, error)
	StockHistory(ctx context.Context, productKey string, from, to time.Time) ([]models.StockObservation, error)
	PopularProducts(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// Store is the persistence backend selected by configuration.
type Store interface {
	QuoteStore
	HistoryStore
}

// FusionPublisher fans fused prices out to downstream consumers.
type FusionPublisher interface {
	PublishFused(ctx context.Context, fp models.FusedPrice) error
}

type ProductNormalizer interface {
	Normalize(ctx context.Context, name string) (models.NormalizedProduct, error)
}

type Metrics interface {
	RecordFusion(outcome string)
	RecordRejection(reason string)
	RecordOutliers(n int)
	RecordCache(hit bool)
	RecordProvider(source, outcome string)
	RecordLastPrice(productKey string, price float64)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) RecordFusion(string)             {}
func (NopMetrics) RecordRejection(string)          {}
func (NopMetrics) RecordOutliers(int)              {}
func (NopMetrics) RecordCache(bool)                {}
func (NopMetrics) RecordProvider(string, string)   {}
func (NopMetrics) RecordLastPrice(string, float64) {}
func (NopMetrics) RecordLatency(string, float64)   {}
func (NopMetrics) RecordError(string)              {}
