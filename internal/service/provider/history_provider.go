package provider

import (
	"context"
	"fmt"
	"time"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
)

var _ domrepo.QuoteProvider = (*HistoryProvider)(nil)

// HistoryProvider serves the most recent stored quote of a product as one
// more source, labelled historical_db.
type HistoryProvider struct {
	store    domrepo.QuoteStore
	lookback time.Duration
	now      func() time.Time
}

func NewHistoryProvider(store domrepo.QuoteStore, lookback time.Duration) *HistoryProvider {
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}
	return &HistoryProvider{store: store, lookback: lookback, now: time.Now}
}

func (p *HistoryProvider) Name() string { return models.SourceHistoricalDB }

func (p *HistoryProvider) Fetch(ctx context.Context, productKey string) (*models.Quote, error) {
	quotes, err := p.store.LatestQuotes(ctx, productKey, p.now().Add(-p.lookback))
	if err != nil {
		return nil, fmt.Errorf("historical quotes: %w", err)
	}
	var latest *models.Quote
	for i := range quotes {
		q := quotes[i]
		if q.Source == models.SourceHistoricalDB {
			continue
		}
		if latest == nil || q.AsOf.After(latest.AsOf) {
			latest = &q
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	out.Meta = map[string]any{models.MetaOriginSource: latest.Source}
	out.Source = models.SourceHistoricalDB
	out.SourceTrust = 0
	return &out, nil
}
