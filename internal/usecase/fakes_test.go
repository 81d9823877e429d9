package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
)

func quote(source string, price string) models.Quote {
	return models.Quote{
		ProductKey:  "tomato",
		UnitPrice:   decimal.RequireFromString(price),
		Currency:    models.CurrencyTRY,
		Unit:        "kg",
		Source:      source,
		AsOf:        time.Now().Add(-time.Hour),
		StockStatus: models.StockInStock,
	}
}

func dailyHistory(days int, start float64, step float64) []models.PricePoint {
	out := make([]models.PricePoint, days)
	now := time.Now().UTC()
	for i := 0; i < days; i++ {
		out[i] = models.PricePoint{
			Date:  now.AddDate(0, 0, i-days),
			Price: start + float64(i)*step,
		}
	}
	return out
}

type fakeProvider struct {
	name  string
	q     *models.Quote
	err   error
	delay time.Duration
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Fetch(ctx context.Context, _ string) (*models.Quote, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.q, p.err
}

type fakeSource struct {
	quotes []models.Quote
	calls  atomic.Int32
}

func (s *fakeSource) Fetch(context.Context, string) FanoutResult {
	s.calls.Add(1)
	return FanoutResult{Quotes: append([]models.Quote(nil), s.quotes...)}
}

type fakeStore struct {
	mu       sync.Mutex
	saved    []models.Quote
	fusions  []models.FusedPrice
	latest   []models.Quote
	history  []models.PricePoint
	stock    []models.StockObservation
	popular  []string
	saveErr  error
	latestN  int
	popularN int
}

func (s *fakeStore) Init(context.Context) error   { return nil }
func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

func (s *fakeStore) SaveQuotes(_ context.Context, qs []models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, qs...)
	return nil
}

func (s *fakeStore) SaveFusion(_ context.Context, fp models.FusedPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fusions = append(s.fusions, fp)
	return nil
}

func (s *fakeStore) LatestQuotes(context.Context, string, time.Time) ([]models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestN++
	return s.latest, nil
}

func (s *fakeStore) PriceHistory(context.Context, string, time.Time, time.Time) ([]models.PricePoint, error) {
	return s.history, nil
}

func (s *fakeStore) StockHistory(context.Context, string, time.Time, time.Time) ([]models.StockObservation, error) {
	return s.stock, nil
}

func (s *fakeStore) PopularProducts(_ context.Context, _ time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.popularN++
	if limit < len(s.popular) {
		return s.popular[:limit], nil
	}
	return s.popular, nil
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []models.FusedPrice
}

func (p *recordingPublisher) PublishFused(_ context.Context, fp models.FusedPrice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, fp)
	return nil
}

type queuedMessage struct {
	msgType string
	payload interface{}
}

type recordingQueue struct {
	mu   sync.Mutex
	msgs []queuedMessage
	err  error
}

func (q *recordingQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, queuedMessage{msgType: msgType, payload: payload})
	return nil
}

type recordingRefresher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (r *recordingRefresher) Refresh(_ context.Context, key string) (models.FusedPrice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	if r.err != nil {
		return models.FusedPrice{}, r.err
	}
	return models.FusedPrice{ProductKey: key}, nil
}

var errBoom = errors.New("boom")

type recordingMetrics struct {
	domrepo.NopMetrics
	mu         sync.Mutex
	rejections []string
}

func (m *recordingMetrics) RecordRejection(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, reason)
}
