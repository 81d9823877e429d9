package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
)

type flakySink struct {
	mu    sync.Mutex
	fail  bool
	saved []models.Quote
}

func (s *flakySink) SaveQuotes(_ context.Context, qs []models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("storage unavailable")
	}
	s.saved = append(s.saved, qs...)
	return nil
}

func (s *flakySink) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func (s *flakySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func quote(product, source string) models.Quote {
	return models.Quote{
		ProductKey: product,
		Source:     source,
		UnitPrice:  decimal.NewFromInt(10),
		Currency:   models.CurrencyTRY,
		AsOf:       time.Now(),
	}
}

func TestIngestPipeline_RejectsMalformed(t *testing.T) {
	p := NewIngestPipeline(&flakySink{}, nil)
	bad := quote("milk", "a")
	bad.UnitPrice = decimal.Zero
	assert.Error(t, p.Process(context.Background(), bad))

	noSource := quote("milk", "")
	assert.Error(t, p.Process(context.Background(), noSource))
}

type rejectionCounter struct {
	domrepo.NopMetrics
	mu      sync.Mutex
	reasons []string
}

func (m *rejectionCounter) RecordRejection(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = append(m.reasons, reason)
}

func TestIngestPipeline_StoresOnlyValidatedQuotes(t *testing.T) {
	future := quote("milk", "a")
	future.AsOf = time.Now().Add(48 * time.Hour)
	unknown := quote("milk", "b")
	unknown.Currency = "XXX"
	overTrusted := quote("milk", "c")
	overTrusted.SourceTrust = 1.5
	stale := quote("milk", "d")
	stale.AsOf = time.Now().Add(-60 * 24 * time.Hour)

	sink := &flakySink{}
	m := &rejectionCounter{}
	p := NewIngestPipeline(sink, m)
	for _, q := range []models.Quote{future, unknown, overTrusted, stale} {
		assert.ErrorIs(t, p.Process(context.Background(), q), ErrRejected)
	}
	require.NoError(t, p.Process(context.Background(), quote("milk", "e")))

	assert.Equal(t, 1, sink.count())
	assert.Equal(t, []string{
		models.RejectFutureTimestamp,
		models.RejectUnknownCurrency,
		models.RejectTrustOutOfRange,
		models.RejectStale,
	}, m.reasons)
}

func TestIngestPipeline_ThrottlesPerProductAndSource(t *testing.T) {
	sink := &flakySink{}
	p := NewIngestPipeline(sink, nil, WithMinInterval(time.Hour))

	require.NoError(t, p.Process(context.Background(), quote("milk", "a")))
	assert.ErrorIs(t, p.Process(context.Background(), quote("milk", "a")), ErrThrottled)
	require.NoError(t, p.Process(context.Background(), quote("milk", "b")))
	require.NoError(t, p.Process(context.Background(), quote("bread", "a")))
	assert.Equal(t, 3, sink.count())
}

func TestIngestPipeline_BuffersAndRetries(t *testing.T) {
	sink := &flakySink{fail: true}
	p := NewIngestPipeline(sink, nil, WithRetryEvery(5*time.Millisecond), WithBufferSize(4))

	assert.Error(t, p.Process(context.Background(), quote("milk", "a")))
	assert.Equal(t, 1, p.Buffered())

	p.Start(context.Background())
	defer p.Stop()
	sink.setFail(false)

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 5*time.Millisecond)
}
