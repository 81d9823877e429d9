package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/middleware"
)

type stubProcessor struct {
	got []models.Quote
	err error
}

func (p *stubProcessor) Process(_ context.Context, q models.Quote) error {
	p.got = append(p.got, q)
	return p.err
}

func TestQuoteIngestHandler_Handle(t *testing.T) {
	p := &stubProcessor{}
	h := NewQuoteIngestHandler("quotes.raw", p, nil, nil)
	assert.Equal(t, "quotes.raw", h.Topic())

	err := h.Handle(context.Background(), []byte("tomato"),
		[]byte(`{"unit_price":"24.5","currency":"TRY","source":"web_scrape","as_of":"2025-03-01T10:00:00Z"}`))
	require.NoError(t, err)
	require.Len(t, p.got, 1)
	assert.Equal(t, "tomato", p.got[0].ProductKey)
	assert.Equal(t, "24.5", p.got[0].UnitPrice.String())
}

func TestQuoteIngestHandler_DecodeErrorIsReturned(t *testing.T) {
	h := NewQuoteIngestHandler("quotes.raw", &stubProcessor{}, nil, nil)
	assert.Error(t, h.Handle(context.Background(), nil, []byte(`{"unit_price":`)))
}

func TestQuoteIngestHandler_PipelineRejectionsAreAcked(t *testing.T) {
	for _, perr := range []error{middleware.ErrThrottled, fmt.Errorf("%w: stale", middleware.ErrRejected), errBoom} {
		h := NewQuoteIngestHandler("quotes.raw", &stubProcessor{err: perr}, nil, nil)
		assert.NoError(t, h.Handle(context.Background(), nil, []byte(`{"product_key":"rice"}`)))
	}
}
