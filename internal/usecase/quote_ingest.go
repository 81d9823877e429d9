package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
	"PriceFusion/internal/middleware"
	pkgkafka "PriceFusion/pkg/kafka"
	"PriceFusion/pkg/logger"
)

// QuoteProcessor is the ingest pipeline seen from the handler.
type QuoteProcessor interface {
	Process(ctx context.Context, q models.Quote) error
}

// QuoteIngestHandler decodes raw quotes from Kafka and hands them to the
// ingest pipeline. Only undecodable payloads are returned as errors so the
// consumer parks them in the DLQ; rejected, throttled and buffered quotes
// are acknowledged.
type QuoteIngestHandler struct {
	topic    string
	pipeline QuoteProcessor
	metrics  domrepo.Metrics
	log      *logger.Logger
}

var _ pkgkafka.MessageHandler = (*QuoteIngestHandler)(nil)

func NewQuoteIngestHandler(topic string, pipeline QuoteProcessor, metrics domrepo.Metrics, log *logger.Logger) *QuoteIngestHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &QuoteIngestHandler{topic: topic, pipeline: pipeline, metrics: metrics, log: log.With("quote-ingest")}
}

func (h *QuoteIngestHandler) Topic() string { return h.topic }

func (h *QuoteIngestHandler) Handle(ctx context.Context, key, value []byte) error {
	var q models.Quote
	if err := json.Unmarshal(value, &q); err != nil {
		h.metrics.RecordError("ingest_decode")
		return fmt.Errorf("decode quote: %w", err)
	}
	if q.ProductKey == "" {
		q.ProductKey = string(key)
	}

	err := h.pipeline.Process(ctx, q)
	switch {
	case err == nil:
		h.metrics.RecordProvider(q.Source, "ingested")
	case errors.Is(err, middleware.ErrThrottled):
		h.metrics.RecordProvider(q.Source, "throttled")
	case errors.Is(err, middleware.ErrRejected):
		h.log.Debug("quote rejected",
			logger.String("product", q.ProductKey),
			logger.String("source", q.Source),
			logger.Error(err),
		)
		h.metrics.RecordProvider(q.Source, "rejected")
	default:
		h.log.Warn("quote not stored",
			logger.String("product", q.ProductKey),
			logger.String("source", q.Source),
			logger.String("trace_id", pkgkafka.TraceID(ctx)),
			logger.Error(err),
		)
		h.metrics.RecordProvider(q.Source, "ingest_failed")
	}
	return nil
}
