package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
	"PriceFusion/internal/service/ratelimit"
	"PriceFusion/internal/services/fusion"
	"PriceFusion/pkg/logger"
)

// ErrThrottled is returned when a (product, source) pair reports faster
// than the configured interval. The quote is dropped.
var ErrThrottled = errors.New("quote throttled")

// ErrRejected wraps quotes the validator refused.
var ErrRejected = errors.New("quote rejected")

// QuoteValidator decides whether a quote may be stored.
type QuoteValidator interface {
	Validate(q models.Quote) (models.Quote, *models.Rejection)
}

// QuoteSink receives accepted quotes.
type QuoteSink interface {
	SaveQuotes(ctx context.Context, quotes []models.Quote) error
}

// IngestPipeline sits between the Kafka consumer and storage. It checks the
// shape of each quote, throttles chatty sources and keeps a bounded buffer
// of quotes the sink refused, retrying them in the background.
type IngestPipeline struct {
	sink      QuoteSink
	validator QuoteValidator
	metrics   domrepo.Metrics
	log       *logger.Logger
	throttle  *ratelimit.Limiter

	buf        chan models.Quote
	retryEvery time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

type PipelineOption func(*IngestPipeline)

// WithMinInterval throttles each (product, source) pair to one quote per d.
func WithMinInterval(d time.Duration) PipelineOption {
	return func(p *IngestPipeline) {
		if d > 0 {
			p.throttle = ratelimit.New(float64(time.Second)/float64(d), 1)
		}
	}
}

func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.buf = make(chan models.Quote, n)
		}
	}
}

// WithRetryEvery sets the base delay before a refused quote is retried.
func WithRetryEvery(d time.Duration) PipelineOption {
	return func(p *IngestPipeline) {
		if d > 0 {
			p.retryEvery = d
		}
	}
}

// WithValidator replaces the validator built from default fusion settings.
func WithValidator(v QuoteValidator) PipelineOption {
	return func(p *IngestPipeline) {
		if v != nil {
			p.validator = v
		}
	}
}

func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *IngestPipeline) {
		if l != nil {
			p.log = l.With("ingest")
		}
	}
}

func NewIngestPipeline(sink QuoteSink, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	p := &IngestPipeline{
		sink:       sink,
		validator:  fusion.NewValidator(fusion.DefaultConfig(), nil),
		metrics:    metrics,
		log:        logger.Nop(),
		buf:        make(chan models.Quote, 1000),
		retryEvery: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates, throttles and forwards q. Refused quotes return an error
// wrapping ErrRejected. A sink failure buffers the quote for retry and is
// still reported to the caller.
func (p *IngestPipeline) Process(ctx context.Context, q models.Quote) error {
	start := time.Now()
	if err := checkIdentity(q); err != nil {
		p.metrics.RecordError("ingest_invalid")
		return err
	}
	q, rej := p.validator.Validate(q)
	if rej != nil {
		p.metrics.RecordRejection(rej.Reason)
		return fmt.Errorf("%w: %s (%s)", ErrRejected, rej.Reason, rej.Detail)
	}
	if p.throttle != nil && !p.throttle.Allow(q.ProductKey+"|"+q.Source) {
		p.metrics.RecordError("ingest_throttled")
		return ErrThrottled
	}
	if err := p.sink.SaveQuotes(ctx, []models.Quote{q}); err != nil {
		p.metrics.RecordError("ingest_sink")
		select {
		case p.buf <- q:
		default:
			p.metrics.RecordError("ingest_buffer_full")
		}
		return fmt.Errorf("ingest sink: %w", err)
	}
	p.metrics.RecordLatency("ingest", time.Since(start).Seconds())
	return nil
}

// Buffered reports how many quotes wait for a retry.
func (p *IngestPipeline) Buffered() int { return len(p.buf) }

// Start launches the background retry loop.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.started = true
	go p.flush(ctx)
}

// Stop ends the retry loop; buffered quotes are left in memory.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.cancel()
	done := p.done
	p.mu.Unlock()
	<-done
}

func (p *IngestPipeline) flush(ctx context.Context) {
	defer close(p.done)
	backoff := p.retryEvery
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-p.buf:
			if err := p.sink.SaveQuotes(ctx, []models.Quote{q}); err != nil {
				p.log.Warn("retry of buffered quote failed",
					logger.String("product", q.ProductKey),
					logger.String("source", q.Source),
					logger.Error(err),
				)
				select {
				case p.buf <- q:
				default:
					p.metrics.RecordError("ingest_buffer_drop")
				}
				if backoff < 8*p.retryEvery {
					backoff *= 2
				}
				t := time.NewTimer(backoff)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
				continue
			}
			backoff = p.retryEvery
		}
	}
}

// checkIdentity covers what the validator does not: a quote must say which
// product and source it belongs to.
func checkIdentity(q models.Quote) error {
	switch {
	case q.ProductKey == "":
		return errors.New("quote: product_key empty")
	case q.Source == "":
		return errors.New("quote: source empty")
	}
	return nil
}
