package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
	"PriceFusion/pkg/logger"
)

// FanoutResult holds whatever quotes arrived before the deadline and the
// reason each silent provider gave.
type FanoutResult struct {
	Quotes []models.Quote
	Errors map[string]string
}

// ProviderFanout queries every provider in parallel. A failing or slow
// provider never fails the batch.
type ProviderFanout struct {
	providers       []domrepo.QuoteProvider
	providerTimeout time.Duration
	deadline        time.Duration
	metrics         domrepo.Metrics
	log             *logger.Logger
}

func NewProviderFanout(providers []domrepo.QuoteProvider, providerTimeout, deadline time.Duration, metrics domrepo.Metrics, log *logger.Logger) *ProviderFanout {
	if providerTimeout <= 0 {
		providerTimeout = 3 * time.Second
	}
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProviderFanout{
		providers:       providers,
		providerTimeout: providerTimeout,
		deadline:        deadline,
		metrics:         metrics,
		log:             log.With("fanout"),
	}
}

// Providers lists the registered provider names.
func (f *ProviderFanout) Providers() []string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return names
}

func (f *ProviderFanout) Fetch(ctx context.Context, productKey string) FanoutResult {
	ctx, cancel := context.WithTimeout(ctx, f.deadline)
	defer cancel()

	type item struct {
		name string
		q    *models.Quote
		err  error
	}
	ch := make(chan item, len(f.providers))
	var wg sync.WaitGroup
	for _, p := range f.providers {
		wg.Add(1)
		go func(p domrepo.QuoteProvider) {
			defer wg.Done()
			q, err := f.fetchOne(ctx, p, productKey)
			ch <- item{name: p.Name(), q: q, err: err}
		}(p)
	}
	go func() { wg.Wait(); close(ch) }()

	res := FanoutResult{Errors: map[string]string{}}
	answered := make(map[string]bool, len(f.providers))
	take := func(it item) {
		answered[it.name] = true
		switch {
		case it.err != nil:
			res.Errors[it.name] = it.err.Error()
			f.metrics.RecordProvider(it.name, outcome(it.err))
		case it.q == nil:
			res.Errors[it.name] = "no quote"
			f.metrics.RecordProvider(it.name, "empty")
		default:
			res.Quotes = append(res.Quotes, *it.q)
			f.metrics.RecordProvider(it.name, "ok")
		}
	}
	for {
		select {
		case it, ok := <-ch:
			if !ok {
				return f.finish(res)
			}
			take(it)
		case <-ctx.Done():
			// results that made it in time win over the deadline
			for drained := false; !drained; {
				select {
				case it, ok := <-ch:
					if ok {
						take(it)
					} else {
						drained = true
					}
				default:
					drained = true
				}
			}
			// stragglers already hold their own timeout; report them as missing
			for _, p := range f.providers {
				if !answered[p.Name()] {
					res.Errors[p.Name()] = "deadline exceeded"
					f.metrics.RecordProvider(p.Name(), "timeout")
				}
			}
			return f.finish(res)
		}
	}
}

func (f *ProviderFanout) fetchOne(ctx context.Context, p domrepo.QuoteProvider, productKey string) (q *models.Quote, err error) {
	ctx, cancel := context.WithTimeout(ctx, f.providerTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	start := time.Now()
	q, err = p.Fetch(ctx, productKey)
	f.metrics.RecordLatency("provider_"+p.Name(), time.Since(start).Seconds())
	if err != nil {
		f.log.Debug("provider failed", logger.String("provider", p.Name()), logger.String("product", productKey), logger.Error(err))
		return nil, err
	}
	if q == nil {
		return nil, nil
	}
	out := *q
	if out.Source == "" {
		out.Source = p.Name()
	}
	if out.ProductKey == "" {
		out.ProductKey = productKey
	}
	return &out, nil
}

// finish drops stored quotes whose origin source also answered live, so one
// observation never counts as two sources, and orders quotes by source so
// fusion input is deterministic.
func (f *ProviderFanout) finish(res FanoutResult) FanoutResult {
	live := make(map[string]bool, len(res.Quotes))
	for _, q := range res.Quotes {
		if q.Source != models.SourceHistoricalDB {
			live[q.Source] = true
		}
	}
	kept := res.Quotes[:0]
	for _, q := range res.Quotes {
		if q.Source == models.SourceHistoricalDB {
			if origin, _ := q.Meta[models.MetaOriginSource].(string); live[origin] {
				res.Errors[q.Source] = "duplicate of live " + origin
				continue
			}
		}
		kept = append(kept, q)
	}
	res.Quotes = kept
	sort.SliceStable(res.Quotes, func(i, j int) bool { return res.Quotes[i].Source < res.Quotes[j].Source })
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res
}

func outcome(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
