package usecase

import (
	"context"
	"errors"
	"time"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
	"PriceFusion/internal/domain/service"
	"PriceFusion/internal/service/accuracy"
	"PriceFusion/internal/services/analytics"
	"PriceFusion/internal/services/fusion"
	"PriceFusion/pkg/logger"
)

// QuoteSource yields quotes for one product.
type QuoteSource interface {
	Fetch(ctx context.Context, productKey string) FanoutResult
}

// PriceFusionSettings are the knobs of PriceFusionUseCase.
type PriceFusionSettings struct {
	Options     fusion.Options
	CacheTTL    time.Duration
	HistoryDays int
}

// PriceFusionUseCase serves fused prices: cache read-through, provider
// fan-out, fusion, enrichment from history, persistence and publishing.
type PriceFusionUseCase struct {
	source     QuoteSource
	engine     *fusion.Engine
	analytics  service.PriceAnalytics
	cache      domrepo.QuoteCache
	store      domrepo.Store
	tracker    *accuracy.Tracker
	publishers []domrepo.FusionPublisher
	metrics    domrepo.Metrics
	log        *logger.Logger
	cfg        PriceFusionSettings
	now        func() time.Time
}

// PriceFusionOption configures optional collaborators.
type PriceFusionOption func(*PriceFusionUseCase)

// WithStore enables history enrichment and persistence.
func WithStore(s domrepo.Store) PriceFusionOption {
	return func(uc *PriceFusionUseCase) { uc.store = s }
}

func WithPublishers(ps ...domrepo.FusionPublisher) PriceFusionOption {
	return func(uc *PriceFusionUseCase) {
		for _, p := range ps {
			if p != nil {
				uc.publishers = append(uc.publishers, p)
			}
		}
	}
}

func WithTracker(t *accuracy.Tracker) PriceFusionOption {
	return func(uc *PriceFusionUseCase) { uc.tracker = t }
}

func WithMetrics(m domrepo.Metrics) PriceFusionOption {
	return func(uc *PriceFusionUseCase) {
		if m != nil {
			uc.metrics = m
		}
	}
}

func WithLogger(l *logger.Logger) PriceFusionOption {
	return func(uc *PriceFusionUseCase) {
		if l != nil {
			uc.log = l.With("price-fusion")
		}
	}
}

func WithClock(now func() time.Time) PriceFusionOption {
	return func(uc *PriceFusionUseCase) { uc.now = now }
}

func NewPriceFusionUseCase(
	source QuoteSource,
	engine *fusion.Engine,
	an service.PriceAnalytics,
	cache domrepo.QuoteCache,
	cfg PriceFusionSettings,
	opts ...PriceFusionOption,
) *PriceFusionUseCase {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 90
	}
	uc := &PriceFusionUseCase{
		source:    source,
		engine:    engine,
		analytics: an,
		cache:     cache,
		tracker:   accuracy.NewTracker(accuracy.DefaultAlpha),
		metrics:   domrepo.NopMetrics{},
		log:       logger.Nop(),
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// GetPrice returns the cached fused price or computes a fresh one.
func (uc *PriceFusionUseCase) GetPrice(ctx context.Context, productKey string) (models.FusedPrice, error) {
	if uc.cache != nil {
		fp, ok, err := uc.cache.Get(ctx, productKey)
		if err != nil {
			uc.log.Warn("cache read failed", logger.String("product", productKey), logger.Error(err))
		}
		uc.metrics.RecordCache(ok)
		if ok {
			return fp, nil
		}
	}
	return uc.Refresh(ctx, productKey)
}

// Refresh recomputes the fused price, skipping the cache read.
func (uc *PriceFusionUseCase) Refresh(ctx context.Context, productKey string) (models.FusedPrice, error) {
	start := uc.now()
	res := uc.source.Fetch(ctx, productKey)
	for name, reason := range res.Errors {
		uc.log.Debug("provider gave no quote",
			logger.String("product", productKey),
			logger.String("provider", name),
			logger.String("reason", reason),
		)
	}

	opts := uc.cfg.Options
	if opts.UseDynamicTrust && uc.tracker != nil {
		opts.Accuracy = uc.tracker.Snapshot()
	}
	fp, err := uc.fuse(res.Quotes, opts)
	if err != nil {
		uc.log.Warn("fusion failed",
			logger.String("product", productKey),
			logger.Int("quotes", len(res.Quotes)),
			logger.Error(err),
		)
		return models.FusedPrice{}, err
	}
	fp.ProductKey = productKey

	uc.enrich(ctx, &fp)
	uc.observe(fp, res.Quotes)
	uc.persist(ctx, res.Quotes, fp)

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, productKey, fp, uc.cfg.CacheTTL); err != nil {
			uc.log.Warn("cache write failed", logger.String("product", productKey), logger.Error(err))
		}
	}
	uc.publish(ctx, fp)
	uc.metrics.RecordLatency("refresh", uc.now().Sub(start).Seconds())
	return fp, nil
}

// FuseQuotes fuses caller-supplied quotes without fan-out, caching or
// persistence.
func (uc *PriceFusionUseCase) FuseQuotes(_ context.Context, productKey string, quotes []models.Quote, opts fusion.Options) (models.FusedPrice, error) {
	in := make([]models.Quote, len(quotes))
	for i, q := range quotes {
		if q.ProductKey == "" {
			q.ProductKey = productKey
		}
		in[i] = q
	}
	if opts.UseDynamicTrust && opts.Accuracy == nil && uc.tracker != nil {
		opts.Accuracy = uc.tracker.Snapshot()
	}
	fp, err := uc.fuse(in, opts)
	if err != nil {
		return models.FusedPrice{}, err
	}
	if productKey != "" {
		fp.ProductKey = productKey
	}
	return fp, nil
}

// DefaultOptions returns the configured fusion switches.
func (uc *PriceFusionUseCase) DefaultOptions() fusion.Options { return uc.cfg.Options }

// SourceAccuracy exposes the tracker state.
func (uc *PriceFusionUseCase) SourceAccuracy() map[string]models.SourceAccuracy {
	if uc.tracker == nil {
		return nil
	}
	return uc.tracker.Snapshot()
}

func (uc *PriceFusionUseCase) fuse(quotes []models.Quote, opts fusion.Options) (models.FusedPrice, error) {
	fp, err := uc.engine.Fuse(quotes, opts)
	if err != nil {
		var fe *fusion.Error
		if errors.As(err, &fe) {
			for _, r := range fe.Rejections {
				uc.metrics.RecordRejection(r.Reason)
			}
		}
		if errors.Is(err, fusion.ErrInsufficientSources) {
			uc.metrics.RecordFusion("insufficient_sources")
		} else {
			uc.metrics.RecordFusion("failed")
		}
		return fp, err
	}
	for _, r := range fp.Rejections {
		uc.metrics.RecordRejection(r.Reason)
	}
	uc.metrics.RecordOutliers(len(fp.OutliersRemoved))
	uc.metrics.RecordFusion("ok")
	uc.metrics.RecordLastPrice(fp.ProductKey, fp.Price.InexactFloat64())
	return fp, nil
}

// enrich attaches volatility and forecast when enough history exists.
func (uc *PriceFusionUseCase) enrich(ctx context.Context, fp *models.FusedPrice) {
	if uc.store == nil || uc.analytics == nil {
		return
	}
	to := uc.now()
	from := to.AddDate(0, 0, -uc.cfg.HistoryDays)
	history, err := uc.store.PriceHistory(ctx, fp.ProductKey, from, to)
	if err != nil {
		uc.log.Warn("price history unavailable", logger.String("product", fp.ProductKey), logger.Error(err))
		return
	}
	if v, err := uc.analytics.AnalyzeVolatility(history); err == nil {
		fp.Volatility = &v
	} else if !errors.Is(err, analytics.ErrInsufficientHistory) {
		uc.log.Warn("volatility failed", logger.String("product", fp.ProductKey), logger.Error(err))
	}
	if f, err := uc.analytics.ForecastNext(history); err == nil {
		fp.Forecast = &f
	} else if !errors.Is(err, analytics.ErrInsufficientHistory) {
		uc.log.Warn("forecast failed", logger.String("product", fp.ProductKey), logger.Error(err))
	}
}

func (uc *PriceFusionUseCase) observe(fp models.FusedPrice, quotes []models.Quote) {
	if uc.tracker == nil {
		return
	}
	var outliers []models.Quote
	if len(fp.OutliersRemoved) > 0 {
		removed := make(map[string]struct{}, len(fp.OutliersRemoved))
		for _, s := range fp.OutliersRemoved {
			removed[s] = struct{}{}
		}
		for _, q := range quotes {
			if _, ok := removed[q.Source]; ok {
				outliers = append(outliers, q)
			}
		}
	}
	uc.tracker.ObserveFusion(fp, outliers)
}

func (uc *PriceFusionUseCase) persist(ctx context.Context, quotes []models.Quote, fp models.FusedPrice) {
	if uc.store == nil {
		return
	}
	fresh := make([]models.Quote, 0, len(quotes))
	for _, q := range quotes {
		// stored history is already in the table
		if q.Source != models.SourceHistoricalDB {
			fresh = append(fresh, q)
		}
	}
	if err := uc.store.SaveQuotes(ctx, fresh); err != nil {
		uc.log.Warn("persist quotes failed", logger.String("product", fp.ProductKey), logger.Error(err))
	}
	if err := uc.store.SaveFusion(ctx, fp); err != nil {
		uc.log.Warn("persist fusion failed", logger.String("product", fp.ProductKey), logger.Error(err))
	}
}

func (uc *PriceFusionUseCase) publish(ctx context.Context, fp models.FusedPrice) {
	for _, p := range uc.publishers {
		if err := p.PublishFused(ctx, fp); err != nil {
			uc.log.Warn("publish fused price failed", logger.String("product", fp.ProductKey), logger.Error(err))
			uc.metrics.RecordError("publish")
		}
	}
}
