package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/domain/repository"
	"PriceFusion/internal/handler/api"
	mid "PriceFusion/internal/middleware"
	internalrepo "PriceFusion/internal/repository"
	"PriceFusion/internal/service/accuracy"
	"PriceFusion/internal/service/cache"
	imetrics "PriceFusion/internal/service/metrics"
	"PriceFusion/internal/service/normalizer"
	"PriceFusion/internal/service/provider"
	"PriceFusion/internal/service/ratelimit"
	"PriceFusion/internal/service/stream"
	"PriceFusion/internal/services/analytics"
	"PriceFusion/internal/services/fusion"
	"PriceFusion/internal/usecase"
	pkgch "PriceFusion/pkg/clickhouse"
	"PriceFusion/pkg/config"
	xhttp "PriceFusion/pkg/http"
	pkgkafka "PriceFusion/pkg/kafka"
	"PriceFusion/pkg/logger"
	"PriceFusion/pkg/metrics"
	"PriceFusion/pkg/queue"
	"PriceFusion/pkg/scheduler"
	"PriceFusion/pkg/server"
)

const refreshTask = "refresh-popular-products"

// ProvideLogger builds the root logger from the log section. With the
// collector enabled, aggregated error logs are shipped to kafka.logs_topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	l, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Log.Collector.Enabled || producer == nil {
		return l, func() {}, nil
	}
	l.AddCollector(&logger.CollectionConfig{
		TimeInterval:   cfg.Log.Collector.FlushInterval,
		CountThreshold: cfg.Log.Collector.MaxLogs,
		Topic:          cfg.Kafka.LogsTopic,
		Service:        "pricefusion",
		Publisher:      producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideRedisClient returns nil when neither the cache nor the refresh
// queue needs Redis.
func ProvideRedisClient(cfg *config.Config) (redis.UniversalClient, func()) {
	if cfg.Cache.Backend == "memory" && !(cfg.Refresh.Enabled && cfg.Refresh.UseQueue) {
		return nil, func() {}
	}
	cli := cache.NewRedisClient(cache.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	return cli, func() { _ = cli.Close() }
}

// ProvideStore opens the configured history store and ensures its schema.
// storage.backend=none yields a nil store; history features then degrade.
func ProvideStore(cfg *config.Config, log *logger.Logger) (repository.Store, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var (
		store *internalrepo.QuoteStore
		err   error
	)
	switch cfg.Storage.Backend {
	case "none":
		return nil, func() {}, nil
	case "clickhouse":
		store, err = openClickHouse(ctx, cfg)
	case "postgres":
		store, err = internalrepo.OpenPostgres(ctx, cfg.Postgres.DSN)
	default:
		store, err = internalrepo.OpenSQLite(ctx, cfg.SQLite.Path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}
	store.SetLogger(log)
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("%s schema: %w", cfg.Storage.Backend, err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Warn("store close failed", logger.Error(err))
		}
	}, nil
}

func openClickHouse(ctx context.Context, cfg *config.Config) (*internalrepo.QuoteStore, error) {
	// the database must exist before the client can select it
	boot, err := pkgch.NewClient(ctx,
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase("default"),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, err
	}
	err = boot.InitSchema(ctx, []string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database})
	_ = boot.Close()
	if err != nil {
		return nil, err
	}

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, err
	}
	return internalrepo.NewClickHouseStore(client), nil
}

// ProvideTTLCache is the in-process cache tier; its sweeper runs with the app.
func ProvideTTLCache() *cache.TTLCache {
	return cache.NewTTLCache()
}

// ProvideQuoteCache selects memory, redis or memory-in-front-of-redis.
func ProvideQuoteCache(cfg *config.Config, mem *cache.TTLCache, rc redis.UniversalClient) repository.QuoteCache {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(rc)
	case "layered":
		return cache.NewLayeredCache(mem, cache.NewRedisCache(rc), cfg.Cache.L1TTL)
	default:
		return mem
	}
}

// ProvideKafkaProducer returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Producer.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.Producer.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideQuoteProviders builds one HTTP provider per configured source plus
// the stored-history provider when a store is available.
func ProvideQuoteProviders(cfg *config.Config, store repository.Store) []repository.QuoteProvider {
	out := make([]repository.QuoteProvider, 0, len(cfg.Providers)+1)
	for _, p := range cfg.Providers {
		out = append(out, provider.NewHTTPProvider(provider.HTTPConfig{
			Name:     p.Name,
			URL:      p.URL,
			Trust:    p.Trust,
			Timeout:  p.Timeout,
			Attempts: p.Attempts,
		}))
	}
	if store != nil && cfg.Fanout.UseHistory {
		out = append(out, provider.NewHistoryProvider(store, cfg.Fusion.MaxPriceAge))
	}
	return out
}

func ProvideFanout(cfg *config.Config, providers []repository.QuoteProvider, m repository.Metrics, log *logger.Logger) *usecase.ProviderFanout {
	return usecase.NewProviderFanout(providers, cfg.Fanout.ProviderTimeout, cfg.Fanout.Deadline, m, log)
}

// ProvideFusionEngine maps the fusion section onto the engine config.
// Configured trust priors override the built-in ones per source.
func ProvideFusionEngine(cfg *config.Config) *fusion.Engine {
	fc := fusion.DefaultConfig()
	fc.MaxPriceAge = cfg.Fusion.MaxPriceAge
	fc.DefaultTrust = cfg.Fusion.DefaultTrust
	fc.MADThreshold = cfg.Fusion.MADThreshold
	fc.MinSourceCount = cfg.Fusion.MinSourceCount
	if len(cfg.Fusion.Currencies) > 0 {
		fc.Currencies = make([]models.Currency, len(cfg.Fusion.Currencies))
		for i, c := range cfg.Fusion.Currencies {
			fc.Currencies[i] = models.Currency(c)
		}
	}
	priors := make(map[string]float64, len(fc.TrustPriors)+len(cfg.Fusion.TrustPriors))
	for k, v := range fc.TrustPriors {
		priors[k] = v
	}
	for k, v := range cfg.Fusion.TrustPriors {
		priors[k] = v
	}
	fc.TrustPriors = priors
	return fusion.NewEngine(fc)
}

func ProvideAnalyzer(cfg *config.Config) *analytics.Analyzer {
	ac := analytics.DefaultConfig()
	ac.LowCV = cfg.Analytics.LowCV
	ac.HighCV = cfg.Analytics.HighCV
	ac.TrendNoise = cfg.Analytics.TrendNoise
	ac.ForecastWindow = cfg.Analytics.ForecastWindow
	ac.Risk.MaxPriceAge = cfg.Fusion.MaxPriceAge
	for k, v := range cfg.Analytics.RiskWeights {
		ac.Risk.Weights[k] = v
	}
	return analytics.NewAnalyzer(ac)
}

func ProvideTracker(cfg *config.Config) *accuracy.Tracker {
	return accuracy.NewTracker(cfg.Fusion.AccuracyAlpha)
}

func ProvideHub(log *logger.Logger) *stream.Hub {
	return stream.NewHub(log)
}

// ProvideFusedPublishers collects downstream sinks for fused prices: the
// websocket hub always, Kafka when enabled.
func ProvideFusedPublishers(cfg *config.Config, hub *stream.Hub, producer *pkgkafka.Producer) []repository.FusionPublisher {
	pubs := []repository.FusionPublisher{hub}
	if producer != nil {
		pubs = append(pubs, internalrepo.NewKafkaFusionPublisher(producer, cfg.Kafka.FusedTopic))
	}
	return pubs
}

func ProvidePriceFusion(
	cfg *config.Config,
	fanout *usecase.ProviderFanout,
	engine *fusion.Engine,
	an *analytics.Analyzer,
	qc repository.QuoteCache,
	store repository.Store,
	tracker *accuracy.Tracker,
	pubs []repository.FusionPublisher,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.PriceFusionUseCase {
	return usecase.NewPriceFusionUseCase(fanout, engine, an, qc,
		usecase.PriceFusionSettings{
			Options: fusion.Options{
				EnableValidation:  cfg.Fusion.EnableValidation,
				EnableBrandPrices: cfg.Fusion.EnableBrandPrices,
				UseDynamicTrust:   cfg.Fusion.UseDynamicTrust,
			},
			CacheTTL:    cfg.Cache.TTL,
			HistoryDays: cfg.Analytics.HistoryDays,
		},
		usecase.WithStore(store),
		usecase.WithTracker(tracker),
		usecase.WithPublishers(pubs...),
		usecase.WithMetrics(m),
		usecase.WithLogger(log),
	)
}

func ProvideRisk(fanout *usecase.ProviderFanout, engine *fusion.Engine, an *analytics.Analyzer, store repository.Store, m repository.Metrics, log *logger.Logger) *usecase.RiskUseCase {
	return usecase.NewRiskUseCase(fanout, engine.Validator(), an, store, m, log)
}

// ProvideNormalizer uses the external service when configured.
func ProvideNormalizer(cfg *config.Config) repository.ProductNormalizer {
	canonical := normalizer.NewCanonical(cfg.Normalizer.Aliases)
	if cfg.Normalizer.URL == "" {
		return canonical
	}
	return normalizer.NewHTTPNormalizer(cfg.Normalizer.URL, cfg.Normalizer.Timeout, canonical)
}

func ProvidePacer(cfg *config.Config) *ratelimit.Pacer {
	return ratelimit.NewPacer(cfg.Refresh.MinDelay)
}

// ProvideRefreshQueue returns nil unless queued refreshes are enabled.
func ProvideRefreshQueue(cfg *config.Config, rc redis.UniversalClient, uc *usecase.PriceFusionUseCase, pacer *ratelimit.Pacer, log *logger.Logger) *queue.RedisQueue {
	if !cfg.Refresh.Enabled || !cfg.Refresh.UseQueue || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(log, queue.Config{
		Workers:    cfg.Refresh.Workers,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, rc, queue.WithKeyPrefix(cfg.Refresh.Queue))
	q.RegisterJob(usecase.NewRefreshProductJob(uc, pacer, log))
	return q
}

// ProvideScheduler returns nil when scheduled refresh is disabled.
func ProvideScheduler(
	cfg *config.Config,
	uc *usecase.PriceFusionUseCase,
	store repository.Store,
	q *queue.RedisQueue,
	pacer *ratelimit.Pacer,
	log *logger.Logger,
) (*scheduler.Scheduler, error) {
	if !cfg.Refresh.Enabled {
		return nil, nil
	}
	var publisher queue.Publisher
	if q != nil {
		publisher = q
	}
	var popular usecase.PopularProducts
	if store != nil {
		popular = store
	}
	job := usecase.NewRefreshJob(uc, popular, publisher, pacer, usecase.RefreshSettings{
		Products: cfg.Refresh.Products,
		Popular:  cfg.Refresh.Popular,
		Lookback: cfg.Fusion.MaxPriceAge,
	}, log)

	s := scheduler.New(log, 0)
	if err := s.Add(refreshTask, cfg.Refresh.Schedule, job.Run); err != nil {
		return nil, fmt.Errorf("schedule refresh: %w", err)
	}
	return s, nil
}

// ProvideIngestPipeline returns nil unless kafka ingest has somewhere to
// store quotes.
func ProvideIngestPipeline(cfg *config.Config, store repository.Store, engine *fusion.Engine, m repository.Metrics, log *logger.Logger) *mid.IngestPipeline {
	if !cfg.Kafka.Enabled || store == nil {
		return nil
	}
	return mid.NewIngestPipeline(store, m,
		mid.WithMinInterval(cfg.Kafka.Ingest.MinInterval),
		mid.WithBufferSize(cfg.Kafka.Ingest.BufferSize),
		mid.WithRetryEvery(cfg.Kafka.Ingest.RetryEvery),
		mid.WithValidator(engine.Validator()),
		mid.WithLogger(log),
	)
}

// ProvideKafkaConsumer creates the quote consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, pipeline *mid.IngestPipeline, m repository.Metrics, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if pipeline == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewQuoteIngestHandler(cfg.Kafka.QuotesTopic, pipeline, m, log))
	consumer.SetHook(pkgkafka.HookChain{pkgkafka.TraceHook})
	return consumer, nil
}

// ProvideHTTPHandler groups every route set of the API.
func ProvideHTTPHandler(
	log *logger.Logger,
	prices *usecase.PriceFusionUseCase,
	risk *usecase.RiskUseCase,
	norm repository.ProductNormalizer,
	hub *stream.Hub,
) xhttp.Handler {
	return xhttp.Handlers{
		api.NewPriceHandler(log, prices),
		api.NewRiskHandler(log, risk),
		api.NewNormalizeHandler(log, norm),
		api.NewStreamHandler(log, hub),
	}
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, log *logger.Logger) *xhttp.Server {
	imetrics.Register()
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(log),
		xhttp.WithRateLimit(ratelimit.New(cfg.Server.RatePerSecond, cfg.Server.RateBurst), imetrics.RateLimited.Inc),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp attaches every background component to the application
// lifecycle in start order.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	hub *stream.Hub,
	mem *cache.TTLCache,
	pipeline *mid.IngestPipeline,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
	sched *scheduler.Scheduler,
) *server.App {
	opts := []server.Option{
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithRunner("websocket-hub", server.RunnerFuncs{
			StartFn: func(ctx context.Context) error { go hub.Run(ctx); return nil },
		}),
		server.WithRunner("cache-sweeper", server.RunnerFuncs{
			StartFn: func(ctx context.Context) error { mem.StartSweeper(ctx, cfg.Cache.SweepInterval); return nil },
		}),
	}
	if pipeline != nil {
		opts = append(opts, server.WithRunner("ingest-pipeline", server.RunnerFuncs{
			StartFn: func(ctx context.Context) error { pipeline.Start(ctx); return nil },
			StopFn:  func(context.Context) error { pipeline.Stop(); return nil },
		}))
	}
	if consumer != nil {
		opts = append(opts, server.WithRunner("kafka-consumer", server.RunnerFuncs{
			StartFn: func(context.Context) error { return consumer.Start() },
			StopFn:  consumer.Stop,
		}))
	}
	if q != nil {
		opts = append(opts, server.WithRunner("refresh-queue", q))
	}
	if sched != nil {
		opts = append(opts, server.WithRunner("scheduler", server.RunnerFuncs{
			StartFn: func(context.Context) error { sched.Start(); return nil },
			StopFn:  sched.Stop,
		}))
	}
	return server.New(log, srv, opts...)
}
