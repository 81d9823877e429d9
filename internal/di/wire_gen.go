//go:build !wireinject
// +build !wireinject

// This file is maintained by hand and mirrors the provider set in wire.go.
// Keep the call order and cleanup order in sync when providers change, or
// regenerate it with `go run github.com/google/wire/cmd/wire` and drop this
// note.

package di

import (
	"PriceFusion/pkg/config"
	"PriceFusion/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	producer, cleanup, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger, cleanup2, err := ProvideLogger(cfg, producer)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	store, cleanup3, err := ProvideStore(cfg, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	v := ProvideQuoteProviders(cfg, store)
	metrics := ProvideMetrics()
	providerFanout := ProvideFanout(cfg, v, metrics, logger)
	engine := ProvideFusionEngine(cfg)
	analyzer := ProvideAnalyzer(cfg)
	ttlCache := ProvideTTLCache()
	universalClient, cleanup4 := ProvideRedisClient(cfg)
	quoteCache := ProvideQuoteCache(cfg, ttlCache, universalClient)
	tracker := ProvideTracker(cfg)
	hub := ProvideHub(logger)
	v2 := ProvideFusedPublishers(cfg, hub, producer)
	priceFusionUseCase := ProvidePriceFusion(cfg, providerFanout, engine, analyzer, quoteCache, store, tracker, v2, metrics, logger)
	riskUseCase := ProvideRisk(providerFanout, engine, analyzer, store, metrics, logger)
	productNormalizer := ProvideNormalizer(cfg)
	handler := ProvideHTTPHandler(logger, priceFusionUseCase, riskUseCase, productNormalizer, hub)
	httpServer := ProvideHTTPServer(cfg, handler, logger)
	ingestPipeline := ProvideIngestPipeline(cfg, store, engine, metrics, logger)
	consumer, err := ProvideKafkaConsumer(cfg, ingestPipeline, metrics, logger)
	if err != nil {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	pacer := ProvidePacer(cfg)
	redisQueue := ProvideRefreshQueue(cfg, universalClient, priceFusionUseCase, pacer, logger)
	scheduler, err := ProvideScheduler(cfg, priceFusionUseCase, store, redisQueue, pacer, logger)
	if err != nil {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	app := ProvideApp(cfg, logger, httpServer, hub, ttlCache, ingestPipeline, consumer, redisQueue, scheduler)
	return app, func() {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}
