//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PriceFusion/pkg/config"
	"PriceFusion/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideRedisClient,
		ProvideStore,
		ProvideTTLCache,
		ProvideQuoteCache,

		// Domain services
		ProvideQuoteProviders,
		ProvideFanout,
		ProvideFusionEngine,
		ProvideAnalyzer,
		ProvideTracker,
		ProvideHub,
		ProvideFusedPublishers,
		ProvideNormalizer,
		ProvidePacer,

		// Use cases
		ProvidePriceFusion,
		ProvideRisk,
		ProvideRefreshQueue,
		ProvideScheduler,
		ProvideIngestPipeline,
		ProvideKafkaConsumer,

		// Transport and application
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
