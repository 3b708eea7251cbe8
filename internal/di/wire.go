//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"SignalFuse/pkg/config"
	"SignalFuse/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideRedisCache,

		// Repositories
		ProvidePredictionStore,
		ProvidePredictionPublisher,
		ProvideSnapshotCache,

		// Engine and use cases
		ProvideEngineConfig,
		ProvideEngine,
		ProvideEngineRunner,
		ProvidePredictionService,
		ProvideFeatureWindow,
		ProvideTradeProcessor,
		ProvideLimiter,
		ProvideTradeCollector,

		// Transports
		ProvideKafkaConsumer,
		ProvideKafkaHandlers,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
