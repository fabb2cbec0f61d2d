//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/revolis/allpremarkets/pkg/config"
	"github.com/revolis/allpremarkets/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config, path ConfigPath) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegisterer,
		ProvideMetrics,

		// Engine core
		ProvideSymbolMap,
		ProvideNormalizer,
		ProvideVenueStore,
		ProvideRules,
		ProvideRuleLoader,

		// Infrastructure clients and alert sinks
		ProvideCache,
		ProvideClickHouseSink,
		ProvideKafkaAlertSink,
		ProvideStreamHub,
		ProvideTelegramNotifier,
		ProvideAlertSinks,
		ProvideAlertPipeline,

		// Use cases
		ProvideSpreadEngine,
		ProvideRawUpdateHandler,
		ProvideVenueHealthReporter,

		// Transport
		ProvideStatusHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
