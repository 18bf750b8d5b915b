//go:build wireinject
// +build wireinject

package di

import (
	"CandleHist/pkg/config"
	"CandleHist/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Storage
		ProvideRowCodec,
		ProvideTableStorage,
		ProvideHistoryStore,
		ProvideCandlesCache,
		ProvideDestinations,
		ProvideSnapshotSerializer,

		// Use cases
		ProvidePersistenceQueue,
		ProvideQueueMonitor,
		ProvideCandleManager,

		// Feed
		ProvideKafkaConsumer,
		ProvideCandleFeedHandler,
		ProvideFeedCollector,

		// API
		ProvideAssetPairDirectory,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
