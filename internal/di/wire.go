//go:build wireinject
// +build wireinject

package di

import (
	"FinSight/pkg/config"
	"FinSight/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Backend access
		ProvideBackendClient,
		ProvideHealthChecker,
		ProvideMetricsSource,
		ProvideCacheService,
		ProvideCachedQuery,
		ProvidePortfolioQuery,
		ProvidePushStream,

		// Core session
		ProvideHealthGate,
		ProvideSnapshotTopic,
		ProvideDashboardSession,

		// Navigation and voice
		ProvideNavigationDispatcher,
		ProvideIntentResolver,
		ProvideWakeWordCascade,

		// History pipeline
		ProvideClickHouseClient,
		ProvideSnapshotHistory,
		ProvideHistoryUseCase,
		ProvideRedisClient,
		ProvideHistoryQueue,
		ProvideQueueService,
		ProvideHistoryRecorder,
		ProvideRetentionSweeper,

		// Telemetry
		ProvideKafkaProducer,
		ProvideTelemetry,

		// HTTP and app
		ProvideDashboardHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
