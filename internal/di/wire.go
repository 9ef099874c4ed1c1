//go:build wireinject
// +build wireinject

package di

import (
	"bvp/pkg/config"
	"bvp/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideBeliefStore,
	ProvideMySQL,
	ProvideCatalog,
	ProvideDataSources,
	ProvideRedisClient,
	ProvideBeliefPublisher,
	ProvideBeliefProcessor,
	ProvideTimeSeries,
)

// InitializeApp wires up the API process.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		infraSet,
		wire.Value(ServiceName("api")),

		ProvideTaskRunStore,
		ProvideCache,
		ProvideJobPublisher,
		ProvideInfluxSink,

		ProvideIngestPipeline,
		ProvideKafkaConsumer,
		ProvideKafkaBeliefsHandler,

		ProvideDataIngest,
		ProvideDataRetrieval,
		ProvideAnalyticsService,
		ProvideTaskRuns,

		ProvideHandlers,
		ProvideHTTPServer,
		ProvideResources,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeWorker wires up the forecasting worker.
func InitializeWorker(cfg *config.Config) (*server.Worker, error) {
	wire.Build(
		infraSet,
		wire.Value(ServiceName("worker")),

		ProvideWorkerCache,
		ProvideForecastingJob,
		ProvideJobConsumer,
		ProvideWorkerResources,
		ProvideWorker,
	)
	return &server.Worker{}, nil
}
