package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"bvp/internal/domain/repository"
	"bvp/internal/handler/api"
	mid "bvp/internal/middleware"
	internalrepo "bvp/internal/repository"
	svcmetrics "bvp/internal/service/metrics"
	"bvp/internal/service/ratelimit"
	"bvp/internal/services/analytics"
	"bvp/internal/services/timeseries"
	"bvp/internal/usecase"
	"bvp/pkg/cache"
	pkgch "bvp/pkg/clickhouse"
	"bvp/pkg/config"
	xhttp "bvp/pkg/http"
	pkgkafka "bvp/pkg/kafka"
	applogger "bvp/pkg/logger"
	"bvp/pkg/metrics"
	pkgmysql "bvp/pkg/mysql"
	"bvp/pkg/queue"
	"bvp/pkg/server"
)

// ServiceName stamps aggregated logs with the process that wrote them.
type ServiceName string

// ProvideLogger creates the application logger. Errors are also aggregated
// and published to Kafka when log.collect_topic is set.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer, service ServiceName) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.CollectTopic != "" {
		l.Collect(applogger.NewCollector(applogger.CollectorConfig{
			Interval:  cfg.Log.CollectInterval,
			Topic:     cfg.Log.CollectTopic,
			Service:   string(service),
			Publisher: producer,
		}))
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithCreateDatabase(true),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideBeliefStore creates the belief tables and returns the store.
func ProvideBeliefStore(client *pkgch.Client) (repository.BeliefStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := internalrepo.NewClickHouseBeliefStore(client.DB(), client.Database())
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideMySQL opens the catalog database, migrating it when configured.
func ProvideMySQL(cfg *config.Config) (*gorm.DB, error) {
	db, err := pkgmysql.Open(
		pkgmysql.WithDSN(cfg.MySQL.DSN),
		pkgmysql.WithPool(cfg.MySQL.MaxOpenConns, cfg.MySQL.MaxIdleConns, cfg.MySQL.ConnMaxLifetime),
	)
	if err != nil {
		return nil, err
	}
	if cfg.MySQL.AutoMigrate {
		if err := db.AutoMigrate(internalrepo.AutoMigrateModels()...); err != nil {
			_ = pkgmysql.Close(db)
			return nil, fmt.Errorf("mysql migrate: %w", err)
		}
	}
	return db, nil
}

func ProvideCatalog(db *gorm.DB) repository.Catalog { return internalrepo.NewGormCatalog(db) }

func ProvideDataSources(db *gorm.DB) repository.DataSources { return internalrepo.NewGormDataSources(db) }

func ProvideTaskRunStore(db *gorm.DB) repository.TaskRuns { return internalrepo.NewGormTaskRuns(db) }

// ProvideRedisClient creates the client shared by the job queue and the cache.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// WorkerCache reaches the shared Redis layer of the dashboard cache only.
type WorkerCache cache.Service

// ProvideWorkerCache lets the worker invalidate dashboards cached in Redis.
func ProvideWorkerCache(client *redis.Client) WorkerCache {
	return cache.NewRedisCacheFromClient(client, "bvp:cache")
}

// ProvideCache creates the two-level dashboard cache.
func ProvideCache(client *redis.Client, cfg *config.Config) cache.Service {
	return cache.NewLayeredCache(
		cache.NewRedisCacheFromClient(client, "bvp:cache"),
		cache.WithLayeredMemorySize(cfg.Analytics.LocalCacheSize),
		cache.WithLayeredMemoryTTL(cfg.Analytics.CacheTTL),
	)
}

func queueOptions(cfg *config.Config) []queue.RedisQueueOption {
	return []queue.RedisQueueOption{
		queue.WithKeyPrefix(cfg.Queue.KeyPrefix),
		queue.WithQueueName(cfg.Queue.Name),
	}
}

// ProvideJobPublisher creates the producer side of the forecasting queue.
func ProvideJobPublisher(l *applogger.Logger, client *redis.Client, cfg *config.Config) *queue.RedisQueue {
	return queue.NewRedisPublisher(l, client, queueOptions(cfg)...)
}

// ProvideJobConsumer creates the worker side of the forecasting queue.
func ProvideJobConsumer(l *applogger.Logger, client *redis.Client, job *usecase.ForecastingJob, cfg *config.Config) *queue.RedisQueue {
	return queue.NewRedisConsumer(l, queue.Config{
		Workers:     cfg.Queue.Workers,
		RetryLimit:  cfg.Queue.MaxRetries,
		RetryDelay:  cfg.Queue.RetryDelay,
		PollTimeout: cfg.Queue.PollInterval,
	}, client, []queue.Job{job}, queueOptions(cfg)...)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder and registers the
// analytics metrics.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New(nil)
}

// ProvideBeliefPublisher creates the Kafka publisher for the kafka backend.
func ProvideBeliefPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideBeliefProcessor routes new beliefs to the configured backend.
func ProvideBeliefProcessor(
	pub repository.Publisher,
	store repository.BeliefStore,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.BeliefProcessor {
	return usecase.NewBeliefProcessor(pub, store, m, cfg.Backend.Type)
}

// IngestPipeline buffers beliefs consumed from Kafka on their way to ClickHouse.
type IngestPipeline = mid.BeliefPipeline

// ProvideIngestPipeline always stores into ClickHouse: consumed beliefs must
// not be published back to the topic they came from.
func ProvideIngestPipeline(store repository.BeliefStore, m repository.Metrics, cfg *config.Config) *IngestPipeline {
	return mid.NewBeliefPipeline(
		usecase.NewBeliefProcessor(nil, store, m, "clickhouse"),
		m,
		mid.WithMaxRPS(cfg.Backend.MaxPerSecond),
		mid.WithBufferSize(cfg.Backend.BufferSize),
	)
}

// ProvideKafkaConsumer creates the belief consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.ErrorLogHook(l)))
	return consumer, nil
}

// ProvideKafkaBeliefsHandler decodes consumed beliefs into the ingest pipeline.
func ProvideKafkaBeliefsHandler(pipe *IngestPipeline, m repository.Metrics, c cache.Service, cfg *config.Config, l *applogger.Logger) *usecase.KafkaBeliefsHandler {
	return usecase.NewKafkaBeliefsHandler(cfg.Kafka.Topic, pipe, m).WithAnalyticsCache(c, l)
}

// ProvideInfluxSink connects to InfluxDB, or returns nil when disabled.
func ProvideInfluxSink(cfg *config.Config) (*internalrepo.InfluxMetricsSink, error) {
	if !cfg.InfluxDB.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return internalrepo.NewInfluxMetricsSink(ctx, internalrepo.InfluxConfig{
		URL:    cfg.InfluxDB.URL,
		Token:  cfg.InfluxDB.Token,
		Org:    cfg.InfluxDB.Org,
		Bucket: cfg.InfluxDB.Bucket,
	})
}

// ProvideTimeSeries builds one value table per kind over the belief store.
func ProvideTimeSeries(catalog repository.Catalog, store repository.BeliefStore, ds repository.DataSources) analytics.Sources {
	return analytics.Sources{
		Power:   timeseries.NewPowerTable(catalog, store, ds),
		Prices:  timeseries.NewPriceTable(catalog, store, ds),
		Weather: timeseries.NewWeatherTable(catalog, store, ds),
		Catalog: catalog,
	}
}

func ProvideDataIngest(
	src analytics.Sources,
	ds repository.DataSources,
	proc *usecase.BeliefProcessor,
	jobs *queue.RedisQueue,
	c cache.Service,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.DataIngest {
	return usecase.NewDataIngest(src.Catalog, ds, proc, jobs, c, usecase.ForecastHorizons{
		Price:   cfg.Forecasting.PriceHorizons,
		Weather: cfg.Forecasting.WeatherHorizons,
		Power:   cfg.Forecasting.PowerHorizons,
	}, l)
}

func ProvideDataRetrieval(src analytics.Sources) *usecase.DataRetrieval {
	return usecase.NewDataRetrieval(src.Power, src.Catalog)
}

func ProvideAnalyticsService(
	src analytics.Sources,
	c cache.Service,
	sink *internalrepo.InfluxMetricsSink,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.AnalyticsService {
	var ms repository.MetricsSink
	if sink != nil {
		ms = sink
	}
	return usecase.NewAnalyticsService(src, c, cfg.Analytics.CacheTTL, ms, l)
}

func ProvideTaskRuns(runs repository.TaskRuns, cfg *config.Config) *usecase.TaskRuns {
	return usecase.NewTaskRuns(runs, cfg.MonitorFrequency)
}

// ProvideForecastingJob creates the seasonal-naive forecaster run by the worker.
func ProvideForecastingJob(
	src analytics.Sources,
	ds repository.DataSources,
	proc *usecase.BeliefProcessor,
	c WorkerCache,
	l *applogger.Logger,
) *usecase.ForecastingJob {
	sources := []timeseries.TimeSeriesSource{src.Power, src.Prices, src.Weather}
	return usecase.NewForecastingJob(sources, src.Catalog, ds, proc, l).WithAnalyticsCache(c)
}

// ProvideHandlers lists the HTTP handlers of the API.
func ProvideHandlers(
	cfg *config.Config,
	l *applogger.Logger,
	src analytics.Sources,
	runs *usecase.TaskRuns,
	ingest *usecase.DataIngest,
	retrieval *usecase.DataRetrieval,
	dashboard *usecase.AnalyticsService,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewMonitorHandler(l, runs),
		api.NewV1_1Handler(l, api.EntityAddresses{Host: cfg.Host}, src.Catalog, ingest, retrieval, ratelimit.New(cfg.Server.PostRateLimit)),
		api.NewAnalyticsHandler(l, dashboard, api.AnalyticsDefaults{
			Resolution:      cfg.Analytics.Resolution,
			ForecastHorizon: cfg.Analytics.ForecastHorizon,
		}),
	}
}

// ProvideHTTPServer creates the echo server with all handlers registered.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, handlers []xhttp.Handler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.AllowOrigins),
		xhttp.WithSlowThreshold(cfg.Server.SlowRequest),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideResources collects the clients the app closes on shutdown.
func ProvideResources(
	ch *pkgch.Client,
	db *gorm.DB,
	rc *redis.Client,
	producer *pkgkafka.Producer,
	jobs *queue.RedisQueue,
	sink *internalrepo.InfluxMetricsSink,
) server.Resources {
	return server.Resources{ClickHouse: ch, MySQL: db, Redis: rc, Producer: producer, Jobs: jobs, Influx: sink}
}

// ProvideWorkerResources collects the clients the worker closes on shutdown.
func ProvideWorkerResources(ch *pkgch.Client, db *gorm.DB, rc *redis.Client, producer *pkgkafka.Producer) server.Resources {
	return server.Resources{ClickHouse: ch, MySQL: db, Redis: rc, Producer: producer}
}

// ProvideApp creates the API application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBeliefsHandler,
	pipe *IngestPipeline,
	res server.Resources,
) *server.App {
	return server.New(cfg, l, srv, consumer, kh, pipe, res)
}

// ProvideWorker creates the forecasting worker.
func ProvideWorker(cfg *config.Config, l *applogger.Logger, jobs *queue.RedisQueue, res server.Resources) *server.Worker {
	return server.NewWorker(cfg, l, jobs, res)
}
