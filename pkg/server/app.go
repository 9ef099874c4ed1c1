package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"bvp/internal/middleware"
	"bvp/internal/repository"
	pkgch "bvp/pkg/clickhouse"
	"bvp/pkg/config"
	xhttp "bvp/pkg/http"
	pkgkafka "bvp/pkg/kafka"
	applogger "bvp/pkg/logger"
	pkgmysql "bvp/pkg/mysql"
	"bvp/pkg/queue"
)

// Resources are the infrastructure clients closed on shutdown. Any may be nil.
type Resources struct {
	ClickHouse *pkgch.Client
	MySQL      *gorm.DB
	Redis      *redis.Client
	Producer   *pkgkafka.Producer
	Jobs       *queue.RedisQueue
	Influx     *repository.InfluxMetricsSink
}

// App encapsulates the API process lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	pipeline   *middleware.BeliefPipeline
	res        Resources
}

// New creates a new App. consumer may be nil when Kafka ingestion is disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	pipeline *middleware.BeliefPipeline,
	res Resources,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		consumer:   consumer,
		kh:         kh,
		pipeline:   pipeline,
		res:        res,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.consumer != nil && a.kh != nil {
		a.pipeline.Start(ctx)
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("bvp api started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("host", a.cfg.Host),
		applogger.String("backend", a.cfg.Backend.Type))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops intake first, then closes the clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
		a.pipeline.Stop()
	}

	a.res.close(shutdownCtx, a.log)
	a.log.Info("shutdown complete")
	return nil
}

func (r Resources) close(ctx context.Context, l *applogger.Logger) {
	// Aggregated errors go out through the producer, so flush before it closes.
	l.Flush(ctx)
	if r.Jobs != nil {
		if err := r.Jobs.Stop(ctx); err != nil {
			l.Warn("job queue stop error", applogger.Error(err))
		}
	}
	if r.Influx != nil {
		r.Influx.Close()
	}
	if r.Producer != nil {
		if err := r.Producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	if r.MySQL != nil {
		if err := pkgmysql.Close(r.MySQL); err != nil {
			l.Warn("mysql close error", applogger.Error(err))
		}
	}
	if r.ClickHouse != nil {
		if err := r.ClickHouse.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}
