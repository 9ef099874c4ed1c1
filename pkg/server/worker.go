package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bvp/pkg/config"
	applogger "bvp/pkg/logger"
	"bvp/pkg/queue"
)

// Worker runs queued jobs until interrupted.
type Worker struct {
	cfg   *config.Config
	log   *applogger.Logger
	queue *queue.RedisQueue
	res   Resources
}

// NewWorker creates a worker consuming q. res.Jobs is ignored; q is stopped
// on its own.
func NewWorker(cfg *config.Config, log *applogger.Logger, q *queue.RedisQueue, res Resources) *Worker {
	res.Jobs = nil
	return &Worker{cfg: cfg, log: log, queue: q, res: res}
}

// Run starts the queue consumer and blocks until interrupted.
func (w *Worker) Run() error {
	if err := w.queue.Start(); err != nil {
		w.log.Error("job queue start error", applogger.Error(err))
		return err
	}
	fields := []applogger.Field{
		applogger.String("queue", w.cfg.Queue.Name),
		applogger.Int("workers", w.cfg.Queue.Workers),
	}
	if st, err := w.queue.Stats(context.Background()); err == nil {
		fields = append(fields,
			applogger.Int64("pending", st.Pending),
			applogger.Int64("retrying", st.Retrying),
			applogger.Int64("dead", st.Dead))
	}
	w.log.Info("bvp worker started", fields...)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	w.log.Info("shutdown signal received")
	timeout := w.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := w.queue.Stop(ctx); err != nil {
		w.log.Warn("job queue stop error", applogger.Error(err))
	}
	w.res.close(ctx, w.log)
	w.log.Info("shutdown complete")
	return nil
}
