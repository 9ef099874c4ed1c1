package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"bvp/internal/domain/models"
	domrepo "bvp/internal/domain/repository"
	"bvp/pkg/cache"
	pkgkafka "bvp/pkg/kafka"
	"bvp/pkg/logger"
)

// BatchProcessor accepts a batch of timed values.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, values []models.TimedValue) error
}

// KafkaBeliefsHandler consumes published beliefs and writes them downstream.
type KafkaBeliefsHandler struct {
	topic   string
	next    BatchProcessor
	metrics domrepo.Metrics
	cache   cache.Service
	log     *logger.Logger
}

func NewKafkaBeliefsHandler(topic string, next BatchProcessor, metrics domrepo.Metrics) *KafkaBeliefsHandler {
	return &KafkaBeliefsHandler{topic: topic, next: next, metrics: metrics, log: logger.Nop()}
}

// WithAnalyticsCache makes every stored belief drop the cached dashboards.
func (h *KafkaBeliefsHandler) WithAnalyticsCache(c cache.Service, log *logger.Logger) *KafkaBeliefsHandler {
	h.cache = c
	if log != nil {
		h.log = log
	}
	return h
}

func (h *KafkaBeliefsHandler) Topic() string { return h.topic }

// Handle decodes one TimedValue, as written by KafkaPublisher.
func (h *KafkaBeliefsHandler) Handle(ctx context.Context, b []byte) error {
	var tv models.TimedValue
	if err := json.Unmarshal(b, &tv); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	switch tv.Kind {
	case models.KindPower, models.KindPrice, models.KindWeather:
	default:
		h.metrics.RecordError("consumer_kind")
		return fmt.Errorf("unknown value kind %q", tv.Kind)
	}

	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(tv.Datetime).Seconds())

	start := time.Now()
	err := h.next.ProcessBatch(ctx, []models.TimedValue{tv})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordLastValue(tv.Kind, strconv.FormatInt(tv.AssetID, 10), tv.Value)
	invalidateAnalytics(ctx, h.cache, h.log)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBeliefsHandler)(nil)
