package usecase

import (
	"context"
	"fmt"
	"time"

	"bvp/internal/domain/models"
	drepo "bvp/internal/domain/repository"
)

// BeliefProcessor routes timed values to the configured backend.
type BeliefProcessor struct {
	pub     drepo.Publisher
	store   drepo.BeliefStore
	metrics drepo.Metrics
	backend string
}

// NewBeliefProcessor creates a new BeliefProcessor instance.
// pub may be nil for the clickhouse backend.
func NewBeliefProcessor(
	pub drepo.Publisher,
	store drepo.BeliefStore,
	metrics drepo.Metrics,
	backend string,
) *BeliefProcessor {
	return &BeliefProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Backend names where ProcessBatch sends values.
func (p *BeliefProcessor) Backend() string { return p.backend }

// ProcessBatch stores or publishes values in one round-trip.
func (p *BeliefProcessor) ProcessBatch(ctx context.Context, values []models.TimedValue) error {
	if len(values) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		if p.pub == nil {
			err = fmt.Errorf("kafka backend has no publisher")
			break
		}
		err = p.pub.PublishBatch(ctx, values)
	case "clickhouse":
		err = p.store.StoreBatch(ctx, values)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	counts := make(map[models.ValueKind]int)
	for _, v := range values {
		counts[v.Kind]++
	}
	for kind, n := range counts {
		p.metrics.RecordValuesStored(p.backend, kind, n)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

// Close closes underlying resources if available.
func (p *BeliefProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
