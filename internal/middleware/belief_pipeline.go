package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"bvp/internal/domain/models"
	domrepo "bvp/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	ProcessBatch(ctx context.Context, values []models.TimedValue) error
}

type assetKey struct {
	kind    models.ValueKind
	assetID int64
}

// BeliefPipeline sits between the Kafka consumer and the belief store.
// It validates, throttles per asset, and buffers batches when downstream is unavailable.
type BeliefPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan []models.TimedValue
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[assetKey]time.Time
	now      func() time.Time
	backoff  time.Duration
}

type PipelineOption func(*BeliefPipeline)

// WithMaxRPS sets the max batches per second per asset. Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *BeliefPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *BeliefPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithRetryBackoff sets the initial delay between buffered retries.
func WithRetryBackoff(d time.Duration) PipelineOption {
	return func(p *BeliefPipeline) {
		if d > 0 {
			p.backoff = d
		}
	}
}

// NewBeliefPipeline creates a new pipeline.
func NewBeliefPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *BeliefPipeline {
	p := &BeliefPipeline{
		proc:     proc,
		metrics:  metrics,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[assetKey]time.Time),
		now:      time.Now,
		backoff:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan []models.TimedValue, p.bufSize)
	return p
}

// Start launches background flushing of buffered batches.
func (p *BeliefPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := p.backoff
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case batch := <-p.bufCh:
				if err := p.proc.ProcessBatch(ctx, batch); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- batch:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = p.backoff
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *BeliefPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
}

// Buffered returns the number of batches waiting for a retry.
func (p *BeliefPipeline) Buffered() int { return len(p.bufCh) }

// ProcessBatch validates, throttles, and forwards values downstream, buffering on errors.
func (p *BeliefPipeline) ProcessBatch(ctx context.Context, values []models.TimedValue) error {
	start := p.now()
	for _, v := range values {
		if err := validateBelief(v); err != nil {
			p.metrics.RecordError("pipeline_validate")
			return err
		}
	}

	accepted := values[:0:0]
	for _, v := range values {
		if p.allow(assetKey{v.Kind, v.AssetID}, start) {
			accepted = append(accepted, v)
		} else {
			p.metrics.RecordError("pipeline_throttle")
		}
	}
	if len(accepted) == 0 {
		return nil
	}

	if err := p.proc.ProcessBatch(ctx, accepted); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- accepted:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateBelief(v models.TimedValue) error {
	switch v.Kind {
	case models.KindPower, models.KindPrice, models.KindWeather:
	default:
		return fmt.Errorf("unknown value kind %q", v.Kind)
	}
	if v.AssetID <= 0 {
		return fmt.Errorf("asset id invalid")
	}
	if v.Datetime.IsZero() {
		return fmt.Errorf("datetime missing")
	}
	if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
		return fmt.Errorf("value not finite")
	}
	return nil
}

// allow admits at most maxRPS values per asset per second.
// Values of one batch share a timestamp, so only the first per asset counts.
func (p *BeliefPipeline) allow(key assetKey, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[key]
	if !ok || last.Equal(now) {
		p.lastSeen[key] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[key] = now
	return true
}
