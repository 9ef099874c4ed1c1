package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"bvp/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps messages in a Redis list, retries in a sorted set scored
// by due time, and exhausted messages in a dead letter list.
type RedisQueue struct {
	logger *logger.Logger
	config Config
	client *redis.Client
	jobs   map[string]Job

	mu      sync.RWMutex
	running bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	keyPrefix string
	name      string
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets the key prefix shared by all queues of the app.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) { r.keyPrefix = prefix }
}

// WithQueueName namespaces the keys of one queue under the prefix.
func WithQueueName(name string) RedisQueueOption {
	return func(r *RedisQueue) { r.name = name }
}

func newRedisQueue(lgr *logger.Logger, cfg Config, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	q := &RedisQueue{
		logger:    lgr,
		config:    cfg.withDefaults(),
		client:    client,
		jobs:      make(map[string]Job),
		keyPrefix: "bvp:queue",
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// NewRedisPublisher creates a queue that only enqueues. It is usable right
// away and needs no Start.
func NewRedisPublisher(lgr *logger.Logger, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	return newRedisQueue(lgr, Config{}, client, opts...)
}

// NewRedisConsumer creates a queue whose workers run jobs once started.
func NewRedisConsumer(lgr *logger.Logger, cfg Config, client *redis.Client, jobs []Job, opts ...RedisQueueOption) *RedisQueue {
	q := newRedisQueue(lgr, cfg, client, opts...)
	for _, job := range jobs {
		if _, dup := q.jobs[job.Type()]; dup {
			lgr.Warn("job already registered", logger.String("job", job.Name()))
			continue
		}
		q.jobs[job.Type()] = job
		lgr.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
	}
	return q
}

// Start checks the connection and launches the workers and the retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrQueueClosed
	}
	if r.running {
		return fmt.Errorf("queue %s already running", r.base())
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.work(ctx, i)
	}
	r.wg.Add(1)
	go r.moveDueRetries(ctx)

	r.logger.Info("redis queue started",
		logger.String("queue", r.base()),
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr))
	return nil
}

// Stop closes the queue for publishing and waits for running jobs.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	wasRunning := r.running
	r.running = false
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	if !wasRunning {
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("stop queue %s: %w", r.base(), ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped", logger.String("queue", r.base()))
		return nil
	}
}

// PublishMessage enqueues payload for the job registered under msgType. A
// publisher-only queue accepts any type.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	closed := r.closed
	_, known := r.jobs[msgType]
	consumer := len(r.jobs) > 0
	r.mu.RUnlock()

	if closed {
		return ErrQueueClosed
	}
	if consumer && !known {
		return fmt.Errorf("%w: %s", ErrUnknownJob, msgType)
	}

	msg, err := newMessage(msgType, payload)
	if err != nil {
		return err
	}
	if err := r.push(ctx, r.queueKey(), msg); err != nil {
		return err
	}
	r.logger.Debug("message enqueued",
		logger.String("id", msg.ID),
		logger.String("type", msgType),
		logger.String("queue", r.queueKey()))
	return nil
}

// Stats returns the current list sizes.
func (r *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := r.client.Pipeline()
	pending := pipe.LLen(ctx, r.queueKey())
	retrying := pipe.ZCard(ctx, r.retryKey())
	dead := pipe.LLen(ctx, r.deadLetterKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Pending: pending.Val(), Retrying: retrying.Val(), Dead: dead.Val()}, nil
}

func (r *RedisQueue) push(ctx context.Context, key string, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, key, b).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	return nil
}

func (r *RedisQueue) work(ctx context.Context, id int) {
	defer r.wg.Done()
	r.logger.Debug("queue worker started", logger.Int("worker_id", id))
	for ctx.Err() == nil {
		r.popAndRun(ctx)
	}
	r.logger.Debug("queue worker stopped", logger.Int("worker_id", id))
}

func (r *RedisQueue) popAndRun(ctx context.Context) {
	result, err := r.client.BRPop(ctx, r.config.PollTimeout, r.queueKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return
		}
		r.logger.Error("brpop", logger.String("queue", r.queueKey()), logger.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		return
	}
	r.run(ctx, msg)
}

func (r *RedisQueue) run(ctx context.Context, msg Message) {
	job, ok := r.jobs[msg.Type]
	if !ok {
		r.logger.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.bury(msg)
		return
	}

	start := time.Now()
	err := job.Handle(ctx, msg.Payload)
	elapsed := time.Since(start).Milliseconds()

	switch {
	case err == nil:
		r.logger.Info("message processed",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", elapsed))
	case errors.Is(err, context.Canceled):
		// Interrupted by Stop: run it again on the next start.
		r.logger.Warn("message interrupted", logger.String("id", msg.ID), logger.String("job", job.Name()))
		if perr := r.push(context.Background(), r.queueKey(), msg); perr != nil {
			r.logger.Error("requeue interrupted message", logger.Error(perr))
		}
	case IsPermanent(err) || msg.Attempts >= r.config.RetryLimit:
		r.logger.Error("message failed",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempts", msg.Attempts+1),
			logger.Error(err))
		r.bury(msg)
	default:
		msg.Attempts++
		due := r.config.retryAt(time.Now(), msg.Attempts)
		r.logger.Warn("message failed, retry scheduled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempt", msg.Attempts),
			logger.Time("retry_at", due),
			logger.Error(err))
		r.scheduleRetry(msg, due)
	}
}

func (r *RedisQueue) scheduleRetry(msg Message, due time.Time) {
	b, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal retry", logger.Error(err))
		return
	}
	z := redis.Z{Score: float64(due.Unix()), Member: b}
	if err := r.client.ZAdd(context.Background(), r.retryKey(), z).Err(); err != nil {
		r.logger.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) bury(msg Message) {
	if err := r.push(context.Background(), r.deadLetterKey(), msg); err != nil {
		r.logger.Error("dead letter", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) moveDueRetries(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.requeueDue(ctx, time.Now())
		}
	}
}

// requeueDue moves due retries back to the message list. A member is only
// pushed by the mover whose ZREM removed it.
func (r *RedisQueue) requeueDue(ctx context.Context, now time.Time) {
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("fetch due retries", logger.Error(err))
		}
		return
	}
	for _, member := range due {
		removed, err := r.client.ZRem(ctx, r.retryKey(), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.queueKey(), member).Err(); err != nil {
			r.logger.Error("requeue retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) base() string {
	if r.name == "" {
		return r.keyPrefix
	}
	return r.keyPrefix + ":" + r.name
}

func (r *RedisQueue) queueKey() string      { return r.base() + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.base() + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.base() + ":dlq" }
