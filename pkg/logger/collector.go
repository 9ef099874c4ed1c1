package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher sends a batch of aggregated entries to a topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectorConfig struct {
	Interval  time.Duration // flush period
	MaxUnique int           // distinct entries that force an early flush
	Topic     string
	Service   string // stamped on every entry, e.g. api or worker
	Publisher Publisher
}

// Entry counts the occurrences of one distinct event between two flushes.
type Entry struct {
	Service   string                 `json:"service"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Collector deduplicates log events and publishes them in batches.
type Collector struct {
	cfg  CollectorConfig
	now  func() time.Time
	send func(ctx context.Context, entries []Entry)

	mu      sync.Mutex
	entries map[string]*Entry
	order   []string

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxUnique <= 0 {
		cfg.MaxUnique = 100
	}
	c := &Collector{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*Entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.send = c.publish
	go c.loop()
	return c
}

// Add records one event. Events with the same level, message, caller and
// fields share an entry.
func (c *Collector) Add(level, msg string, fields []Field, caller string) {
	values := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		values[f.Key] = f.Value
	}
	key := entryKey(level, msg, caller, values)
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		c.mu.Unlock()
		return
	}
	c.entries[key] = &Entry{
		Service:   c.cfg.Service,
		Level:     level,
		Message:   msg,
		Fields:    values,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	c.order = append(c.order, key)
	var batch []Entry
	if len(c.order) >= c.cfg.MaxUnique {
		batch = c.drainLocked()
	}
	c.mu.Unlock()

	if batch != nil {
		go c.sendWithTimeout(batch)
	}
}

// Close stops the flush loop and publishes the remaining entries.
func (c *Collector) Close(ctx context.Context) {
	c.once.Do(func() {
		close(c.stop)
		<-c.done
		c.mu.Lock()
		batch := c.drainLocked()
		c.mu.Unlock()
		if batch != nil {
			c.send(ctx, batch)
		}
	})
}

func (c *Collector) loop() {
	defer close(c.done)
	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.mu.Lock()
			batch := c.drainLocked()
			c.mu.Unlock()
			if batch != nil {
				c.sendWithTimeout(batch)
			}
		}
	}
}

// drainLocked returns the entries in first-seen order and resets the map.
func (c *Collector) drainLocked() []Entry {
	if len(c.order) == 0 {
		return nil
	}
	batch := make([]Entry, 0, len(c.order))
	for _, k := range c.order {
		batch = append(batch, *c.entries[k])
	}
	c.entries = make(map[string]*Entry)
	c.order = nil
	return batch
}

func (c *Collector) sendWithTimeout(batch []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c.send(ctx, batch)
}

func (c *Collector) publish(ctx context.Context, batch []Entry) {
	if c.cfg.Publisher == nil {
		return
	}
	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
		// The logger cannot log its own failure.
		fmt.Fprintf(os.Stderr, "publish %d log entries to %s: %v\n", len(batch), c.cfg.Topic, err)
	}
}

func entryKey(level, msg, caller string, fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", level, msg, caller)
	for _, k := range keys {
		v, err := json.Marshal(fields[k])
		if err != nil {
			v = []byte(fmt.Sprint(fields[k]))
		}
		fmt.Fprintf(h, "\x00%s=%s", k, v)
	}
	return hex.EncodeToString(h.Sum(nil))
}
