package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/kafka"
)

// Collector buffers query events and flushes them to Kafka when the batch
// fills or the flush interval passes. Events are also handed to the local
// aggregator, if any. Track never blocks the request path.
type Collector struct {
	producer      kafka.Publisher
	aggregator    *Aggregator
	eventCh       chan QueryEvent
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
	closeOnce     sync.Once
}

// NewCollector creates a Collector. producer may be nil, in which case only
// the aggregator sees events.
func NewCollector(producer kafka.Publisher, aggregator *Aggregator, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		producer:      producer,
		aggregator:    aggregator,
		eventCh:       make(chan QueryEvent, batchSize*10),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. It runs until ctx is cancelled or Close is
// called, then flushes what is left.
func (c *Collector) Start(ctx context.Context) {
	go c.loop(ctx)
	c.logger.Info("analytics collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
		"kafka", c.producer != nil,
	)
}

func (c *Collector) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.final(batch)
				return
			}
			batch = c.add(ctx, batch, event)
		case <-ticker.C:
			batch = c.flush(ctx, batch)
		case <-ctx.Done():
			for {
				select {
				case event, ok := <-c.eventCh:
					if !ok {
						c.final(batch)
						return
					}
					batch = append(batch, kafka.Event{Key: event.Query, Value: event})
				default:
					c.final(batch)
					return
				}
			}
		}
	}
}

func (c *Collector) add(ctx context.Context, batch []kafka.Event, event QueryEvent) []kafka.Event {
	if c.producer == nil {
		return batch
	}
	batch = append(batch, kafka.Event{Key: event.Query, Value: event})
	if len(batch) >= c.batchSize {
		return c.flush(ctx, batch)
	}
	return batch
}

func (c *Collector) final(batch []kafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(ctx, batch)
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 || c.producer == nil {
		return batch[:0]
	}
	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("analytics flush failed, events dropped", "events", len(batch), "error", err)
	} else {
		c.logger.Debug("analytics batch flushed", "events", len(batch))
	}
	return batch[:0]
}

// Track records event. When the buffer is full the event still reaches the
// aggregator but is not streamed.
func (c *Collector) Track(event QueryEvent) {
	if c.aggregator != nil {
		c.aggregator.Record(event)
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush. Track must
// not be called after Close.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.eventCh) })
	<-c.done
}
