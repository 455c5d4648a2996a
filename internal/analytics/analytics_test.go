package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/kafka"
)

type recordingProducer struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (p *recordingProducer) Publish(ctx context.Context, e kafka.Event) error {
	return p.PublishBatch(ctx, []kafka.Event{e})
}

func (p *recordingProducer) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *recordingProducer) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		event  QueryEvent
		failed bool
		want   EventType
	}{
		{"failed join", QueryEvent{Matched: 3}, true, EventJoinFailed},
		{"cache hit", QueryEvent{CacheHit: true}, false, EventCacheHit},
		{"zero result", QueryEvent{}, false, EventZeroResult},
		{"plain search", QueryEvent{Matched: 1}, false, EventSearch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.event.Classify(tc.failed)
			assert.Equal(t, tc.want, tc.event.Type)
		})
	}
}

func TestCollectorBatchesAndFlushesOnClose(t *testing.T) {
	producer := &recordingProducer{}
	agg := NewAggregator()
	c := NewCollector(producer, agg, 2, time.Hour)
	c.Start(context.Background())

	for _, q := range []string{"main", "main", "engine"} {
		c.Track(QueryEvent{Type: EventSearch, Query: q, Matched: 1})
	}
	require.Eventually(t, func() bool { return producer.total() == 2 }, 2*time.Second, 5*time.Millisecond)

	c.Close()
	assert.Equal(t, 3, producer.total(), "the partial batch is flushed on close")
	assert.Equal(t, int64(3), agg.Stats().TotalSearches)
}

func TestCollectorWithoutProducer(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(nil, agg, 10, time.Millisecond)
	c.Start(context.Background())
	c.Track(QueryEvent{Type: EventZeroResult, Query: "zzz"})
	c.Close()
	assert.Equal(t, int64(1), agg.Stats().ZeroResultCount)
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	events := []QueryEvent{
		{Type: EventSearch, Query: "main", Sources: []string{"a"}, LatencyMs: 1},
		{Type: EventCacheHit, Query: "main", Sources: []string{"a"}, LatencyMs: 2},
		{Type: EventZeroResult, Query: "qqq", Sources: []string{"a", "b"}, LatencyMs: 3},
		{Type: EventJoinFailed, Query: "dup", Sources: []string{"b"}, LatencyMs: 4},
	}
	for _, e := range events {
		agg.Record(e)
	}

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.FailedJoins)
	assert.InDelta(t, 2.5, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, 3.0, stats.P50LatencyMs)
	assert.Equal(t, 4.0, stats.P99LatencyMs)
	assert.Equal(t, map[string]int64{"a": 3, "b": 2}, stats.SourceUsage)
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, QueryCount{Query: "main", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "qqq", Count: 1}}, stats.ZeroResultQueries)
}
