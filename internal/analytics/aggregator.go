package analytics

import (
	"sort"
	"sync"
	"time"
)

// maxLatencySamples bounds the latency reservoir; older samples are
// overwritten in ring order.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	CacheHits         int64            `json:"cache_hits"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	FailedJoins       int64            `json:"failed_joins"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      float64          `json:"p50_latency_ms"`
	P95LatencyMs      float64          `json:"p95_latency_ms"`
	P99LatencyMs      float64          `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	SourceUsage       map[string]int64 `json:"source_usage"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running query statistics in memory.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	cacheHits         int64
	zeroResults       int64
	failedJoins       int64
	latencies         []float64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	sourceUsage       map[string]int64
	startTime         time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]float64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		sourceUsage:       make(map[string]int64),
		startTime:         time.Now(),
	}
}

func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	switch event.Type {
	case EventCacheHit:
		a.cacheHits++
	case EventZeroResult:
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	case EventJoinFailed:
		a.failedJoins++
	}
	a.queryCounts[event.Query]++
	for _, s := range event.Sources {
		a.sourceUsage[s]++
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		CacheHits:       a.cacheHits,
		ZeroResultCount: a.zeroResults,
		FailedJoins:     a.failedJoins,
		SourceUsage:     make(map[string]int64, len(a.sourceUsage)),
	}
	for s, n := range a.sourceUsage {
		stats.SourceUsage[s] = n
	}
	if len(a.latencies) > 0 {
		sorted := append([]float64(nil), a.latencies...)
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := min((pct*len(sorted))/100, len(sorted)-1)
	return sorted[idx]
}

// topN orders by count, then query, so equal counts list deterministically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
