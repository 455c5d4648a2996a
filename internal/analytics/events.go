// Package analytics records query events: it streams them to Kafka in
// batches and keeps in-process aggregates for the analytics endpoint.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventZeroResult EventType = "zero_result"
	EventJoinFailed EventType = "join_failed"
)

// QueryEvent describes one executed search.
type QueryEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Sources   []string  `json:"sources"`
	Matched   int       `json:"matched"`
	Returned  int       `json:"returned"`
	LatencyMs float64   `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Classify picks the event type from the outcome.
func (e *QueryEvent) Classify(failed bool) {
	switch {
	case failed:
		e.Type = EventJoinFailed
	case e.CacheHit:
		e.Type = EventCacheHit
	case e.Matched == 0:
		e.Type = EventZeroResult
	default:
		e.Type = EventSearch
	}
}
