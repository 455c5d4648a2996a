// Package ingestion defines the request/response types and the Kafka event
// schema for adding candidates to a source.
package ingestion

import "time"

// ItemInput is one candidate. ID is the join identity and is ignored by
// anonymous sources.
type ItemInput struct {
	ID   uint32 `json:"id"`
	Text string `json:"text"`
}

// IngestRequest is the JSON body accepted by POST /api/v1/items.
type IngestRequest struct {
	Source string      `json:"source"`
	Items  []ItemInput `json:"items"`
}

// Delivery modes reported in IngestResponse.
const (
	ModeDirect = "direct"
	ModeQueued = "queued"
)

// IngestResponse is returned once items are pushed or queued.
type IngestResponse struct {
	Source   string `json:"source"`
	Accepted int    `json:"accepted"`
	Mode     string `json:"mode"`
}

// ItemEvent is the Kafka message payload on the item ingest topic. Messages
// are keyed by source so that a source's items keep their order.
type ItemEvent struct {
	Source     string    `json:"source"`
	ID         uint32    `json:"id"`
	Text       string    `json:"text"`
	IngestedAt time.Time `json:"ingested_at"`
}
