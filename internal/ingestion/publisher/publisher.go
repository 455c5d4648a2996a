// Package publisher delivers validated items to their source: straight into
// the engine, or through the Kafka item topic when a producer is configured
// so that every matchd replica consuming the topic sees them.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/kafka"
)

// Publisher routes ingest requests.
type Publisher struct {
	registry *registry.Registry
	producer kafka.Publisher
	logger   *slog.Logger
}

// New creates a Publisher. A nil producer selects direct delivery.
func New(reg *registry.Registry, producer kafka.Publisher) *Publisher {
	return &Publisher{
		registry: reg,
		producer: producer,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest pushes or queues the items of req. The source must exist in either
// mode.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	src, err := p.registry.Get(req.Source)
	if err != nil {
		return nil, err
	}

	if p.producer != nil {
		now := time.Now().UTC()
		events := make([]kafka.Event, len(req.Items))
		for i, item := range req.Items {
			events[i] = kafka.Event{
				Key: src.Name,
				Value: ingestion.ItemEvent{
					Source:     src.Name,
					ID:         item.ID,
					Text:       item.Text,
					IngestedAt: now,
				},
			}
		}
		if err := p.producer.PublishBatch(ctx, events); err != nil {
			return nil, fmt.Errorf("queueing items for %s: %w", src.Name, err)
		}
		return &ingestion.IngestResponse{Source: src.Name, Accepted: len(events), Mode: ingestion.ModeQueued}, nil
	}

	payloads := make([][]byte, len(req.Items))
	ids := make([]uint32, len(req.Items))
	for i, item := range req.Items {
		payloads[i] = []byte(item.Text)
		ids[i] = item.ID
	}
	if err := src.PushAll(payloads, ids); err != nil {
		return nil, fmt.Errorf("pushing items to %s: %w", src.Name, err)
	}
	p.logger.Debug("items pushed", "source", src.Name, "count", len(payloads))
	return &ingestion.IngestResponse{Source: src.Name, Accepted: len(payloads), Mode: ingestion.ModeDirect}, nil
}
