// Package feed consumes the item ingest topic and pushes each event into
// the engine of its source.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/kafka"
)

// Consumer wraps a Kafka consumer that drives the item pipeline.
type Consumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a Consumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *Consumer {
	return &Consumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "item-feed"),
	}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("item feed starting")
	return c.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler pushing ItemEvents into reg. Events
// for unknown sources, and identities a source already holds, are poison
// and get skipped; a closed engine is retried by leaving the offset.
func HandleMessage(reg *registry.Registry) kafka.MessageHandler {
	logger := slog.Default().With("component", "item-feed")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.ItemEvent](value)
		if err != nil {
			return err
		}

		src, err := reg.Get(event.Source)
		if err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
		}
		err = src.PushAll([][]byte{[]byte(event.Text)}, []uint32{event.ID})
		if errors.Is(err, apperrors.ErrDuplicateIdentity) {
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
		}
		if err != nil {
			return fmt.Errorf("pushing item %d to %s: %w", event.ID, event.Source, err)
		}

		logger.Debug("item pushed", "source", event.Source, "id", event.ID)
		return nil
	}
}
