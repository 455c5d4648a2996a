// Package kafka wraps segmentio/kafka-go for the item feed and the query
// analytics stream. Values travel as JSON in both directions.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
)

// MessageHandler is a callback invoked for each Kafka message. Returning an
// error wrapping ErrInvalidInput marks the message as poison: it is logged,
// committed and skipped. Any other error leaves the offset uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ConsumerOption tweaks the reader configuration.
type ConsumerOption func(*kafka.ReaderConfig)

// FromBeginning replays the topic from the first retained offset when the
// group has no committed position. Sources rebuilt at startup need this.
func FromBeginning() ConsumerOption {
	return func(rc *kafka.ReaderConfig) { rc.StartOffset = kafka.FirstOffset }
}

// WithGroup overrides the configured consumer group.
func WithGroup(group string) ConsumerOption {
	return func(rc *kafka.ReaderConfig) { rc.GroupID = group }
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	}
	for _, opt := range opts {
		opt(&rc)
	}

	return &Consumer{
		reader:  kafka.NewReader(rc),
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", rc.GroupID),
		handler: handler,
	}
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled. The reader is closed on return.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}

		err = c.handler(ctx, msg.Key, msg.Value)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrInvalidInput):
			c.logger.Warn("skipping malformed message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		default:
			c.logger.Error("failed to process message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// Stats exposes the reader counters for health reporting.
func (c *Consumer) Stats() kafka.ReaderStats {
	return c.reader.Stats()
}

// DecodeJSON unmarshals a message value into T. Decode failures wrap
// ErrInvalidInput so the consumer treats them as poison.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w: %v", apperrors.ErrInvalidInput, err)
	}
	return result, nil
}
