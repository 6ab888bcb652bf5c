package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type ConsumerConfig struct {
	Brokers    []string
	Topic      string
	GroupID    string
	RetryDelay time.Duration
}

// Handler processes one message. Errors are logged and the message is
// still committed.
type Handler func(ctx context.Context, msg kafka.Message) error

type Consumer struct {
	reader     *kafka.Reader
	retryDelay time.Duration
	log        *zap.Logger
}

func NewConsumer(cfg ConsumerConfig, log *zap.Logger) *Consumer {
	retry := cfg.RetryDelay
	if retry <= 0 {
		retry = 5 * time.Second
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			GroupID:        cfg.GroupID,
			Topic:          cfg.Topic,
			MinBytes:       10e3,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
			MaxWait:        3 * time.Second,
		}),
		retryDelay: retry,
		log:        log.Named("kafka.consumer").With(zap.String("topic", cfg.Topic)),
	}
}

// Run reads until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	c.log.Info("consumer started")
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.log.Info("consumer stopped")
				return nil
			}
			c.log.Error("failed to read message", zap.Error(err))
			select {
			case <-time.After(c.retryDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if err := handle(ctx, m); err != nil {
			c.log.Warn("failed to handle message",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	return nil
}
