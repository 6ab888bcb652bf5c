package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/events"
	wkafka "gitlab.ozon.dev/pupkingeorgij/winetour/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/logger"
)

func main() {
	config.LoadEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel).Named("consumer")
	defer func() { _ = log.Sync() }()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	consumer := wkafka.NewConsumer(wkafka.ConsumerConfig{
		Brokers:    cfg.KafkaBrokers,
		Topic:      cfg.BookingTopic,
		GroupID:    cfg.ConsumerGroup,
		RetryDelay: 5 * time.Second,
	}, log)
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Error("failed to close consumer", zap.Error(err))
		}
	}()

	log.Info("consumer connected",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.BookingTopic),
		zap.String("group", cfg.ConsumerGroup),
	)

	if err := consumer.Run(ctx, func(_ context.Context, m kafka.Message) error {
		e, err := events.Decode(m.Value)
		if err != nil {
			return err
		}
		log.Info("booking event",
			zap.String("type", string(e.Type)),
			zap.Int64("booking_id", e.BookingID),
			zap.String("status", string(e.Status)),
			zap.String("summary", e.Summary),
			zap.Time("occurred_at", e.OccurredAt),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		return nil
	}); err != nil {
		log.Error("consumer failed", zap.Error(err))
	}
}
