package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/catalog"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/events"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/grpcserver"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/kv"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/server"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/service"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/storage"
)

func main() {
	envFile := config.LoadEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	if envFile != "" {
		log.Info("loaded env file", zap.String("path", envFile))
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("winetour stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeBackend()

	if cfg.StorageCache && cfg.StorageBackend != config.BackendMemory {
		cached := cache.NewBackend(backend, log)
		if err := cached.Warm(ctx, cfg.Namespace+"_"); err != nil {
			return err
		}
		backend = cached
	}

	store := storage.New(backend,
		storage.WithNamespace(cfg.Namespace),
		storage.WithLogger(log),
	)
	if !store.Available(ctx) {
		log.Warn("booking store is not available yet", zap.String("backend", cfg.StorageBackend))
	}

	producer := newProducer(cfg, log)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Error("failed to close producer", zap.Error(err))
		}
	}()

	bookings := service.NewBookingService(
		booking.NewValidator(nil, nil),
		store,
		events.NewPublisher(producer, cfg.BookingTopic, log),
		log,
	)

	audit := server.NewAuditManager(server.AuditConfig{
		Workers:   cfg.AuditWorkers,
		BatchSize: cfg.AuditBatchSize,
		Timeout:   cfg.AuditTimeout,
		Topic:     cfg.AuditTopic,
	}, producer, log)

	if cfg.AdminPasswordHash == "" {
		log.Warn("ADMIN_PASSWORD_HASH is not set, admin routes are locked")
	}
	httpServer := server.New(catalog.Default(), bookings, store, audit, server.Credentials{
		User:         cfg.AdminUser,
		PasswordHash: cfg.AdminPasswordHash,
	}, log)
	grpcServer := grpcserver.NewServer(store, cfg.HealthInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpServer.Run(gctx, cfg.HTTPAddr)
	})
	g.Go(func() error {
		return grpcServer.Run(gctx, cfg.GRPCAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		grpcServer.Shutdown(shutdownCtx)
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("winetour stopped")
	return nil
}

func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (kv.Backend, func(), error) {
	log = log.With(zap.String("backend", cfg.StorageBackend))

	switch cfg.StorageBackend {
	case config.BackendFile:
		backend, err := kv.NewFileBackend(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("storage ready", zap.String("path", cfg.FilePath))
		return backend, func() {}, nil

	case config.BackendPostgres:
		database, err := db.NewDb(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		backend := kv.NewPostgresBackend(database)
		if err := backend.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		log.Info("storage ready", zap.String("host", cfg.Postgres.Host), zap.String("db", cfg.Postgres.Name))
		return backend, database.Close, nil

	case config.BackendRedis:
		client, err := kv.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		log.Info("storage ready", zap.String("addr", cfg.RedisAddr))
		return kv.NewRedisBackend(client), func() { _ = client.Close() }, nil

	default:
		log.Info("storage ready", zap.Int("quota_bytes", cfg.QuotaBytes))
		return kv.NewMemoryBackend(cfg.QuotaBytes), func() {}, nil
	}
}

func newProducer(cfg config.Config, log *zap.Logger) kafka.Producer {
	if len(cfg.KafkaBrokers) == 0 {
		return kafka.NewConsoleProducer(log)
	}
	log.Info("kafka producer configured", zap.Strings("brokers", cfg.KafkaBrokers))
	return kafka.NewWriterProducer(kafka.WriterConfig{
		Brokers:      cfg.KafkaBrokers,
		BatchTimeout: cfg.AuditTimeout,
		WriteTimeout: cfg.ShutdownTimeout,
	}, log)
}
