package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/db"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	HTTPAddr string
	GRPCAddr string
	LogLevel string

	StorageBackend string
	Namespace      string
	QuotaBytes     int
	FilePath       string
	StorageCache   bool
	Postgres       db.Config
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	KafkaBrokers  []string
	BookingTopic  string
	AuditTopic    string
	ConsumerGroup string

	AuditWorkers   int
	AuditBatchSize int
	AuditTimeout   time.Duration

	AdminUser         string
	AdminPasswordHash string

	HealthInterval  time.Duration
	ShutdownTimeout time.Duration
}

// LoadEnv loads the first .env found in the working directory or one of its
// two parents. It reports the file used, or "" when none was found.
func LoadEnv() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	candidates := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}
	for _, path := range candidates {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// FromEnv builds the configuration from the process environment.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":9000"),
		GRPCAddr: getEnv("GRPC_ADDR", ":9001"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
		Namespace:      getEnv("STORAGE_NAMESPACE", "mendoza_wine"),
		QuotaBytes:     getEnvInt("STORAGE_QUOTA_BYTES", 5*1024*1024),
		FilePath:       getEnv("STORAGE_FILE", "data/winetour.json"),
		StorageCache:   getEnvBool("STORAGE_CACHE", false),
		Postgres: db.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("POSTGRES_USER", ""),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Name:     getEnv("POSTGRES_DB", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		KafkaBrokers:  getEnvList("KAFKA_BROKERS"),
		BookingTopic:  getEnv("KAFKA_BOOKING_TOPIC", "booking_events"),
		AuditTopic:    getEnv("KAFKA_AUDIT_TOPIC", "audit_logs"),
		ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "booking-events-consumer-group"),

		AuditWorkers:   getEnvInt("AUDIT_WORKERS", 2),
		AuditBatchSize: getEnvInt("AUDIT_BATCH_SIZE", 5),
		AuditTimeout:   getEnvDuration("AUDIT_TIMEOUT", 500*time.Millisecond),

		AdminUser:         getEnv("ADMIN_USER", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		HealthInterval:  getEnvDuration("HEALTH_INTERVAL", 10*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory:
	case BackendFile:
		if c.FilePath == "" {
			return fmt.Errorf("%w: STORAGE_FILE is required for the file backend", ErrInvalidConfig)
		}
	case BackendPostgres:
		if c.Postgres.User == "" || c.Postgres.Name == "" {
			return fmt.Errorf("%w: POSTGRES_USER and POSTGRES_DB are required for the postgres backend", ErrInvalidConfig)
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: REDIS_ADDR is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.StorageBackend)
	}

	if c.Namespace == "" {
		return fmt.Errorf("%w: STORAGE_NAMESPACE must not be empty", ErrInvalidConfig)
	}
	if c.AuditWorkers < 1 || c.AuditBatchSize < 1 {
		return fmt.Errorf("%w: audit workers and batch size must be positive", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
