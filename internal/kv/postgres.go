package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/db"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresBackend struct {
	db db.DB
}

func NewPostgresBackend(database db.DB) *PostgresBackend {
	return &PostgresBackend{db: database}
}

// EnsureSchema creates the kv_store table when it is missing.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, kvSchema); err != nil {
		return fmt.Errorf("failed to create kv_store: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := b.db.Get(ctx, &value, "SELECT value FROM kv_store WHERE key = $1", key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, nil
}

func (b *PostgresBackend) Set(ctx context.Context, key, value string) error {
	_, err := b.db.Exec(ctx, `
        INSERT INTO kv_store (key, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE
        SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
    `, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

func (b *PostgresBackend) Remove(ctx context.Context, key string) error {
	if _, err := b.db.Exec(ctx, "DELETE FROM kv_store WHERE key = $1", key); err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

func (b *PostgresBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.db.Select(ctx, &keys,
		"SELECT key FROM kv_store WHERE starts_with(key, $1) ORDER BY key", prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}
