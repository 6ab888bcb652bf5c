package cache

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/kv"
)

// Backend keeps a copy of every value it has seen in front of a slower
// kv.Backend. Writes go to the wrapped backend first and only then to the
// cache. Changes made by other processes are not observed until Invalidate.
type Backend struct {
	mu    sync.RWMutex
	items map[string]string
	next  kv.Backend
	log   *zap.Logger
}

var _ kv.Backend = (*Backend)(nil)

func NewBackend(next kv.Backend, log *zap.Logger) *Backend {
	return &Backend{
		items: make(map[string]string),
		next:  next,
		log:   log.Named("cache"),
	}
}

// Warm loads every key under prefix.
func (c *Backend) Warm(ctx context.Context, prefix string) error {
	keys, err := c.next.Keys(ctx, prefix)
	if err != nil {
		return err
	}

	loaded := make(map[string]string, len(keys))
	for _, key := range keys {
		value, err := c.next.Get(ctx, key)
		if errors.Is(err, kv.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		loaded[key] = value
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, value := range loaded {
		c.items[key] = value
	}
	c.log.Info("cache warmed", zap.String("prefix", prefix), zap.Int("keys", len(loaded)))
	return nil
}

func (c *Backend) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	value, found := c.items[key]
	c.mu.RUnlock()
	if found {
		return value, nil
	}

	value, err := c.next.Get(ctx, key)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.items[key] = value
	c.mu.Unlock()
	return value, nil
}

func (c *Backend) Set(ctx context.Context, key, value string) error {
	if err := c.next.Set(ctx, key, value); err != nil {
		c.Invalidate(key)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *Backend) Remove(ctx context.Context, key string) error {
	c.Invalidate(key)
	return c.next.Remove(ctx, key)
}

// Keys always asks the wrapped backend.
func (c *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	return c.next.Keys(ctx, prefix)
}

func (c *Backend) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.items[key]; found {
		delete(c.items, key)
		c.log.Debug("cache entry dropped", zap.String("key", key))
	}
}

func (c *Backend) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
