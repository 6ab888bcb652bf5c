package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]string
	size  int
	quota int
}

// NewMemoryBackend keeps everything in process memory. A quota of zero or
// less disables the size limit.
func NewMemoryBackend(quota int) *MemoryBackend {
	return &MemoryBackend{
		items: make(map[string]string),
		quota: quota,
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, found := b.items[key]
	if !found {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	newSize := b.size + len(key) + len(value)
	if old, found := b.items[key]; found {
		newSize -= len(key) + len(old)
	}
	if b.quota > 0 && newSize > b.quota {
		return ErrQuotaExceeded
	}

	b.items[key] = value
	b.size = newSize
	return nil
}

func (b *MemoryBackend) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, found := b.items[key]; found {
		b.size -= len(key) + len(old)
		delete(b.items, key)
	}
	return nil
}

func (b *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.items))
	for key := range b.items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Size reports the bytes currently held, keys included.
func (b *MemoryBackend) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}
