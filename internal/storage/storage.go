package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/kv"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/metrics"
)

const DefaultNamespace = "mendoza_wine"

var (
	ErrNotFound     = errors.New("not found")
	ErrStorage      = errors.New("storage failure")
	ErrInvalidPatch = errors.New("invalid patch")
	ErrUnknownKind  = errors.New("unknown data kind")
)

// Kind names one of the collections kept under the namespace.
type Kind string

const (
	KindBookings    Kind = "bookings"
	KindFavorites   Kind = "favorites"
	KindPreferences Kind = "preferences"
)

var kinds = []Kind{KindBookings, KindFavorites, KindPreferences}

func (k Kind) IsValid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Storage keeps bookings, favorites and preferences as JSON documents under
// namespaced keys of a kv.Backend. Read-modify-write cycles are serialized
// inside the process; writers in other processes still race last-write-wins.
type Storage struct {
	backend   kv.Backend
	namespace string
	log       *zap.Logger
	timeNow   func() time.Time

	mu sync.Mutex
}

type Option func(*Storage)

func WithNamespace(namespace string) Option {
	return func(s *Storage) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Storage) {
		if log != nil {
			s.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.timeNow = now
		}
	}
}

func New(backend kv.Backend, opts ...Option) *Storage {
	s := &Storage{
		backend:   backend,
		namespace: DefaultNamespace,
		log:       zap.NewNop(),
		timeNow:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("namespace", s.namespace))
	return s
}

func (s *Storage) Namespace() string {
	return s.namespace
}

func (s *Storage) key(kind Kind) string {
	return s.namespace + "_" + string(kind)
}

func (s *Storage) storageError(op, key string, err error) error {
	metrics.StorageErrorsTotal.WithLabelValues(op).Inc()
	s.log.Error("storage operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %s %s: %w", ErrStorage, op, key, err)
}

// read decodes the document stored for kind into a fresh T. Absent keys and
// undecodable values both yield the zero T; only backend faults are errors.
func read[T any](ctx context.Context, s *Storage, kind Kind) (T, error) {
	var out T
	key := s.key(kind)

	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		s.log.Debug("no stored data", zap.String("key", key))
		return out, nil
	}
	if err != nil {
		return out, s.storageError("get", key, err)
	}

	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		metrics.MalformedDataTotal.WithLabelValues(key).Inc()
		s.log.Warn("malformed data", zap.String("key", key), zap.Error(err))
		var zero T
		return zero, nil
	}
	return out, nil
}

func (s *Storage) write(ctx context.Context, kind Kind, value interface{}) error {
	key := s.key(kind)

	data, err := json.Marshal(value)
	if err != nil {
		return s.storageError("encode", key, err)
	}
	if err := s.backend.Set(ctx, key, string(data)); err != nil {
		return s.storageError("set", key, err)
	}
	return nil
}

func (s *Storage) remove(ctx context.Context, kind Kind) error {
	key := s.key(kind)
	if err := s.backend.Remove(ctx, key); err != nil {
		return s.storageError("remove", key, err)
	}
	return nil
}

// Clear drops one collection entirely.
func (s *Storage) Clear(ctx context.Context, kind Kind) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.remove(ctx, kind); err != nil {
		return err
	}
	if kind == KindFavorites {
		metrics.FavoritesItems.Set(0)
	}
	s.log.Info("collection cleared", zap.String("kind", string(kind)))
	return nil
}

// ClearAll removes every collection of the namespace. It stops at the first
// failing removal.
func (s *Storage) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kind := range kinds {
		if err := s.remove(ctx, kind); err != nil {
			return err
		}
	}
	metrics.FavoritesItems.Set(0)
	s.log.Info("namespace cleared")
	return nil
}

// availabilityKey sits outside every namespace prefix so Stats never counts it.
const availabilityKey = "__winetour_available__"

// Available reports whether the backend accepts a write and a removal.
func (s *Storage) Available(ctx context.Context) bool {
	if err := s.backend.Set(ctx, availabilityKey, "1"); err != nil {
		s.log.Warn("storage availability check failed", zap.Error(err))
		return false
	}
	if err := s.backend.Remove(ctx, availabilityKey); err != nil {
		s.log.Warn("storage availability cleanup failed", zap.Error(err))
		return false
	}
	return true
}
