//go:generate mockgen -source ./backend.go -destination=./mocks/backend.go -package=mock_kv
package kv

import (
	"context"
	"errors"
)

var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// DefaultQuotaBytes matches the usual browser local storage limit.
const DefaultQuotaBytes = 5 * 1024 * 1024

// Backend is a flat string namespace, the server-side counterpart of
// browser local storage.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
