// Package store defines the blob store the workspace persists into, plus
// the concrete backends: in-memory, SQLite for the local desktop profile,
// and Postgres for a hosted deployment.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for a key that was never set.
	ErrNotFound = errors.New("store: key not found")

	// ErrQuotaExceeded is returned by Set when the write would push the
	// backend past its capacity. Callers are expected to degrade (shed
	// previews, fall back to a smaller payload) rather than fail hard.
	ErrQuotaExceeded = errors.New("store: quota exceeded")
)

// KV is a flat binary key-value store. Implementations must be safe for
// concurrent use.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Keys returns every stored key with the given prefix, unordered.
	Keys(ctx context.Context, prefix string) ([]string, error)

	Close() error
}
