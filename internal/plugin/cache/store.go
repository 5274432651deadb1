// Package cache provides the "cache" capability provider: a key/value store
// backed by process memory or Redis. Values are stored as JSON so any
// runtime value round-trips.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented cache backend.
type Store interface {
	// Get retrieves a value, returning ErrMiss when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value; a zero ttl uses the store default, a negative ttl never expires
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error

	// Clear removes every value under the store prefix
	Clear(ctx context.Context) error

	// Exists checks whether a live value is stored
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases backend resources
	Close() error
}

// StoreConfig holds settings common to every backend.
type StoreConfig struct {
	// DefaultTTL applies when Set is called with a zero ttl
	DefaultTTL time.Duration
	// Prefix namespaces keys
	Prefix string
}

// DefaultStoreConfig returns the default store settings.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "sigmos:",
	}
}
