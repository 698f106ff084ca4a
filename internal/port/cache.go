package port

import (
	"context"
	"time"
)

// CacheBackend stores serialized values under string keys with a TTL.
// Implementations must never return an expired entry.
type CacheBackend interface {
	// Get returns the value for key and whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key until ttl elapses
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeletePrefix removes every key starting with prefix
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// PurgeExpired reclaims space held by expired entries
	PurgeExpired(ctx context.Context) (int, error)

	// Close releases backend resources
	Close() error
}
