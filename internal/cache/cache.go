// Package cache stores serialized multi-option results keyed by prompt hash.
package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"
)

// KeyPrefix namespaces multi-option results.
const KeyPrefix = "multiopt:"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache store is closed")

// Store is a get/set-with-TTL byte store. A zero ttl means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Key returns the cache key for a final prompt string.
func Key(prompt string) string {
	sum := blake2b.Sum256([]byte(prompt))
	return KeyPrefix + hex.EncodeToString(sum[:])
}
