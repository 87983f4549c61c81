// Package cache provides pluggable key/value caches used to memoize token
// verification results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/benyonsports/docstore/internal/config"
)

// ErrCacheMiss is returned when a key is not present in the cache.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte-oriented cache with per-entry TTLs.
type Cache interface {
	// Get retrieves a value. Returns ErrCacheMiss when absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL. A non-positive TTL stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// New builds a Cache from configuration. Callers should only invoke this
// when caching is enabled.
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case config.CacheTypeMemory, "":
		return NewMemory(cfg.MaxEntries), nil
	case config.CacheTypeRedis:
		return NewRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

// HashKey derives a fixed-length cache key from sensitive material such as
// a bearer token, so raw credentials never reach the cache backend.
func HashKey(material string) string {
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}
