package cache

import (
	"errors"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache is a cache implementation using Ristretto.
type RistrettoCache struct {
	cache  *ristretto.Cache
	name   string
	logger *zap.Logger
}

// RistrettoConfig holds configuration for Ristretto cache.
type RistrettoConfig struct {
	Name        string // metrics label
	NumCounters int64  // Number of keys to track frequency (10x max items)
	MaxCost     int64  // Maximum cost of cache (in items)
	BufferItems int64  // Number of keys per Get buffer
	Logger      *zap.Logger
}

// DefaultMetadataConfig sizes a cache for a handful of token metadata entries.
func DefaultMetadataConfig(logger *zap.Logger) *RistrettoConfig {
	return &RistrettoConfig{
		Name:        "token-metadata",
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	}
}

// NewRistrettoCache creates a new Ristretto-backed cache.
func NewRistrettoCache(cfg *RistrettoConfig) (Cache, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{
		cache:  cache,
		name:   name,
		logger: logger,
	}, nil
}

// Get retrieves a value from the cache.
func (r *RistrettoCache) Get(key string) (interface{}, bool) {
	value, found := r.cache.Get(key)
	if found {
		CacheHitsTotal.WithLabelValues(r.name).Inc()
		r.logger.Debug("cache-hit", zap.String("cache", r.name), zap.String("key", key))
	} else {
		CacheMissesTotal.WithLabelValues(r.name).Inc()
		r.logger.Debug("cache-miss", zap.String("cache", r.name), zap.String("key", key))
	}
	return value, found
}

// Set stores a value in the cache with a TTL.
func (r *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	// Cost = 1 (we're counting items, not bytes)
	success := r.cache.SetWithTTL(key, value, 1, ttl)
	if success {
		// Metadata is read back right after it is fetched.
		r.cache.Wait()
		CacheSetsTotal.WithLabelValues(r.name).Inc()
		r.logger.Debug("cache-set",
			zap.String("cache", r.name),
			zap.String("key", key),
			zap.Duration("ttl", ttl))
	}
	return success
}

// Delete removes a value from the cache.
func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
	CacheDeletesTotal.WithLabelValues(r.name).Inc()
	r.logger.Debug("cache-delete", zap.String("cache", r.name), zap.String("key", key))
}

// Clear removes all values from the cache.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("cache-cleared", zap.String("cache", r.name))
}

// Close closes the cache and releases resources.
func (r *RistrettoCache) Close() {
	r.cache.Close()
	r.logger.Info("cache-closed", zap.String("cache", r.name))
}

// Metrics returns Ristretto's internal metrics.
func (r *RistrettoCache) Metrics() *ristretto.Metrics {
	return r.cache.Metrics
}

// Wait blocks until all pending writes have been applied.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}
