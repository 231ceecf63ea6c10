package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultResponseTTL      = 300 * time.Second
	DefaultSchemaSummaryTTL = 3600 * time.Second
)

type Config struct {
	Logger *slog.Logger
	// Store may be nil, which disables caching.
	Store Store
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Cache wraps a Store and degrades to a pass-through when the store is
// missing or unreachable. Store errors are logged, never returned.
type Cache struct {
	log     *slog.Logger
	store   Store
	enabled bool
}

// New creates a cache over cfg.Store. The cache is disabled when the store
// is nil or fails its ping.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate cache config: %w", err)
	}
	c := &Cache{log: cfg.Logger, store: cfg.Store}
	if cfg.Store == nil {
		c.log.Info("cache: no store configured, caching disabled")
		return c, nil
	}
	if err := cfg.Store.Ping(ctx); err != nil {
		c.log.Warn("cache: store unavailable, caching disabled", "error", err)
		return c, nil
	}
	c.enabled = true
	return c, nil
}

// Disabled returns a cache that never stores anything.
func Disabled(log *slog.Logger) *Cache {
	return &Cache{log: log}
}

// Enabled reports whether values are stored.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// Get returns the value stored under key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}
	b, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return nil, false
	}
	if err != nil {
		c.log.Error("cache: get failed", "key", key, "error", err)
		return nil, false
	}
	return b, true
}

// Set stores value under key for ttl and reports whether it was stored.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if !c.Enabled() {
		return false
	}
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.log.Error("cache: set failed", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}

// Key derives a stable key: prefix + ":" + md5(function + ":" + JSON(args)).
func Key(prefix, function string, args ...any) (string, error) {
	if args == nil {
		args = []any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key args: %w", err)
	}
	sum := md5.Sum(append([]byte(function+":"), payload...))
	return prefix + ":" + hex.EncodeToString(sum[:]), nil
}
