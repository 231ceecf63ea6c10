package cache

import (
	"context"
	"time"
)

// Memo caches the results of one function.
type Memo[T any] struct {
	Cache    *Cache
	Prefix   string
	Function string
	TTL      time.Duration
	Codec    Codec[T]
	// ShouldCache, when set, vetoes storing a result.
	ShouldCache func(T) bool
}

// Call returns the cached result for args if present, otherwise runs fn
// and stores its result. Errors from fn are returned and never cached.
func (m *Memo[T]) Call(ctx context.Context, fn func(context.Context) (T, error), args ...any) (T, error) {
	if !m.Cache.Enabled() {
		return fn(ctx)
	}
	log := m.Cache.log

	key, err := Key(m.Prefix, m.Function, args...)
	if err != nil {
		log.Warn("cache: skipping", "prefix", m.Prefix, "error", err)
		LookupsTotal.WithLabelValues(m.Prefix, resultError).Inc()
		return fn(ctx)
	}

	if b, ok := m.Cache.Get(ctx, key); ok {
		v, err := m.Codec.Decode(b)
		if err == nil {
			LookupsTotal.WithLabelValues(m.Prefix, resultHit).Inc()
			log.Debug("cache: hit", "prefix", m.Prefix, "key", key)
			return v, nil
		}
		log.Warn("cache: failed to decode entry", "key", key, "error", err)
		LookupsTotal.WithLabelValues(m.Prefix, resultError).Inc()
	} else {
		LookupsTotal.WithLabelValues(m.Prefix, resultMiss).Inc()
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	if m.ShouldCache != nil && !m.ShouldCache(v) {
		LookupsTotal.WithLabelValues(m.Prefix, resultSkip).Inc()
		return v, nil
	}

	b, err := m.Codec.Encode(v)
	if err != nil {
		log.Warn("cache: failed to encode result", "prefix", m.Prefix, "error", err)
		LookupsTotal.WithLabelValues(m.Prefix, resultError).Inc()
		return v, nil
	}
	if m.Cache.Set(ctx, key, b, m.TTL) {
		LookupsTotal.WithLabelValues(m.Prefix, resultStore).Inc()
	}
	return v, nil
}
