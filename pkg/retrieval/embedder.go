package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dgraph-io/ristretto"
	"github.com/malbeclabs/datachat/pkg/llm"
)

// EmbedClient is the subset of the Ollama client used for embeddings.
type EmbedClient interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// OllamaEmbedder embeds text with a fixed model, retrying transient failures.
type OllamaEmbedder struct {
	log      *slog.Logger
	client   EmbedClient
	model    string
	maxTries uint
	interval time.Duration
}

func NewOllamaEmbedder(log *slog.Logger, client EmbedClient, model string) *OllamaEmbedder {
	return &OllamaEmbedder{log: log, client: client, model: model, maxTries: 3, interval: 250 * time.Millisecond}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.interval
	return backoff.Retry(ctx, func() ([]float32, error) {
		vec, err := e.client.Embed(ctx, e.model, text)
		if err == nil {
			return vec, nil
		}
		var se *llm.StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, backoff.Permanent(err)
		}
		e.log.Warn("retrieval: embed attempt failed", "model", e.model, "error", err)
		return nil, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(e.maxTries))
}

// CachedEmbedder memoizes embeddings by text.
type CachedEmbedder struct {
	next  Embedder
	cache *ristretto.Cache
}

func NewCachedEmbedder(next Embedder, maxEntries int64) (*CachedEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, 1)
	return vec, nil
}

// Wait blocks until pending cache writes are visible.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}

func (c *CachedEmbedder) Close() {
	c.cache.Close()
}
