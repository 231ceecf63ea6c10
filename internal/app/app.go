// Package app wires configuration into a ready-to-use orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/malbeclabs/datachat/pkg/cache"
	"github.com/malbeclabs/datachat/pkg/config"
	"github.com/malbeclabs/datachat/pkg/connector"
	"github.com/malbeclabs/datachat/pkg/connector/factory"
	"github.com/malbeclabs/datachat/pkg/llm"
	"github.com/malbeclabs/datachat/pkg/llm/anthropic"
	"github.com/malbeclabs/datachat/pkg/llm/ollama"
	"github.com/malbeclabs/datachat/pkg/llm/openai"
	"github.com/malbeclabs/datachat/pkg/pipeline"
	"github.com/malbeclabs/datachat/pkg/retrieval"
)

const (
	defaultOllamaChatModel = "llama3.1"
	memoryCacheCapacity    = 10_000
	embeddingCacheEntries  = 10_000
	llmMaxTries            = 3
)

// App holds the long-lived components built from a Config.
type App struct {
	log *slog.Logger
	cfg *config.Config

	Connector    connector.Connector
	Orchestrator *pipeline.Orchestrator
	Cache        *cache.Cache

	// Store and Embedder are nil when the knowledge base is unavailable.
	Store    *retrieval.SQLiteStore
	Embedder retrieval.Embedder

	closers []func() error
}

func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	a := &App{log: log, cfg: cfg}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	src, err := a.cfg.Active()
	if err != nil {
		return err
	}
	a.Connector, err = factory.New(ctx, a.log, src)
	if err != nil {
		return fmt.Errorf("failed to create connector: %w", err)
	}
	a.closers = append(a.closers, a.Connector.Close)

	completer, err := NewCompleter(a.log, a.cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create llm backend: %w", err)
	}
	provider, err := llm.NewProvider(llm.ProviderConfig{
		Logger:    a.log,
		Completer: llm.NewRetrying(a.log, completer, llmMaxTries),
		Pricing: llm.Pricing{
			InputPerMTok:  a.cfg.LLM.InputPricePerMTok,
			OutputPerMTok: a.cfg.LLM.OutputPricePerMTok,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create llm provider: %w", err)
	}
	a.log.Info("llm: provider initialized", "provider", a.cfg.LLM.Provider, "model", a.cfg.LLM.Model)

	store, err := NewCacheStore(a.cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to create cache store: %w", err)
	}
	a.Cache, err = cache.New(ctx, cache.Config{Logger: a.log, Store: store})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.Cache.Close)

	var retriever pipeline.Retriever
	if err := a.openKnowledgeBase(ctx); err != nil {
		a.log.Warn("retrieval: knowledge base unavailable, answering from data only", "error", err)
	} else {
		retriever = retrieval.NewRetriever(a.Embedder, a.Store)
	}

	a.Orchestrator, err = pipeline.New(pipeline.Config{
		Logger:                a.log,
		Connector:             a.Connector,
		LLM:                   provider,
		Retriever:             retriever,
		Cache:                 a.Cache,
		MaxRetries:            a.cfg.Pipeline.MaxRetries,
		SchemaCacheTTL:        a.cfg.Pipeline.SchemaCacheTTL,
		ResponseCacheTTL:      a.cfg.Pipeline.ResponseCacheTTL,
		SchemaSummaryCacheTTL: a.cfg.Pipeline.SchemaSummaryCacheTTL,
	})
	return err
}

func (a *App) openKnowledgeBase(ctx context.Context) error {
	path := a.cfg.Knowledge.VectorDBPath
	if path == "" {
		return errors.New("VECTOR_DB_PATH is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create vector db directory: %w", err)
		}
	}
	store, err := retrieval.OpenSQLiteStore(ctx, path)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, store.Close)

	client := ollama.New(a.cfg.Knowledge.OllamaURL, "", 0, 0)
	embedder, err := retrieval.NewCachedEmbedder(
		retrieval.NewOllamaEmbedder(a.log, client, a.cfg.Knowledge.EmbeddingModel),
		embeddingCacheEntries,
	)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { embedder.Close(); return nil })

	a.Store = store
	a.Embedder = embedder
	return nil
}

func (a *App) Config() *config.Config {
	return a.cfg
}

// NewIngester returns an ingester writing to the app's knowledge base.
func (a *App) NewIngester() (*retrieval.Ingester, error) {
	if a.Store == nil {
		return nil, errors.New("knowledge base is not available")
	}
	return retrieval.NewIngester(retrieval.IngesterConfig{
		Logger:   a.log,
		Embedder: a.Embedder,
		Store:    a.Store,
	})
}

// Close releases components in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewCompleter builds the completion backend named by cfg.Provider.
func NewCompleter(log *slog.Logger, cfg config.LLM) (llm.Completer, error) {
	maxTokens := int64(cfg.MaxTokens)
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		var opts []option.RequestOption
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(log, cfg.Model, maxTokens, cfg.Temperature, opts...), nil
	case "openai":
		return openai.New(openai.Config{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   maxTokens,
		})
	case "ollama":
		model := cfg.Model
		if model == "" {
			model = defaultOllamaChatModel
		}
		return ollama.New(cfg.BaseURL, model, maxTokens, cfg.Temperature), nil
	}
	return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
}

// NewCacheStore returns the response cache store for cfg.Backend, or nil when
// caching is turned off.
func NewCacheStore(cfg config.Cache) (cache.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryStore(memoryCacheCapacity), nil
	case "redis":
		return cache.NewRedisStore(cfg.RedisURL)
	}
	return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
}

// DocumentSource resolves an ingest target: an s3://bucket/prefix URI or a
// local directory.
func DocumentSource(ctx context.Context, target string) (retrieval.DocumentSource, error) {
	if bucket, prefix, ok := retrieval.ParseS3URI(target); ok {
		return retrieval.NewS3Source(ctx, retrieval.S3SourceConfig{Bucket: bucket, Prefix: prefix})
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", target, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", target)
	}
	return retrieval.LocalSource{Dir: target}, nil
}
