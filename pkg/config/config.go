package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultActiveSource = "local_sqlite"
	DefaultSourcesFile  = "config/sources.yaml"

	DefaultMaxRetries            = 3
	DefaultSchemaCacheTTL        = 300 * time.Second
	DefaultResponseCacheTTL      = 300 * time.Second
	DefaultSchemaSummaryCacheTTL = 3600 * time.Second

	DefaultLLMMaxTokens   = 2000
	DefaultLLMTemperature = 0.1
)

var ErrUnknownSource = errors.New("unknown source")

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

type Config struct {
	ActiveSource string
	SourcesFile  string
	Sources      map[string]Source

	LLM       LLM
	Pipeline  Pipeline
	Cache     Cache
	Knowledge Knowledge
}

type LLM struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64

	InputPricePerMTok  float64
	OutputPricePerMTok float64
}

type Pipeline struct {
	MaxRetries            int
	SchemaCacheTTL        time.Duration
	ResponseCacheTTL      time.Duration
	SchemaSummaryCacheTTL time.Duration
}

type Cache struct {
	// Backend is one of memory, redis or none.
	Backend  string
	RedisURL string
}

type Knowledge struct {
	VectorDBPath   string
	EmbeddingModel string
	OllamaURL      string
	DocsDir        string
}

// Active returns the configured active source.
func (c *Config) Active() (Source, error) {
	src, ok := c.Sources[c.ActiveSource]
	if !ok {
		return Source{}, fmt.Errorf("%w: %q", ErrUnknownSource, c.ActiveSource)
	}
	return src, nil
}

// Load reads configuration from the environment and the sources file.
// A missing sources file is not an error; the legacy DB_TYPE variables are
// used to describe the active source instead.
func Load(lookup LookupFunc) (*Config, error) {
	env := envReader{lookup: lookup}

	cfg := &Config{
		ActiveSource: env.getString("ACTIVE_SOURCE", DefaultActiveSource),
		SourcesFile:  env.getString("SOURCES_FILE", DefaultSourcesFile),
		LLM: LLM{
			Provider: strings.ToLower(env.getString("LLM_PROVIDER", "anthropic")),
			Model:    env.getString("LLM_MODEL", ""),
			BaseURL:  env.getString("LLM_BASE_URL", ""),
			APIKey:   env.getString("OPENAI_API_KEY", ""),
		},
		Cache: Cache{
			Backend:  strings.ToLower(env.getString("CACHE_BACKEND", "memory")),
			RedisURL: env.getString("REDIS_URL", ""),
		},
		Knowledge: Knowledge{
			VectorDBPath:   env.getString("VECTOR_DB_PATH", "data/vectors.db"),
			EmbeddingModel: env.getString("EMBEDDING_MODEL", "nomic-embed-text"),
			OllamaURL:      env.getString("OLLAMA_URL", "http://localhost:11434"),
			DocsDir:        env.getString("DOCS_DIR", "docs"),
		},
	}

	cfg.LLM.MaxTokens = env.getInt("LLM_MAX_TOKENS", DefaultLLMMaxTokens)
	cfg.LLM.Temperature = env.getFloat("LLM_TEMPERATURE", DefaultLLMTemperature)
	cfg.LLM.InputPricePerMTok = env.getFloat("LLM_INPUT_PRICE_PER_MTOK", 0)
	cfg.LLM.OutputPricePerMTok = env.getFloat("LLM_OUTPUT_PRICE_PER_MTOK", 0)
	cfg.Pipeline.MaxRetries = env.getInt("MAX_RETRIES", DefaultMaxRetries)
	cfg.Pipeline.SchemaCacheTTL = env.getDuration("SCHEMA_CACHE_TTL", DefaultSchemaCacheTTL)
	cfg.Pipeline.ResponseCacheTTL = env.getDuration("RESPONSE_CACHE_TTL", DefaultResponseCacheTTL)
	cfg.Pipeline.SchemaSummaryCacheTTL = env.getDuration("SCHEMA_SUMMARY_CACHE_TTL", DefaultSchemaSummaryCacheTTL)
	if env.err != nil {
		return nil, env.err
	}

	sources, err := LoadSources(cfg.SourcesFile, lookup)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg.Sources = sources
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]Source)
	}

	if _, ok := cfg.Sources[cfg.ActiveSource]; !ok {
		if legacy, ok := legacySource(env); ok {
			legacy.Name = cfg.ActiveSource
			cfg.Sources[cfg.ActiveSource] = legacy
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai", "ollama":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.Cache.Backend)
	}
	if c.Pipeline.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.Pipeline.MaxRetries)
	}
	return nil
}

// legacySource builds a source from DB_TYPE and DATABASE_PATH/DATABASE_URL.
func legacySource(env envReader) (Source, bool) {
	dbType := env.getString("DB_TYPE", "")
	if dbType == "" {
		return Source{}, false
	}
	params := map[string]string{}
	if v := env.getString("DATABASE_PATH", ""); v != "" {
		params["path"] = v
	}
	if v := env.getString("DATABASE_URL", ""); v != "" {
		params["url"] = v
	}
	return Source{Type: strings.ToLower(dbType), Config: params}, true
}

type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) getString(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) getInt(key string, def int) int {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s=%q: %w", key, v, err))
		return def
	}
	return i
}

func (e *envReader) getFloat(key string, def float64) float64 {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s=%q: %w", key, v, err))
		return def
	}
	return f
}

// getDuration accepts Go durations ("5m") or a bare number of seconds ("300").
func (e *envReader) getDuration(key string, def time.Duration) time.Duration {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s=%q: %w", key, v, err))
		return def
	}
	return d
}

func (e *envReader) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
