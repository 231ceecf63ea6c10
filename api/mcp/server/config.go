package server

import (
	"fmt"
	"log/slog"

	"github.com/malbeclabs/datachat/pkg/pipeline"
)

const defaultMaxRows = 100

type Config struct {
	Logger       *slog.Logger
	Orchestrator *pipeline.Orchestrator

	Version string
	// MaxRows caps the rows returned by the ask tool.
	MaxRows int
	// AllowedTokens enables bearer authentication when non-empty.
	AllowedTokens []string
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Orchestrator == nil {
		return fmt.Errorf("orchestrator is required")
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.MaxRows <= 0 {
		c.MaxRows = defaultMaxRows
	}
	return nil
}
