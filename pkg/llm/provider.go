package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type ProviderConfig struct {
	Logger    *slog.Logger
	Completer Completer
	Prompts   *Prompts
	// Pricing overrides the built-in per-model price list when non-zero.
	Pricing Pricing
}

func (cfg *ProviderConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Completer == nil {
		return errors.New("completer is required")
	}
	if cfg.Prompts == nil {
		p, err := LoadPrompts()
		if err != nil {
			return fmt.Errorf("failed to load prompts: %w", err)
		}
		cfg.Prompts = p
	}
	return nil
}

// Provider implements the task-level LLM operations on top of a Completer.
type Provider struct {
	log *slog.Logger
	cfg ProviderConfig
}

func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate provider config: %w", err)
	}
	return &Provider{log: cfg.Logger, cfg: cfg}, nil
}

func (p *Provider) ClassifyIntent(ctx context.Context, question string) (Response, error) {
	prompt := render(p.cfg.Prompts.ClassifyIntent, map[string]string{
		"QUESTION": question,
	})
	return p.call(ctx, TaskClassifyIntent, prompt, WithTemperature(0), WithMaxTokens(16))
}

func (p *Provider) GenerateSQL(ctx context.Context, question, schemaContext string) (Response, error) {
	prompt := render(p.cfg.Prompts.GenerateSQL, map[string]string{
		"QUESTION":       question,
		"SCHEMA_CONTEXT": schemaContext,
	})
	resp, err := p.call(ctx, TaskGenerateSQL, prompt, WithTemperature(0))
	if err != nil {
		return Response{}, err
	}
	resp.Content = ExtractSQL(resp.Content)
	return resp, nil
}

func (p *Provider) RefineSQL(ctx context.Context, sql, errorMessage, schemaContext string) (Response, error) {
	prompt := render(p.cfg.Prompts.RefineSQL, map[string]string{
		"SQL":            sql,
		"ERROR":          errorMessage,
		"SCHEMA_CONTEXT": schemaContext,
	})
	resp, err := p.call(ctx, TaskRefineSQL, prompt, WithTemperature(0))
	if err != nil {
		return Response{}, err
	}
	resp.Content = ExtractSQL(resp.Content)
	return resp, nil
}

func (p *Provider) InterpretResults(ctx context.Context, question, sql, resultsSummary string) (Response, error) {
	prompt := render(p.cfg.Prompts.InterpretResults, map[string]string{
		"QUESTION":        question,
		"SQL":             sql,
		"RESULTS_SUMMARY": resultsSummary,
	})
	return p.call(ctx, TaskInterpretResults, prompt, WithTemperature(0.3))
}

func (p *Provider) AnswerWithContext(ctx context.Context, question, documents string) (Response, error) {
	prompt := render(p.cfg.Prompts.AnswerWithContext, map[string]string{
		"QUESTION": question,
		"CONTEXT":  documents,
	})
	return p.call(ctx, TaskAnswerWithContext, prompt)
}

func (p *Provider) call(ctx context.Context, task Task, prompt string, opts ...CompleteOption) (Response, error) {
	start := time.Now()
	c, err := p.cfg.Completer.Complete(ctx, p.cfg.Prompts.System, prompt, opts...)
	duration := time.Since(start)
	RequestDuration.WithLabelValues(string(task)).Observe(duration.Seconds())
	if err != nil {
		RequestsTotal.WithLabelValues(string(task), "error").Inc()
		p.log.Error("llm: completion failed", "task", task, "duration", duration, "error", err)
		return Response{}, fmt.Errorf("%s completion failed: %w", task, err)
	}
	RequestsTotal.WithLabelValues(string(task), "ok").Inc()
	TokensTotal.WithLabelValues(string(task), "input").Add(float64(c.InputTokens))
	TokensTotal.WithLabelValues(string(task), "output").Add(float64(c.OutputTokens))

	pricing := p.cfg.Pricing
	if pricing.IsZero() {
		pricing = PricingFor(c.Model)
	}

	p.log.Debug("llm: completion", "task", task, "model", c.Model, "tokens", c.TotalTokens(), "duration", duration)

	return Response{
		Content:    strings.TrimSpace(c.Text),
		Task:       task,
		Model:      c.Model,
		TokensUsed: c.TotalTokens(),
		Cost:       pricing.Cost(c),
	}, nil
}
