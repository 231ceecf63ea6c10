package llm

import (
	"context"
	"errors"
)

// Task identifies which operation produced a response.
type Task string

const (
	TaskClassifyIntent    Task = "classify_intent"
	TaskGenerateSQL       Task = "generate_sql"
	TaskRefineSQL         Task = "refine_sql"
	TaskInterpretResults  Task = "interpret_results"
	TaskAnswerWithContext Task = "answer_with_context"
)

var ErrEmptyResponse = errors.New("empty response from model")

// Completer is a chat completion backend.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (Completion, error)
}

// Completion is the raw output of one backend call.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

func (c Completion) TotalTokens() int64 {
	return c.InputTokens + c.OutputTokens
}

// CompleteOptions holds per-call overrides of the backend defaults.
type CompleteOptions struct {
	Temperature *float64
	MaxTokens   int64
}

type CompleteOption func(*CompleteOptions)

func WithTemperature(t float64) CompleteOption {
	return func(o *CompleteOptions) {
		o.Temperature = &t
	}
}

func WithMaxTokens(n int64) CompleteOption {
	return func(o *CompleteOptions) {
		o.MaxTokens = n
	}
}

// ApplyOptions resolves opts against backend defaults.
func ApplyOptions(defaultTemp float64, defaultMaxTokens int64, opts ...CompleteOption) CompleteOptions {
	o := CompleteOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Temperature == nil {
		o.Temperature = &defaultTemp
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	return o
}

// Response is the result of a task-level operation.
type Response struct {
	Content    string  `json:"content"`
	Task       Task    `json:"task"`
	Model      string  `json:"model"`
	TokensUsed int64   `json:"tokens_used"`
	Cost       float64 `json:"cost"`
}
