package anthropic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/malbeclabs/datachat/pkg/llm"
)

const DefaultModel = anthropic.Model("claude-sonnet-4-5")

// Client implements llm.Completer using the Anthropic Messages API. The API
// key is read from ANTHROPIC_API_KEY by the SDK unless given explicitly.
type Client struct {
	log         *slog.Logger
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

var _ llm.Completer = (*Client)(nil)

func New(log *slog.Logger, model string, maxTokens int64, temperature float64, opts ...option.RequestOption) *Client {
	m := anthropic.Model(model)
	if model == "" {
		m = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &Client{
		log:         log,
		client:      anthropic.NewClient(opts...),
		model:       m,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...llm.CompleteOption) (llm.Completion, error) {
	o := llm.ApplyOptions(c.temperature, c.maxTokens, opts...)

	start := time.Now()
	c.log.Debug("anthropic: request", "model", c.model, "maxTokens", o.MaxTokens, "userPromptLen", len(userPrompt))

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   o.MaxTokens,
		Temperature: anthropic.Float(*o.Temperature),
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	duration := time.Since(start)
	if err != nil {
		return llm.Completion{}, fmt.Errorf("anthropic API error: %w", err)
	}
	c.log.Debug("anthropic: response", "duration", duration, "stopReason", msg.StopReason)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return llm.Completion{
				Text:         block.Text,
				Model:        string(msg.Model),
				InputTokens:  msg.Usage.InputTokens,
				OutputTokens: msg.Usage.OutputTokens,
			}, nil
		}
	}
	return llm.Completion{}, llm.ErrEmptyResponse
}
