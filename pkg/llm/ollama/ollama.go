package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/malbeclabs/datachat/pkg/llm"
)

const (
	DefaultURL        = "http://localhost:11434"
	DefaultEmbedModel = "nomic-embed-text"
)

// Client talks to a local Ollama server. It implements llm.Completer over
// /api/chat and exposes /api/embed for document retrieval.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int64
	httpClient  *http.Client
}

var _ llm.Completer = (*Client)(nil)

func New(baseURL, model string, maxTokens int64, temperature float64) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int64   `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string      `json:"model"`
	Messages []message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Options  chatOptions `json:"options"`
}

type chatResponse struct {
	Model           string  `json:"model"`
	Message         message `json:"message"`
	PromptEvalCount int64   `json:"prompt_eval_count"`
	EvalCount       int64   `json:"eval_count"`
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...llm.CompleteOption) (llm.Completion, error) {
	o := llm.ApplyOptions(c.temperature, c.maxTokens, opts...)

	var result chatResponse
	err := c.post(ctx, "/api/chat", chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Options: chatOptions{Temperature: *o.Temperature, NumPredict: o.MaxTokens},
	}, &result)
	if err != nil {
		return llm.Completion{}, fmt.Errorf("chat: %w", err)
	}
	if strings.TrimSpace(result.Message.Content) == "" {
		return llm.Completion{}, llm.ErrEmptyResponse
	}

	model := result.Model
	if model == "" {
		model = c.model
	}
	return llm.Completion{
		Text:         result.Message.Content,
		Model:        model,
		InputTokens:  result.PromptEvalCount,
		OutputTokens: result.EvalCount,
	}, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding vector for text using the given model.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if model == "" {
		model = DefaultEmbedModel
	}
	var result embedResponse
	if err := c.post(ctx, "/api/embed", embedRequest{Model: model, Input: text}, &result); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("embed: empty embeddings array")
	}
	return result.Embeddings[0], nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &llm.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
