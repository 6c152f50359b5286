// Package anthropic adapts the Anthropic Messages API to ai.Client.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bryanwahyu/essay-workshop/internal/domain/ai"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 2048
)

type Client struct {
	client anthropic.Client
	model  string
}

func NewClient(apiKey, model, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// retries are owned by the caller policy
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{client: anthropic.NewClient(opts...), model: model}, nil
}

// Complete implements ai.Client. The Messages API has no JSON mode, so
// JSONMode only adds a reminder to the system prompt.
func (c *Client) Complete(ctx context.Context, in ai.Request) (ai.Response, error) {
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	system := in.System
	if in.JSONMode {
		system += "\n\nRespond with the JSON object only."
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(in.User)),
		},
		Temperature: anthropic.Float(in.Temperature),
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return ai.Response{}, classify(err)
	}
	slog.DebugContext(ctx, "anthropic message completed",
		"model", c.model,
		"purpose", in.Purpose,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason)

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := ai.Response{
		Text:             text.String(),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}
	if strings.TrimSpace(out.Text) == "" {
		return out, ai.ErrEmptyResponse
	}
	return out, nil
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic: messages: %w", err)
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("anthropic: %w: %v", ai.ErrQuotaExceeded, err)
	case apiErr.StatusCode >= 500 || apiErr.StatusCode == 529:
		return fmt.Errorf("anthropic: %w: %v", ai.ErrTransient, err)
	case apiErr.StatusCode >= 400:
		return fmt.Errorf("anthropic: %w: %v", ai.ErrRejected, err)
	}
	return fmt.Errorf("anthropic: messages: %w", err)
}
