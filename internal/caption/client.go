// Package caption asks an OpenAI-compatible chat-completions endpoint for a
// caption suggestion.
package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Suggester produces a caption for a piece of content.
type Suggester interface {
	Suggest(ctx context.Context, previewURL string) (string, error)
}

// ErrEmptyReply is returned when the model answered without content.
var ErrEmptyReply = errors.New("model returned no caption")

const systemPrompt = "You write one short, funny caption for the image the user links. Reply with the caption only, no quotes, at most 120 characters."

// Client is a minimal chat-completions client.
type Client struct {
	BaseURL string
	Token   string
	Model   string
	HTTP    *http.Client
}

// NewClient returns a Client with a timeout-bound, traced HTTP client.
func NewClient(baseURL, token, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Model:   model,
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body of /chat/completions.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatResponse is the subset of the completion response we read.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Suggest returns a single caption for previewURL.
func (c *Client) Suggest(ctx context.Context, previewURL string) (string, error) {
	body, err := json.Marshal(ChatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: previewURL},
		},
		MaxTokens:   60,
		Temperature: 0.9,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("llm status %d", resp.StatusCode)
	}

	var out ChatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	text := strings.Trim(strings.TrimSpace(out.Choices[0].Message.Content), `"`)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
