package llm

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

	"NewsAgent/internal/config"
	"NewsAgent/internal/ports"
)

// ErrEmptyReply is returned when the endpoint answers without any choices.
var ErrEmptyReply = errors.New("chat completion returned no content")

// Client implements ports.ChatClient against an OpenAI-compatible
// /chat/completions endpoint (Ollama, vLLM, OpenAI).
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ ports.ChatClient = (*Client)(nil)

// NewClient builds a client from configuration. Per-call deadlines come from ctx.
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the trimmed reply text.
func (c *Client) Complete(ctx context.Context, req ports.ChatRequest) (string, error) {
	if c == nil || c.endpoint == "/chat/completions" {
		return "", fmt.Errorf("chat client misconfigured")
	}
	if req.Model == "" {
		return "", fmt.Errorf("chat request without model")
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(chatPayload{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat completion error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", ErrEmptyReply
	}

	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
