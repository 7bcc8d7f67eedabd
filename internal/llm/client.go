package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicAPI    = "2023-06-01"
	DefaultModel    = "claude-haiku-4-5-20251001"

	defaultCallsPerMinute = 20
)

// ErrBudget is returned when the per-minute call budget is spent.
var ErrBudget = errors.New("llm call budget exhausted")

// APIError is a non-200 answer from the Messages API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messages api %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Usage is the running token count of a client.
type Usage struct {
	Calls        int `json:"calls"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Client calls the Anthropic Messages API. A nil *Client is valid and
// disabled, so callers can hold one unconditionally.
type Client struct {
	apiKey   string
	endpoint string
	model    string
	http     *http.Client

	mu          sync.Mutex
	perMinute   int
	windowStart time.Time
	windowCalls int
	usage       Usage
}

// NewClient returns a client for apiKey, or nil when apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:    apiKey,
		endpoint:  defaultEndpoint,
		model:     DefaultModel,
		http:      &http.Client{Timeout: 30 * time.Second},
		perMinute: defaultCallsPerMinute,
	}
}

// WithEndpoint points the client at another Messages endpoint.
func (c *Client) WithEndpoint(url string) *Client {
	if c != nil {
		c.endpoint = url
	}
	return c
}

// WithModel selects the model; empty keeps the current one.
func (c *Client) WithModel(model string) *Client {
	if c != nil && model != "" {
		c.model = model
	}
	return c
}

// WithBudget sets the per-minute call budget.
func (c *Client) WithBudget(perMinute int) *Client {
	if c != nil && perMinute > 0 {
		c.perMinute = perMinute
	}
	return c
}

// Enabled reports whether calls will be attempted.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Usage returns the calls and tokens spent so far.
func (c *Client) Usage() Usage {
	if c == nil {
		return Usage{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// reserve takes one call from the current minute's budget.
func (c *Client) reserve(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.windowStart) >= time.Minute {
		c.windowStart = now
		c.windowCalls = 0
	}
	if c.windowCalls >= c.perMinute {
		return false
	}
	c.windowCalls++
	return true
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends one user prompt with a system prompt and returns the
// concatenated text blocks of the answer.
func (c *Client) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if !c.Enabled() {
		return "", errors.New("llm client not configured")
	}
	if !c.reserve(time.Now()) {
		return "", fmt.Errorf("%w (%d calls/min)", ErrBudget, c.perMinute)
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPI)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("messages call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	var out messagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode answer: %w", err)
	}
	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("answer has no text")
	}

	c.mu.Lock()
	c.usage.Calls++
	c.usage.InputTokens += out.Usage.InputTokens
	c.usage.OutputTokens += out.Usage.OutputTokens
	c.mu.Unlock()
	slog.Debug("llm call", "model", c.model, "input_tokens", out.Usage.InputTokens, "output_tokens", out.Usage.OutputTokens)

	return text.String(), nil
}
