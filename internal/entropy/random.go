// Package entropy draws run seeds from random.org, falling back to
// crypto/rand when no API key is configured or the API is unavailable.
package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultEndpoint = "https://api.random.org/json-rpc/4/invoke"

// Client requests seeds from random.org.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// WithEndpoint points the client at another JSON-RPC endpoint.
func (c *Client) WithEndpoint(url string) *Client {
	if c != nil {
		c.endpoint = url
	}
	return c
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Seed returns a non-zero 62-bit seed. A nil client, or any API failure,
// falls back to crypto/rand.
func (c *Client) Seed(ctx context.Context) int64 {
	if c.Enabled() {
		s, err := c.fetch(ctx)
		if err == nil {
			return s
		}
		slog.Debug("random.org seed failed, using crypto/rand", "error", err)
	}
	return CryptoSeed()
}

func (c *Client) fetch(ctx context.Context) (int64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      2,
			"min":    0,
			"max":    1<<31 - 1,
		},
		"id": 1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(hreq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	if result.Error != nil {
		return 0, errors.New(result.Error.Message)
	}
	data := result.Result.Random.Data
	if len(data) < 2 {
		return 0, fmt.Errorf("expected 2 integers, got %d", len(data))
	}

	seed := data[0]<<31 | data[1]
	if seed == 0 {
		return 0, errors.New("zero seed")
	}
	slog.Debug("seed drawn from random.org", "seed", seed)
	return seed, nil
}

// CryptoSeed returns a non-zero 62-bit seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return time.Now().UnixNano() >> 2
		}
		if s := int64(binary.LittleEndian.Uint64(buf[:]) >> 2); s != 0 {
			return s
		}
	}
}
