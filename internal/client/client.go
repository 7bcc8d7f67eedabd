// Package client talks to a running semester API: it waits for readiness,
// launches runs through the admin endpoint and polls their jobs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/talgya/semester-sim/internal/api"
	"github.com/talgya/semester-sim/internal/llm"
	"github.com/talgya/semester-sim/internal/persistence"
)

// Status mirrors GET /api/v1/status.
type Status struct {
	Name        string `json:"name"`
	Uptime      string `json:"uptime"`
	RunningJobs int    `json:"running_jobs"`
	StreamConns int    `json:"stream_conns"`
	LLM         bool   `json:"llm"`
	Admin       bool   `json:"admin"`
	LastRun     string `json:"last_run"`
}

// Client is an HTTP client for one API base URL.
type Client struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// New creates a client for baseURL. adminKey is only needed for Launch.
func New(baseURL, adminKey string) *Client {
	return &Client{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Code, strings.TrimSpace(e.Body))
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AdminKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.AdminKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Status fetches GET /api/v1/status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var s Status
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &s)
	return s, err
}

// Runs lists the newest stored runs.
func (c *Client) Runs(ctx context.Context, limit int) ([]persistence.Run, error) {
	var runs []persistence.Run
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/runs?limit=%d", limit), nil, &runs)
	return runs, err
}

// Launch starts a run. overrides uses the config file's keys; nil runs
// the server defaults.
func (c *Client) Launch(ctx context.Context, overrides map[string]any) (api.Job, error) {
	if overrides == nil {
		overrides = map[string]any{}
	}
	var job api.Job
	err := c.do(ctx, http.MethodPost, "/api/v1/runs", overrides, &job)
	return job, err
}

// Job fetches one job.
func (c *Client) Job(ctx context.Context, id string) (api.Job, error) {
	var job api.Job
	err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+id, nil, &job)
	return job, err
}

// WaitJob polls a job every interval until it leaves the running state.
// A failed job is returned along with an error.
func (c *Client) WaitJob(ctx context.Context, id string, interval time.Duration) (api.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return job, err
		}
		switch job.Status {
		case "done":
			return job, nil
		case "failed":
			return job, fmt.Errorf("job %s failed: %s", id, job.Error)
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Bulletin fetches the class bulletin of a run.
func (c *Client) Bulletin(ctx context.Context, runID string) (llm.Bulletin, error) {
	var b llm.Bulletin
	err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+runID+"/bulletin", nil, &b)
	return b, err
}

// WaitReady polls the status endpoint with exponential backoff until it
// responds or ctx ends.
func (c *Client) WaitReady(ctx context.Context, maxBackoff time.Duration) error {
	backoff := maxBackoff / 16
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	for {
		if _, err := c.Status(ctx); err == nil {
			slog.Info("API is ready", "url", c.BaseURL)
			return nil
		}
		slog.Info("API not ready, retrying...", "backoff", backoff)
		select {
		case <-ctx.Done():
			return fmt.Errorf("API at %s not ready: %w", c.BaseURL, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
