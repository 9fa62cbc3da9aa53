// Package backend talks to the HandSpeak model server.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"handspeak/core"
)

const (
	DefaultBaseURL = "http://localhost:5000"
	DefaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Config is shared by every backend endpoint client.
type Config struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	TimeoutMs int    `json:"timeout_ms" yaml:"timeout_ms"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		TimeoutMs: int(DefaultTimeout / time.Millisecond),
	}
}

func (c Config) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Client posts JSON bodies and decodes JSON replies. Every failure is a
// core.NetworkError.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: cfg.Timeout()},
	}
}

// WithHTTPClient swaps the transport, e.g. for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// errorReply is embedded by endpoint replies; the server reports failures as
// {"error": "..."} with or without a non-2xx status.
type errorReply struct {
	Error any `json:"error,omitempty"`
}

func (e errorReply) err() error {
	switch v := e.Error.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return errors.New(v)
	default:
		return fmt.Errorf("%v", v)
	}
}

// PostJSON sends req to path and decodes the reply into resp.
func (c *Client) PostJSON(ctx context.Context, op, path string, req, resp any) error {
	body, err := sonic.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return core.NewNetworkError(op, 0, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return core.NewNetworkError(op, httpResp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var reply errorReply
		if sonic.Unmarshal(data, &reply) == nil && reply.err() != nil {
			return core.NewNetworkError(op, httpResp.StatusCode, reply.err())
		}
		return core.NewNetworkError(op, httpResp.StatusCode, fmt.Errorf("unexpected status: %s", truncate(data)))
	}

	if err := sonic.Unmarshal(data, resp); err != nil {
		return core.NewNetworkError(op, httpResp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
