package factories

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// SessionAPIConfig describes an HTTP endpoint that returns a SessionConfig JSON payload.
// Called per device session so a fleet can tune devices individually.
type SessionAPIConfig struct {
	// URL is the endpoint to request. The device id is added as ?device_id=.
	URL string `json:"url" yaml:"url"`
	// Method is the HTTP method. Defaults to "POST" when Body is set, "GET" otherwise.
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
	// Headers are additional HTTP headers to include in the request.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// Body is an optional JSON body to send with the request.
	Body string `json:"body,omitempty" yaml:"body,omitempty"`
}

var sessionAPIClient = &http.Client{Timeout: 10 * time.Second}

// Fetch calls the configured endpoint and parses the response as a SessionConfig.
func (c *SessionAPIConfig) Fetch(ctx context.Context, deviceID string) (SessionConfig, error) {
	method := c.Method
	if method == "" {
		if c.Body != "" {
			method = http.MethodPost
		} else {
			method = http.MethodGet
		}
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: %w", err)
	}
	if deviceID != "" {
		q := u.Query()
		q.Set("device_id", deviceID)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(c.Body))
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: %w", err)
	}
	if c.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := sessionAPIClient.Do(req)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SessionConfig{}, fmt.Errorf("session api: unexpected status %d from %s", resp.StatusCode, c.URL)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return SessionConfig{}, fmt.Errorf("session api: read response: %w", err)
	}

	return SessionConfigFromJSON(buf.Bytes())
}

// SettingsConfig is the top-level config loaded from settings.yaml or settings.json.
type SettingsConfig struct {
	// Transport configures the device WebSocket provider.
	Transport TransportFactoryConfig `json:"transport" yaml:"transport"`
	// EventsAddr is where UI clients connect for the event feed.
	EventsAddr string `json:"events_addr" yaml:"events_addr"`
	// DataDir holds the history database and recorded training data.
	DataDir string `json:"data_dir" yaml:"data_dir"`
	// LogDir, when set, receives one .jsonl log file per device session.
	LogDir string `json:"log_dir,omitempty" yaml:"log_dir,omitempty"`
	// SessionTimeoutSeconds bounds a single device session; zero means unbounded.
	SessionTimeoutSeconds int `json:"session_timeout_seconds,omitempty" yaml:"session_timeout_seconds,omitempty"`
	// SessionAPI, when set, is called per session to fetch the SessionConfig dynamically.
	SessionAPI *SessionAPIConfig `json:"session_api,omitempty" yaml:"session_api,omitempty"`
	// Session is the inline session config used when SessionAPI is unset or fails.
	Session SessionConfig `json:"session_config" yaml:"session_config"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with defaults.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Transport:  DefaultTransportFactoryConfig(),
		EventsAddr: ":19304",
		DataDir:    "data",
		Session:    DefaultSessionConfig(),
	}
}

// HistoryDir is where the history database lives.
func (s SettingsConfig) HistoryDir() string {
	return filepath.Join(s.DataDir, "history")
}

// SettingsConfigFromJSON parses a JSON blob on top of the defaults.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromYAML parses a YAML blob on top of the defaults.
func SettingsConfigFromYAML(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromFile reads a SettingsConfig, choosing the format from the
// file extension. Unknown extensions are parsed as YAML, which also accepts JSON.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return SettingsConfigFromJSON(data)
	}
	return SettingsConfigFromYAML(data)
}
