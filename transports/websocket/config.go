package websocket

// Config holds the configuration for the device WebSocket server
type Config struct {
	// Listen address, e.g. ":19305"
	Addr string `yaml:"addr" json:"addr"`

	// Device endpoint path; the device id is passed as ?device_id=
	Path string `yaml:"path" json:"path"`

	// Liveness endpoint path
	HealthPath string `yaml:"health_path" json:"health_path"`

	// Concurrent device sessions accepted before new ones are refused
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`

	// Read buffer size for WebSocket connections (bytes)
	ReadBufferSize int `yaml:"read_buffer_size" json:"read_buffer_size"`

	// Write buffer size for WebSocket connections (bytes)
	WriteBufferSize int `yaml:"write_buffer_size" json:"write_buffer_size"`

	// Maximum message size (bytes)
	MaxMessageSize int64 `yaml:"max_message_size" json:"max_message_size"`

	// Enable TLS/SSL
	EnableTLS   bool   `yaml:"enable_tls" json:"enable_tls"`
	TLSCertFile string `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file" json:"tls_key_file"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":19305",
		Path:            "/device",
		HealthPath:      "/health",
		MaxSessions:     1,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		MaxMessageSize:  8192,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Addr == "" {
		out.Addr = d.Addr
	}
	if out.Path == "" {
		out.Path = d.Path
	}
	if out.HealthPath == "" {
		out.HealthPath = d.HealthPath
	}
	if out.MaxSessions <= 0 {
		out.MaxSessions = d.MaxSessions
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	return &out
}
