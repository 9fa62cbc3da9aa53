package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"handspeak/core"
	"handspeak/handlers/transport"
)

// DeviceTransportProvider accepts device connections and runs the registered
// job handler once per connection.
type DeviceTransportProvider struct {
	config     *Config
	logger     *core.Logger
	server     *http.Server
	upgrader   websocket.Upgrader
	jobHandler func(svc transport.ITransportService, ctx context.Context) error

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc

	connections   map[string]*DeviceService
	connectionsMu sync.Mutex
}

// NewDeviceTransportProvider creates a new provider. A nil config uses defaults.
func NewDeviceTransportProvider(config *Config, logger *core.Logger) *DeviceTransportProvider {
	config = config.withDefaults()
	if logger == nil {
		logger = core.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DeviceTransportProvider{
		config: config,
		logger: logger.With(map[string]any{"component": "device-transport"}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // devices connect from arbitrary origins
			},
		},
		ctx:         ctx,
		cancel:      cancel,
		connections: make(map[string]*DeviceService),
	}
}

// Handler exposes the routes without starting a listener.
func (p *DeviceTransportProvider) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(p.config.Path, p.handleDevice)
	mux.HandleFunc(p.config.HealthPath, p.handleHealth)
	return mux
}

// Start implements ITransportProvider.Start
func (p *DeviceTransportProvider) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("provider already running")
	}
	if p.jobHandler == nil {
		return fmt.Errorf("no job handler registered")
	}

	p.server = &http.Server{
		Addr:              p.config.Addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if p.config.EnableTLS {
			err = p.server.ListenAndServeTLS(p.config.TLSCertFile, p.config.TLSKeyFile)
		} else {
			err = p.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.With(map[string]any{"error": err}).Error("device server stopped")
		}
	}()

	p.isRunning = true
	p.logger.With(map[string]any{"addr": p.config.Addr, "path": p.config.Path}).Info("device WebSocket provider started")
	return nil
}

// Stop implements ITransportProvider.Stop
func (p *DeviceTransportProvider) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancel()

	p.connectionsMu.Lock()
	for _, conn := range p.connections {
		if conn != nil {
			conn.Close()
		}
	}
	p.connectionsMu.Unlock()

	if !p.isRunning {
		return nil
	}
	p.isRunning = false
	if p.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down server: %w", err)
		}
	}
	return nil
}

// RegisterJobHandler implements ITransportProvider.RegisterJobHandler
func (p *DeviceTransportProvider) RegisterJobHandler(
	handler func(svc transport.ITransportService, ctx context.Context) error,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	p.jobHandler = handler
	return nil
}

// ActiveSessions returns the number of connected devices.
func (p *DeviceTransportProvider) ActiveSessions() int {
	p.connectionsMu.Lock()
	defer p.connectionsMu.Unlock()
	return len(p.connections)
}

// reserve claims a session slot for deviceID.
func (p *DeviceTransportProvider) reserve(deviceID string) error {
	p.connectionsMu.Lock()
	defer p.connectionsMu.Unlock()
	if _, ok := p.connections[deviceID]; ok {
		return fmt.Errorf("device %q already connected", deviceID)
	}
	if len(p.connections) >= p.config.MaxSessions {
		return fmt.Errorf("session limit %d reached", p.config.MaxSessions)
	}
	p.connections[deviceID] = nil
	return nil
}

func (p *DeviceTransportProvider) release(deviceID string) {
	p.connectionsMu.Lock()
	delete(p.connections, deviceID)
	p.connectionsMu.Unlock()
}

func (p *DeviceTransportProvider) handleDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}

	p.mu.RLock()
	job := p.jobHandler
	p.mu.RUnlock()
	if job == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	if err := p.reserve(deviceID); err != nil {
		p.logger.With(map[string]any{"device_id": deviceID, "error": err}).Warn("refusing device connection")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer p.release(deviceID)

	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.With(map[string]any{"error": err}).Error("failed to upgrade connection")
		return
	}
	conn.SetReadLimit(p.config.MaxMessageSize)

	svc := NewDeviceService(conn, deviceID, p.logger)
	p.connectionsMu.Lock()
	p.connections[deviceID] = svc
	p.connectionsMu.Unlock()
	defer svc.Close()

	ctx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	p.logger.With(map[string]any{"device_id": deviceID, "remote": conn.RemoteAddr().String()}).Info("device connected")
	if err := job(svc, ctx); err != nil {
		p.logger.With(map[string]any{"device_id": deviceID, "error": err}).Error("device session failed")
	}
	received, malformed := svc.Stats()
	p.logger.With(map[string]any{"device_id": deviceID, "received": received, "malformed": malformed}).Info("device session ended")
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (p *DeviceTransportProvider) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body, err := sonic.Marshal(healthResponse{Status: "ok", Sessions: p.ActiveSessions()})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}
