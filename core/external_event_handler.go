package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const externalWriteTimeout = 5 * time.Second

// WireEvent is the JSON envelope used on the WebSocket connection.
//
//	{"id": "<event id>", "payload": { /* event-specific fields */ }}
type WireEvent struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

type inputRegistration struct {
	factory func() IExternalInputEvent
	sticky  bool
}

type externalClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *externalClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(externalWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ExternalEventHandler is a WebSocket server that bridges the pipeline with
// UI clients. It outlives device sessions: a session attaches its pipeline top
// while it runs and detaches when it ends.
//
//   - IExternalOutputEvent packets leaving the pipeline are serialised as
//     WireEvent and broadcast to every connected client.
//
//   - Incoming WireEvent messages are deserialised using a registered factory
//     and injected into the attached pipeline top, so every handler in the
//     chain receives them. Sticky inputs are remembered and replayed to the
//     next session that attaches.
type ExternalEventHandler struct {
	logger *Logger

	upgrader  websocket.Upgrader
	clients   map[*externalClient]struct{}
	clientsMu sync.RWMutex

	inputRegistry map[string]inputRegistration
	sticky        map[string]IExternalInputEvent
	registryMu    sync.RWMutex

	sessionMu  sync.RWMutex
	sessionTop chan<- *EventPacket
	sessionCtx context.Context
}

func NewExternalEventHandler(logger *Logger) *ExternalEventHandler {
	if logger == nil {
		logger = GetLogger()
	}
	return &ExternalEventHandler{
		logger:        logger.With(map[string]any{"component": "external-events"}),
		clients:       make(map[*externalClient]struct{}),
		inputRegistry: make(map[string]inputRegistration),
		sticky:        make(map[string]IExternalInputEvent),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve listens on addr until ctx is cancelled.
func (e *ExternalEventHandler) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", e)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	e.logger.Infof("external event WebSocket server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Attach routes incoming events to a running pipeline and replays sticky inputs.
func (e *ExternalEventHandler) Attach(topChan chan<- *EventPacket, ctx context.Context) {
	e.sessionMu.Lock()
	e.sessionTop = topChan
	e.sessionCtx = ctx
	e.sessionMu.Unlock()

	e.registryMu.RLock()
	replay := make([]IExternalInputEvent, 0, len(e.sticky))
	for _, ev := range e.sticky {
		replay = append(replay, ev)
	}
	e.registryMu.RUnlock()

	for _, ev := range replay {
		e.SendInput(ev, "external-replay")
	}
}

// Detach stops routing to topChan if it is still the attached pipeline.
func (e *ExternalEventHandler) Detach(topChan chan<- *EventPacket) {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	if e.sessionTop == topChan {
		e.sessionTop = nil
		e.sessionCtx = nil
	}
}

// Broadcast serialises an IExternalOutputEvent and sends it to all connected
// WebSocket clients. Other events are ignored.
func (e *ExternalEventHandler) Broadcast(packet *EventPacket) {
	ev, ok := packet.Event.(IExternalOutputEvent)
	if !ok {
		return
	}
	wire, err := EncodeWireEvent(ev)
	if err != nil {
		e.logger.Errorf("marshal output event %q: %v", ev.GetId(), err)
		return
	}
	e.broadcast(wire)
}

// EncodeWireEvent renders ev in the envelope clients read.
func EncodeWireEvent(ev IEvent) ([]byte, error) {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(WireEvent{ID: ev.GetId(), Payload: payload})
}

// RegisterInputEvent registers a factory for a given event ID. When a
// WebSocket client sends {"id": id, "payload": {...}}, the factory is called to
// create a zero-value event, the payload is unmarshalled into it, and the event
// is pushed to the pipeline top.
func (e *ExternalEventHandler) RegisterInputEvent(id string, factory func() IExternalInputEvent) {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()
	e.inputRegistry[id] = inputRegistration{factory: factory}
}

// RegisterStickyInputEvent is RegisterInputEvent for settings-like events whose
// latest value must also reach sessions that start later.
func (e *ExternalEventHandler) RegisterStickyInputEvent(id string, factory func() IExternalInputEvent) {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()
	e.inputRegistry[id] = inputRegistration{factory: factory, sticky: true}
}

// SendInput injects an IExternalInputEvent directly into the attached
// pipeline top without going through the WebSocket layer. It reports false
// when no session is attached.
func (e *ExternalEventHandler) SendInput(event IExternalInputEvent, relayer string) bool {
	e.sessionMu.RLock()
	top, ctx := e.sessionTop, e.sessionCtx
	e.sessionMu.RUnlock()
	if top == nil {
		return false
	}

	packet := NewEventPacket(event, EventRelayDestinationTopService, relayer)
	select {
	case top <- packet:
		return true
	case <-ctx.Done():
		return false
	}
}

// InjectInput is SendInput for producers outside the WebSocket layer, such
// as the control plane. Events registered as sticky are remembered first, so
// they still reach the next session when none is attached.
func (e *ExternalEventHandler) InjectInput(event IExternalInputEvent, relayer string) bool {
	e.registryMu.Lock()
	if reg, ok := e.inputRegistry[event.GetId()]; ok && reg.sticky {
		e.sticky[event.GetId()] = event
	}
	e.registryMu.Unlock()
	return e.SendInput(event, relayer)
}

// ClientCount returns the number of connected UI clients.
func (e *ExternalEventHandler) ClientCount() int {
	e.clientsMu.RLock()
	defer e.clientsMu.RUnlock()
	return len(e.clients)
}

func (e *ExternalEventHandler) broadcast(data []byte) {
	e.clientsMu.RLock()
	clients := make([]*externalClient, 0, len(e.clients))
	for c := range e.clients {
		clients = append(clients, c)
	}
	e.clientsMu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			e.logger.Debugf("write to client: %v", err)
		}
	}
}

// ServeHTTP upgrades the request and reads input events until the client leaves.
func (e *ExternalEventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Errorf("upgrade: %v", err)
		return
	}
	defer conn.Close()

	client := &externalClient{conn: conn}
	e.clientsMu.Lock()
	e.clients[client] = struct{}{}
	e.clientsMu.Unlock()

	defer func() {
		e.clientsMu.Lock()
		delete(e.clients, client)
		e.clientsMu.Unlock()
	}()

	e.logger.Infof("client connected (%s)", conn.RemoteAddr())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		e.handleInput(data)
	}
}

func (e *ExternalEventHandler) handleInput(data []byte) {
	var wire WireEvent
	if err := sonic.Unmarshal(data, &wire); err != nil {
		e.logger.Errorf("unmarshal wire event: %v", err)
		return
	}

	e.registryMu.RLock()
	reg, ok := e.inputRegistry[wire.ID]
	e.registryMu.RUnlock()
	if !ok {
		e.logger.Errorf("no factory registered for event id %q", wire.ID)
		return
	}

	ev := reg.factory()
	if len(wire.Payload) > 0 {
		if err := sonic.Unmarshal(wire.Payload, ev); err != nil {
			e.logger.Errorf("unmarshal payload for %q: %v", wire.ID, err)
			return
		}
	}

	if reg.sticky {
		e.registryMu.Lock()
		e.sticky[wire.ID] = ev
		e.registryMu.Unlock()
	}

	if !e.SendInput(ev, "external-ws") && !reg.sticky {
		e.logger.With(map[string]any{"event": wire.ID}).Warn("no active session, input dropped")
	}
}
