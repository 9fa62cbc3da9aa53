// Package controlplane connects an agent outward to a fleet control plane.
// The agent registers, reports its device sessions on every heartbeat,
// streams session logs and events, and accepts tone changes, config updates,
// session resets and shutdowns.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"handspeak/core"
	"handspeak/events/sentence"
	"handspeak/protocol"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultSendBufferSize    = 256
	writeTimeout             = 10 * time.Second
)

// ClientConfig configures the control plane WebSocket client. Status, when
// set, reports the agent status and live sessions for heartbeats.
type ClientConfig struct {
	ConnectURL        string
	AgentID           string
	Version           string
	Tones             []string
	Metadata          map[string]string
	HeartbeatInterval time.Duration
	Status            func() (protocol.AgentStatus, []protocol.SessionInfo)
	Logger            *core.Logger
}

type Client struct {
	config ClientConfig
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	logger *core.Logger
	seq    atomic.Uint64

	// OnConfigUpdate returns an error to reject the update; either way the
	// message is acked.
	OnConfigUpdate  func(update protocol.ConfigUpdatePayload) error
	OnResetSessions func(reason string)
	OnShutdown      func(reason string)

	sendCh    chan []byte
	dropped   atomic.Int64
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = core.GetLogger()
	}
	return &Client{
		config: cfg,
		logger: cfg.Logger.With(map[string]any{"component": "controlplane"}),
		sendCh: make(chan []byte, defaultSendBufferSize),
		done:   make(chan struct{}),
	}
}

// Connect dials the control plane, registers, and starts the read, write and
// heartbeat loops. Cancelling ctx closes the connection.
func (c *Client) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.logger.With(map[string]any{"url": c.config.ConnectURL}).Info("connecting to control plane")
	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.config.ConnectURL, nil)
	if err != nil {
		c.cancel()
		return fmt.Errorf("controlplane: dial %q: %w", c.config.ConnectURL, err)
	}
	c.conn = conn

	reg := protocol.RegisterPayload{
		AgentID:      c.config.AgentID,
		Version:      c.config.Version,
		Capabilities: []string{protocol.CapabilityGestureSpeech, protocol.CapabilityRecorder, protocol.CapabilityToneSelect},
		Tones:        c.config.Tones,
		Metadata:     c.config.Metadata,
		Timestamp:    time.Now().UTC(),
	}
	if err := c.writeNow(protocol.MsgRegister, reg); err != nil {
		conn.Close()
		c.cancel()
		return fmt.Errorf("controlplane: register: %w", err)
	}
	c.logger.With(map[string]any{"agent_id": c.config.AgentID}).Info("registered with control plane")

	go func() {
		<-c.ctx.Done()
		c.Close()
	}()
	go c.readLoop()
	go c.writeLoop()
	go c.heartbeatLoop()
	return nil
}

// SendLogs queues a batch of session log lines.
func (c *Client) SendLogs(sessionID string, entries []protocol.LogEntry) {
	if len(entries) == 0 {
		return
	}
	c.enqueue(protocol.MsgLog, protocol.LogPayload{
		AgentID:   c.config.AgentID,
		SessionID: sessionID,
		Entries:   entries,
	})
}

func (c *Client) SendLogEnd(sessionID string, lines int) {
	c.enqueue(protocol.MsgLogEnd, protocol.LogEndPayload{
		AgentID:   c.config.AgentID,
		SessionID: sessionID,
		Lines:     lines,
	})
}

// SendOutputEvent relays a session's UI event. Finalized sentences are also
// reported as a sentence message.
func (c *Client) SendOutputEvent(sessionID string, ev core.IExternalOutputEvent) {
	data, err := core.EncodeWireEvent(ev)
	if err != nil {
		c.logger.With(map[string]any{"error": err, "event": ev.GetId()}).Warn("failed to encode event, dropping")
		return
	}
	c.enqueue(protocol.MsgEvent, protocol.EventPayload{
		AgentID:   c.config.AgentID,
		SessionID: sessionID,
		EventID:   ev.GetId(),
		Data:      data,
	})

	if fin, ok := ev.(*sentence.SentenceFinalizedEvent); ok {
		e := fin.Enhancement
		c.enqueue(protocol.MsgSentence, protocol.SentencePayload{
			AgentID:   c.config.AgentID,
			SessionID: sessionID,
			Original:  e.Original,
			Corrected: e.GrammarCorrected,
			Enhanced:  e.ToneAdjusted,
			Tone:      string(e.Tone),
			Fallback:  e.Fallback,
			At:        time.Now().UTC(),
		})
	}
}

// Dropped is the number of messages discarded because the send buffer was full.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// Wait blocks until the connection drops.
func (c *Client) Wait() {
	<-c.done
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) writeNow(msgType protocol.MessageType, payload any) error {
	data, err := protocol.Encode(msgType, c.seq.Add(1), payload)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// enqueue never blocks. When the buffer is full the oldest message goes.
func (c *Client) enqueue(msgType protocol.MessageType, payload any) {
	data, err := protocol.Encode(msgType, c.seq.Add(1), payload)
	if err != nil {
		c.logger.With(map[string]any{"error": err, "type": string(msgType)}).Warn("failed to encode message, dropping")
		return
	}
	for {
		select {
		case c.sendCh <- data:
			return
		default:
		}
		select {
		case <-c.sendCh:
			c.dropped.Add(1)
		default:
		}
	}
}

func (c *Client) ack(env protocol.Envelope, err error) {
	p := protocol.AckPayload{Seq: env.Seq, Type: env.Type, OK: err == nil}
	if err != nil {
		p.Error = err.Error()
	}
	c.enqueue(protocol.MsgAck, p)
}

func (c *Client) readLoop() {
	defer func() {
		c.doneOnce.Do(func() { close(c.done) })
		c.cancel()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.With(map[string]any{"error": err}).Warn("control plane connection lost")
			}
			return
		}

		env, err := protocol.DecodeInbound(data)
		if err != nil {
			c.logger.With(map[string]any{"error": err}).Warn("invalid message from control plane")
			if errors.Is(err, protocol.ErrUnknownType) {
				c.ack(env, err)
			}
			continue
		}
		if stop := c.dispatch(env); stop {
			return
		}
	}
}

func (c *Client) dispatch(env protocol.Envelope) (stop bool) {
	switch env.Type {
	case protocol.MsgConfigUpdate:
		p, err := protocol.DecodePayload[protocol.ConfigUpdatePayload](env)
		if err == nil && c.OnConfigUpdate != nil {
			err = c.OnConfigUpdate(p)
		}
		c.ack(env, err)

	case protocol.MsgResetSessions:
		p, err := protocol.DecodePayload[protocol.ResetSessionsPayload](env)
		if err == nil && c.OnResetSessions != nil {
			c.OnResetSessions(p.Reason)
		}
		c.ack(env, err)

	case protocol.MsgShutdown:
		p, _ := protocol.DecodePayload[protocol.ShutdownPayload](env)
		reason := p.Reason
		if reason == "" {
			reason = "shutdown requested by control plane"
		}
		c.logger.With(map[string]any{"reason": reason}).Info("shutdown requested")
		if c.OnShutdown != nil {
			c.OnShutdown(reason)
		}
		return true

	case protocol.MsgAck:
		p, _ := protocol.DecodePayload[protocol.AckPayload](env)
		if !p.OK {
			c.logger.With(map[string]any{"seq": p.Seq, "type": string(p.Type), "error": p.Error}).Warn("control plane rejected message")
		}
	}
	return false
}

func (c *Client) writeLoop() {
	for {
		select {
		case data := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.With(map[string]any{"error": err}).Warn("write to control plane failed")
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hb := protocol.HeartbeatPayload{
				AgentID:   c.config.AgentID,
				Timestamp: time.Now().UTC(),
				Status:    protocol.StatusIdle,
				Sessions:  []protocol.SessionInfo{},
			}
			if c.config.Status != nil {
				hb.Status, hb.Sessions = c.config.Status()
			}
			c.enqueue(protocol.MsgHeartbeat, hb)
		case <-c.ctx.Done():
			return
		}
	}
}
