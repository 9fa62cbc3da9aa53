package controlplane

import (
	"sync"
	"time"

	"handspeak/core"
	"handspeak/protocol"
)

const (
	defaultLogBatch      = 32
	defaultLogFlushDelay = 250 * time.Millisecond
)

// WSLogWriter implements core.LogWriter by streaming a session's log lines
// to the control plane. Lines are batched; warnings and errors flush at once.
type WSLogWriter struct {
	client    *Client
	sessionID string
	minLevel  int

	mu      sync.Mutex
	pending []protocol.LogEntry
	timer   *time.Timer
	lines   int
	closed  bool
}

// NewWSLogWriter streams lines at or above minLevel; an empty level keeps info.
func NewWSLogWriter(client *Client, sessionID, minLevel string) *WSLogWriter {
	if minLevel == "" {
		minLevel = "info"
	}
	return &WSLogWriter{
		client:    client,
		sessionID: sessionID,
		minLevel:  core.LevelRank(minLevel),
	}
}

func (w *WSLogWriter) Write(level, msg string, attrs map[string]interface{}) {
	rank := core.LevelRank(level)
	if rank < w.minLevel {
		return
	}
	entry := protocol.LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   msg,
		Attrs:     core.PlainAttrs(attrs),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending = append(w.pending, entry)
	w.lines++
	switch {
	case len(w.pending) >= defaultLogBatch || rank >= core.LevelRank("warn"):
		w.flushLocked()
	case w.timer == nil:
		w.timer = time.AfterFunc(defaultLogFlushDelay, w.flush)
	}
}

// Close sends any buffered lines and ends the session's stream.
func (w *WSLogWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.flushLocked()
	w.closed = true
	w.client.SendLogEnd(w.sessionID, w.lines)
}

func (w *WSLogWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
}

func (w *WSLogWriter) flushLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if len(w.pending) == 0 {
		return
	}
	w.client.SendLogs(w.sessionID, w.pending)
	w.pending = nil
}
