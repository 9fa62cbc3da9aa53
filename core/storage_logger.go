package core

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

type sessionLoggerKey struct{}

// ContextWithSessionLogger returns a new context carrying the session logger.
func ContextWithSessionLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, sessionLoggerKey{}, logger)
}

// SessionLoggerFromContext extracts the session logger from the context, or nil.
func SessionLoggerFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(sessionLoggerKey{}).(*Logger); ok {
		return l
	}
	return nil
}

// LogWriter is a per-session log destination: a file or the control plane.
type LogWriter interface {
	Write(level, msg string, attrs map[string]interface{})
	Close()
}

// sessionLogHeader opens every session file; sessionLogFooter closes it.
// A file without a footer belongs to a session that is still running or
// whose process died.
type sessionLogHeader struct {
	SessionID string    `json:"session_id"`
	DeviceID  string    `json:"device_id"`
	StartedAt time.Time `json:"started_at"`
}

type sessionLogFooter struct {
	EndedAt time.Time `json:"ended_at"`
	Lines   int       `json:"lines"`
}

type sessionLogLine struct {
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SessionLogWriter writes one .jsonl file per device session under
// <logDir>/<device>/<session>.jsonl. Warnings and errors are flushed to disk
// immediately; other lines are buffered until Close.
type SessionLogWriter struct {
	mu    sync.Mutex
	file  *os.File
	buf   *bufio.Writer
	path  string
	lines int
}

func NewSessionLogWriter(logDir, sessionID, deviceID string) (*SessionLogWriter, error) {
	device := unsafePathChars.ReplaceAllString(deviceID, "_")
	if device == "" {
		device = "unknown"
	}
	dir := filepath.Join(logDir, device)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("session log: mkdir %q: %w", dir, err)
	}

	path := filepath.Join(dir, sessionID+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("session log: create %q: %w", path, err)
	}
	w := &SessionLogWriter{file: f, buf: bufio.NewWriter(f), path: path}
	w.writeLine(sessionLogHeader{SessionID: sessionID, DeviceID: deviceID, StartedAt: time.Now().UTC()})
	return w, nil
}

func (w *SessionLogWriter) Path() string { return w.path }

func (w *SessionLogWriter) Write(level, msg string, attrs map[string]interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return
	}
	w.writeLine(sessionLogLine{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   msg,
		Attrs:     PlainAttrs(attrs),
	})
	w.lines++
	if LevelRank(level) >= LevelRank("warn") {
		w.buf.Flush()
	}
}

// Close writes the footer and closes the file.
func (w *SessionLogWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return
	}
	w.writeLine(sessionLogFooter{EndedAt: time.Now().UTC(), Lines: w.lines})
	w.buf.Flush()
	w.file.Close()
	w.file = nil
}

func (w *SessionLogWriter) writeLine(v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	w.buf.Write(data)
	w.buf.WriteByte('\n')
}

// PlainAttrs replaces error values, which marshal to {}, with their text.
func PlainAttrs(attrs map[string]interface{}) map[string]interface{} {
	if len(attrs) == 0 {
		return attrs
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if err, ok := v.(error); ok {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}

// NewSessionLogger tees every line, including those of child loggers, to
// the base logger and writer.
func NewSessionLogger(baseLogger *Logger, writer LogWriter) *Logger {
	handler := func(level string, msg string, attrs map[string]interface{}) {
		if baseLogger.handlerFunc != nil {
			baseLogger.handlerFunc(level, msg, attrs)
		}
		writer.Write(level, msg, attrs)
	}
	return NewLogger(handler)
}
