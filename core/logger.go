package core

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var loggerInstance Logger = *NewDevelopmentLogger() // default to development logger

// SetLogger sets the global logger instance
func SetLogger(logger Logger) {
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	return &loggerInstance
}

// SetLevel adjusts the minimum level emitted by every zerolog-backed logger.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// LevelRank orders level names for filtering; unknown names rank as info.
func LevelRank(level string) int {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return int(zerolog.InfoLevel)
	}
	return int(lvl)
}

type Logger struct {
	handlerFunc func(level string, msg string, attrs map[string]interface{})
	attrs       map[string]interface{}
}

func NewLogger(handler func(level string, msg string, attrs map[string]interface{})) *Logger {
	return &Logger{
		handlerFunc: handler,
		attrs:       make(map[string]interface{}),
	}
}

// NewZerologLogger routes every log line through zl.
func NewZerologLogger(zl zerolog.Logger) *Logger {
	handler := func(level string, msg string, attrs map[string]interface{}) {
		var ev *zerolog.Event
		switch level {
		case "TRACE":
			ev = zl.Trace()
		case "DEBUG":
			ev = zl.Debug()
		case "WARN":
			ev = zl.Warn()
		case "ERROR":
			ev = zl.Error()
		case "FATAL":
			ev = zl.Fatal()
		case "PANIC":
			ev = zl.Panic()
		default:
			ev = zl.Info()
		}
		if ev == nil {
			return
		}
		for k, v := range attrs {
			if err, ok := v.(error); ok {
				ev = ev.AnErr(k, err)
				continue
			}
			ev = ev.Interface(k, v)
		}
		ev.Msg(msg)
	}
	return NewLogger(handler)
}

// NewDevelopmentLogger creates a new development logger with pretty console output
func NewDevelopmentLogger() *Logger {
	return NewConsoleLogger(os.Stdout)
}

// NewConsoleLogger writes human-readable lines to out.
func NewConsoleLogger(out io.Writer) *Logger {
	cw := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return NewZerologLogger(zerolog.New(cw).With().Timestamp().Logger())
}

// NewProductionLogger writes one JSON object per line to out.
func NewProductionLogger(out io.Writer) *Logger {
	return NewZerologLogger(zerolog.New(out).With().Timestamp().Logger())
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *Logger {
	return NewZerologLogger(zerolog.Nop())
}

func (l *Logger) log(level string, msg string, args ...interface{}) {
	if l.handlerFunc != nil {
		if len(args) > 0 {
			// slog-style key/value pairs: even count, string keys.
			if isKeyValuePairs(args) {
				attrs := make(map[string]interface{}, len(l.attrs)+len(args)/2)
				for k, v := range l.attrs {
					attrs[k] = v
				}
				for i := 0; i < len(args)-1; i += 2 {
					key, _ := args[i].(string)
					attrs[key] = args[i+1]
				}
				l.handlerFunc(level, msg, attrs)
				return
			}
			msg = fmt.Sprintf(msg, args...)
		}
		l.handlerFunc(level, msg, l.attrs)
	}
}

// isKeyValuePairs returns true if args look like slog-style key-value pairs:
// even count and every key (even index) is a string.
func isKeyValuePairs(args []interface{}) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log("DEBUG", msg, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log("DEBUG", format, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log("INFO", msg, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log("INFO", format, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log("WARN", msg, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log("WARN", format, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log("ERROR", msg, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log("ERROR", format, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args...)
}

func (l *Logger) Trace(msg string, args ...interface{}) {
	l.log("TRACE", msg, args...)
}

func (l *Logger) With(attrs map[string]interface{}) *Logger {
	combinedAttrs := make(map[string]interface{}, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combinedAttrs[k] = v
	}
	for k, v := range attrs {
		combinedAttrs[k] = v
	}
	return &Logger{
		handlerFunc: l.handlerFunc,
		attrs:       combinedAttrs,
	}
}
