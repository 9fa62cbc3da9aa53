// Package local speaks through an on-device synthesizer. It needs no
// network and is the fallback when the cloud voice fails.
package local

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"

	"handspeak/core"
)

const (
	DefaultBinary = "espeak-ng"
	// espeak-ng defaults; rate 1.0 and pitch 1.0 map to these.
	baseWordsPerMinute = 175
	basePitch          = 50
)

type Config struct {
	Binary string `json:"binary" yaml:"binary"`
	Voice  string `json:"voice" yaml:"voice"`
}

// Runner executes name with args and waits for it to exit.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}

// EspeakEngine drives espeak-ng (or a compatible CLI) and blocks until the
// utterance has been played.
type EspeakEngine struct {
	config Config
	run    Runner
	logger *core.Logger
}

func NewEspeakEngine(config Config, logger *core.Logger) *EspeakEngine {
	if config.Binary == "" {
		config.Binary = DefaultBinary
	}
	if config.Voice == "" {
		config.Voice = "en-us"
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &EspeakEngine{
		config: config,
		run:    execRunner,
		logger: logger.With(map[string]any{"service": "local-tts"}),
	}
}

// WithRunner replaces process execution, e.g. in tests.
func (e *EspeakEngine) WithRunner(r Runner) *EspeakEngine {
	e.run = r
	return e
}

func (e *EspeakEngine) Name() string { return "local" }

// Available reports whether the binary can be found on PATH.
func (e *EspeakEngine) Available() bool {
	_, err := exec.LookPath(e.config.Binary)
	return err == nil
}

// Args maps rate and pitch multipliers onto espeak-ng flags.
func (e *EspeakEngine) Args(text string, rate, pitch float64) []string {
	if rate <= 0 {
		rate = 1
	}
	if pitch <= 0 {
		pitch = 1
	}
	wpm := int(math.Round(baseWordsPerMinute * rate))
	p := int(math.Round(basePitch * pitch))
	if p > 99 {
		p = 99
	}
	return []string{
		"-v", e.config.Voice,
		"-s", strconv.Itoa(wpm),
		"-p", strconv.Itoa(p),
		"--", text,
	}
}

func (e *EspeakEngine) Speak(ctx context.Context, text string, rate, pitch float64) error {
	if text == "" {
		return errors.New("nothing to speak")
	}
	args := e.Args(text, rate, pitch)
	e.logger.With(map[string]any{"rate": rate, "pitch": pitch}).Debug("local speech")
	return e.run(ctx, e.config.Binary, args...)
}
