package speech

import (
	"context"
	"errors"
	"sync/atomic"

	"handspeak/core"
)

// Synthesizer is the networked primary engine.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, tone core.Tone) (core.AudioChunk, error)
}

type Player interface {
	Play(ctx context.Context, chunk core.AudioChunk) error
}

// LocalEngine synthesizes and plays in one step without network access.
type LocalEngine interface {
	Speak(ctx context.Context, text string, rate, pitch float64) error
}

type named interface{ Name() string }

// Outcome describes how an utterance ended.
type Outcome struct {
	Engine   string
	Fallback bool
	Err      error
}

// Arbiter owns the speaker. At most one utterance is active at a time and
// overlapping requests are refused, never queued.
type Arbiter struct {
	primary  Synthesizer
	player   Player
	fallback LocalEngine
	config   SpeechConfig
	logger   *core.Logger

	active atomic.Bool
}

func NewArbiter(primary Synthesizer, player Player, fallback LocalEngine, config SpeechConfig, logger *core.Logger) *Arbiter {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Arbiter{
		primary:  primary,
		player:   player,
		fallback: fallback,
		config:   config,
		logger:   logger.With(map[string]any{"component": "speech-arbiter"}),
	}
}

func (a *Arbiter) IsSpeaking() bool { return a.active.Load() }

// TryAcquire claims the speaker. A successful claim must be followed by Run.
func (a *Arbiter) TryAcquire() bool {
	return a.active.CompareAndSwap(false, true)
}

// Run plays text and releases the speaker when playback ends or errors.
func (a *Arbiter) Run(ctx context.Context, text string, tone core.Tone) Outcome {
	defer a.active.Store(false)
	return a.speak(ctx, text, tone)
}

// Speak blocks until the utterance finishes. It returns core.ErrSpeechBusy
// without side effects when another utterance is active.
func (a *Arbiter) Speak(ctx context.Context, text string, tone core.Tone) (Outcome, error) {
	if !a.TryAcquire() {
		return Outcome{}, core.ErrSpeechBusy
	}
	out := a.Run(ctx, text, tone)
	return out, out.Err
}

// TrySpeak is the non-blocking form of Speak; done runs after the speaker
// has been released.
func (a *Arbiter) TrySpeak(ctx context.Context, text string, tone core.Tone, done func(Outcome)) error {
	if !a.TryAcquire() {
		return core.ErrSpeechBusy
	}
	go func() {
		out := a.Run(ctx, text, tone)
		if done != nil {
			done(out)
		}
	}()
	return nil
}

func (a *Arbiter) speak(ctx context.Context, text string, tone core.Tone) Outcome {
	var primaryErr error
	if a.primary != nil && a.player != nil {
		if primaryErr = a.playPrimary(ctx, text, tone); primaryErr == nil {
			return Outcome{Engine: engineName(a.primary, "primary")}
		}
		a.logger.With(map[string]any{"error": primaryErr, "tone": tone}).Warn("primary speech failed, using local engine")
	}

	if a.fallback == nil {
		if primaryErr == nil {
			primaryErr = errors.New("no speech engine configured")
		}
		return Outcome{Engine: "none", Err: primaryErr}
	}

	p := a.config.prosody(tone)
	ctx, cancel := context.WithTimeout(ctx, a.config.playbackTimeout())
	defer cancel()
	err := a.fallback.Speak(ctx, text, p.Rate, p.Pitch)
	if err != nil {
		a.logger.With(map[string]any{"error": err}).Error("local speech failed")
	}
	return Outcome{Engine: engineName(a.fallback, "local"), Fallback: a.primary != nil, Err: err}
}

func (a *Arbiter) playPrimary(ctx context.Context, text string, tone core.Tone) error {
	synthCtx, cancel := context.WithTimeout(ctx, a.config.synthesisTimeout())
	chunk, err := a.primary.Synthesize(synthCtx, text, tone)
	cancel()
	if err != nil {
		return err
	}

	playCtx, cancel := context.WithTimeout(ctx, a.config.playbackTimeout())
	defer cancel()
	return a.player.Play(playCtx, chunk)
}

func engineName(v any, def string) string {
	if n, ok := v.(named); ok {
		return n.Name()
	}
	return def
}
