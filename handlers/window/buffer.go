package window

import (
	"sync"
	"time"

	"handspeak/core"
)

type PushResult int

const (
	PushAccepted        PushResult = iota // Frame appended; window not yet full.
	PushDispatched                        // Frame completed a window.
	PushIgnoredZero                       // All-zero frame, not counted.
	PushDroppedCooldown                   // Arrived during the post-dispatch cooldown.
)

func (r PushResult) String() string {
	switch r {
	case PushAccepted:
		return "accepted"
	case PushDispatched:
		return "dispatched"
	case PushIgnoredZero:
		return "ignored_zero"
	case PushDroppedCooldown:
		return "dropped_cooldown"
	default:
		return "unknown"
	}
}

// Buffer accumulates frames into windows of exactly Target frames. Once a
// window is handed off the buffer is empty and refuses frames until the
// cooldown has elapsed.
type Buffer struct {
	mu            sync.Mutex
	target        int
	cooldown      time.Duration
	frames        []core.SensorFrame
	startedAt     time.Time
	cooldownUntil time.Time
	seq           uint64
}

func NewBuffer(target int, cooldown time.Duration) *Buffer {
	if target <= 0 {
		target = DefaultWindowLength
	}
	return &Buffer{
		target:   target,
		cooldown: cooldown,
		frames:   make([]core.SensorFrame, 0, target),
	}
}

// Push offers one frame. When it completes a window the window is returned
// and ownership of its frames moves to the caller.
func (b *Buffer) Push(frame core.SensorFrame, now time.Time) (*core.Window, PushResult) {
	if frame.IsZero() {
		return nil, PushIgnoredZero
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Before(b.cooldownUntil) {
		return nil, PushDroppedCooldown
	}
	if len(b.frames) == 0 {
		b.startedAt = now
	}
	b.frames = append(b.frames, frame)
	if len(b.frames) < b.target {
		return nil, PushAccepted
	}

	b.seq++
	w := &core.Window{
		Seq:         b.seq,
		Frames:      b.frames,
		StartedAt:   b.startedAt,
		CompletedAt: now,
	}
	b.frames = make([]core.SensorFrame, 0, b.target)
	b.cooldownUntil = now.Add(b.cooldown)
	return w, PushDispatched
}

// Len is the number of frames currently held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

func (b *Buffer) Target() int { return b.target }

// CoolingOff reports whether frames pushed at now would be dropped.
func (b *Buffer) CoolingOff(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Before(b.cooldownUntil)
}

// Reset discards held frames and any active cooldown.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = make([]core.SensorFrame, 0, b.target)
	b.cooldownUntil = time.Time{}
}
