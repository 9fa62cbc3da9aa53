package window

import (
	"time"

	"handspeak/core"
	"handspeak/events/control"
	"handspeak/events/sensor"
	"handspeak/events/window"
)

// WindowHandler consumes frames and emits one WindowReadyEvent per full window.
type WindowHandler struct {
	core.BaseHandler
	config WindowConfig
	buffer *Buffer
	now    func() time.Time

	sinceProgress int
	wasCooling    bool
}

func NewWindowHandler(config WindowConfig, logger *core.Logger) *WindowHandler {
	return &WindowHandler{
		BaseHandler: *core.NewBaseHandler(nil, nil, nil, logger),
		config:      config,
		buffer:      NewBuffer(config.Length, config.cooldown()),
		now:         time.Now,
	}
}

// Buffer exposes the buffer for read-only observation (Len, Target).
func (h *WindowHandler) Buffer() *Buffer { return h.buffer }

func (h *WindowHandler) Start() error {
	go h.eventLoop()
	return nil
}

func (h *WindowHandler) eventLoop() {
	for {
		select {
		case <-h.Ctx.Done():
			return
		case packet := <-h.InputChan:
			h.HandleEvent(packet)
		}
	}
}

func (h *WindowHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *sensor.SensorFrameEvent:
		h.push(event.Frame)
		return nil
	case *control.SessionResetEvent:
		h.buffer.Reset()
		h.sinceProgress = 0
		h.emitProgress(false)
	}
	h.SendPacket(packet)
	return nil
}

func (h *WindowHandler) push(frame core.SensorFrame) {
	now := h.now()
	w, result := h.buffer.Push(frame, now)

	switch result {
	case PushDispatched:
		h.Logger.With(map[string]any{
			"seq":         w.Seq,
			"frames":      w.Len(),
			"duration_ms": w.CompletedAt.Sub(w.StartedAt).Milliseconds(),
		}).Debug("window complete")
		h.Emit(&window.WindowReadyEvent{Window: w}, core.EventRelayDestinationNextService, "WindowHandler")
		h.sinceProgress = 0
		h.wasCooling = true
		h.emitProgress(true)
	case PushAccepted:
		if h.wasCooling {
			h.wasCooling = false
			h.sinceProgress = 0
			h.emitProgress(false)
		}
		h.sinceProgress++
		if h.config.ProgressEvery > 0 && h.sinceProgress >= h.config.ProgressEvery {
			h.sinceProgress = 0
			h.emitProgress(false)
		}
	}
}

func (h *WindowHandler) emitProgress(cooling bool) {
	if h.config.ProgressEvery <= 0 {
		return
	}
	h.Emit(&window.BufferProgressEvent{
		Length:     h.buffer.Len(),
		Target:     h.buffer.Target(),
		CoolingOff: cooling,
	}, core.EventRelayDestinationNextService, "WindowHandler")
}

func (h *WindowHandler) Reset() error {
	h.buffer.Reset()
	return h.BaseHandler.Reset()
}
