package speech

import (
	"errors"

	"handspeak/core"
	"handspeak/events/speech"
)

var errNothingToSpeak = errors.New("nothing to speak")

// SpeechHandler turns SpeakRequestEvents into audio through the shared
// Arbiter. Refused requests go back to the top of the pipeline as
// SpeakRejectedEvents so their producer can decide whether to retry.
type SpeechHandler struct {
	core.BaseHandler
	arbiter *Arbiter
}

func NewSpeechHandler(arbiter *Arbiter, logger *core.Logger) *SpeechHandler {
	return &SpeechHandler{
		BaseHandler: *core.NewBaseHandler(nil, nil, nil, logger),
		arbiter:     arbiter,
	}
}

func (h *SpeechHandler) Arbiter() *Arbiter { return h.arbiter }

func (h *SpeechHandler) Start() error {
	go h.eventLoop()
	return nil
}

func (h *SpeechHandler) eventLoop() {
	for {
		select {
		case <-h.Ctx.Done():
			return
		case packet := <-h.InputChan:
			h.HandleEvent(packet)
		}
	}
}

func (h *SpeechHandler) HandleEvent(packet *core.EventPacket) error {
	event, ok := packet.Event.(*speech.SpeakRequestEvent)
	if !ok {
		h.SendPacket(packet)
		return nil
	}

	req := *event
	text := normalizeTextForSpeech(req.Text)
	if text == "" {
		h.Logger.With(map[string]any{"request_id": req.RequestID, "kind": req.Kind}).Debug("nothing speakable after normalization")
		h.Emit(&speech.SpeakingEndedEvent{
			RequestID: req.RequestID,
			Kind:      req.Kind,
			Engine:    "none",
			Error:     errNothingToSpeak.Error(),
		}, core.EventRelayDestinationNextService, "SpeechHandler")
		return nil
	}

	if !h.arbiter.TryAcquire() {
		h.Logger.With(map[string]any{"kind": req.Kind, "attempt": req.Attempt}).Debug("speech busy, rejecting request")
		h.Emit(&speech.SpeakRejectedEvent{Request: req}, core.EventRelayDestinationTopService, "SpeechHandler")
		return nil
	}

	h.Emit(&speech.SpeakingStartedEvent{RequestID: req.RequestID, Text: text, Kind: req.Kind}, core.EventRelayDestinationNextService, "SpeechHandler")
	go func() {
		out := h.arbiter.Run(h.Ctx, text, req.Tone)
		ended := &speech.SpeakingEndedEvent{
			RequestID: req.RequestID,
			Kind:      req.Kind,
			Engine:    out.Engine,
			Fallback:  out.Fallback,
		}
		if out.Err != nil {
			ended.Error = out.Err.Error()
			h.Emit(&core.StatusEvent{
				Level:   core.StatusWarning,
				Source:  "speech",
				Message: "Speech playback failed",
			}, core.EventRelayDestinationNextService, "SpeechHandler")
		}
		h.Emit(ended, core.EventRelayDestinationNextService, "SpeechHandler")
	}()
	return nil
}
