package classifier

import (
	"context"
	"fmt"

	"handspeak/core"
	"handspeak/events/classifier"
	"handspeak/events/window"
)

type ClassifierService interface {
	core.IService
	core.GestureClassifier
}

// ClassifierHandler submits windows to the classifier one at a time. A window
// that arrives while a call is outstanding is dropped rather than queued, so
// labels never lag the wearer by more than one window.
type ClassifierHandler struct {
	core.BaseHandler
	classifier ClassifierService
	config     ClassifierConfig
	pending    chan *core.Window
}

func NewClassifierHandler(service ClassifierService, config ClassifierConfig, logger *core.Logger) *ClassifierHandler {
	return &ClassifierHandler{
		BaseHandler: *core.NewBaseHandler(service, nil, nil, logger),
		classifier:  service,
		config:      config,
	}
}

func (h *ClassifierHandler) Initialize(
	inputChan <-chan *core.EventPacket,
	outputNextChan chan<- *core.EventPacket,
	outputTopChan chan<- *core.EventPacket,
	ctx context.Context,
) error {
	h.pending = make(chan *core.Window, 1)
	return h.BaseHandler.Initialize(inputChan, outputNextChan, outputTopChan, ctx)
}

func (h *ClassifierHandler) Start() error {
	go h.eventLoop()
	go h.worker()
	return nil
}

func (h *ClassifierHandler) eventLoop() {
	for {
		select {
		case <-h.Ctx.Done():
			return
		case packet := <-h.InputChan:
			h.HandleEvent(packet)
		}
	}
}

func (h *ClassifierHandler) HandleEvent(packet *core.EventPacket) error {
	event, ok := packet.Event.(*window.WindowReadyEvent)
	if !ok {
		h.SendPacket(packet)
		return nil
	}

	select {
	case h.pending <- event.Window:
	default:
		h.Logger.With(map[string]any{"seq": event.Window.Seq}).Warn("classifier busy, dropping window")
	}
	return nil
}

func (h *ClassifierHandler) worker() {
	for {
		select {
		case <-h.Ctx.Done():
			return
		case w := <-h.pending:
			h.classify(w)
		}
	}
}

func (h *ClassifierHandler) classify(w *core.Window) {
	ctx, cancel := context.WithTimeout(h.Ctx, h.config.timeout())
	defer cancel()

	pred, err := h.classifier.Classify(ctx, w)
	if err != nil {
		if h.Ctx.Err() != nil {
			return
		}
		h.Logger.With(map[string]any{"seq": w.Seq, "error": err}).Warn("classification failed")
		h.Emit(&classifier.ClassificationFailedEvent{WindowSeq: w.Seq, Error: err.Error()}, core.EventRelayDestinationNextService, "ClassifierHandler")
		h.Emit(&core.StatusEvent{
			Level:   core.StatusWarning,
			Source:  "classifier",
			Message: fmt.Sprintf("Gesture recognition unavailable: %v", err),
		}, core.EventRelayDestinationNextService, "ClassifierHandler")
		return
	}

	h.Logger.With(map[string]any{
		"seq":        w.Seq,
		"label":      pred.Label,
		"confidence": pred.Confidence,
	}).Debug("window classified")
	h.Emit(&classifier.GestureLabelEvent{
		Label:      pred.Label,
		Confidence: pred.Confidence,
		WindowSeq:  w.Seq,
	}, core.EventRelayDestinationNextService, "ClassifierHandler")
}
