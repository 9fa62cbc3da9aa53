package sentence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"handspeak/core"
	"handspeak/events/classifier"
	"handspeak/events/control"
	"handspeak/events/sentence"
	"handspeak/events/speech"
	"handspeak/history"
)

// SpeakingProbe reports whether an utterance currently holds the speaker.
type SpeakingProbe interface {
	IsSpeaking() bool
}

type EnhancerService interface {
	core.IService
	core.TextEnhancer
}

var errNoEnhancer = errors.New("no text enhancer configured")

type enhanceResult struct {
	generation  uint64
	original    string
	tone        core.Tone
	enhancement core.Enhancement
	err         error
}

// SentenceHandler assembles classifier labels into sentences.
//
// Real words are appended and spoken one by one. The "no gesture" label
// (re)arms a single inactivity timer while a sentence is being built; when it
// fires the sentence is frozen and sent to the enhancer, and the result is
// recorded in history and spoken. All state is owned by the event loop:
// timers and enhancer calls post back through channels and carry a sequence
// or generation so late arrivals are discarded.
type SentenceHandler struct {
	core.BaseHandler
	enhancer EnhancerService
	speaking SpeakingProbe
	history  *history.Log
	store    history.Store
	deviceID string
	config   SentenceConfig
	now      func() time.Time

	state           sentence.State
	pending         []string
	tone            core.Tone
	timer           *time.Timer
	timerSeq        uint64
	finalizeRetries int
	generation      uint64
	inFlight        bool

	timerChan      chan uint64
	resultChan     chan enhanceResult
	speakRetryChan chan speech.SpeakRequestEvent
	resetChan      chan struct{}
}

func NewSentenceHandler(
	enhancer EnhancerService,
	speaking SpeakingProbe,
	log *history.Log,
	config SentenceConfig,
	logger *core.Logger,
) *SentenceHandler {
	if log == nil {
		log = history.NewLog(history.DefaultCapacity)
	}
	var service core.IService
	if enhancer != nil {
		service = enhancer
	}
	return &SentenceHandler{
		BaseHandler: *core.NewBaseHandler(service, nil, nil, logger),
		enhancer:    enhancer,
		speaking:    speaking,
		history:     log,
		config:      config,
		now:         time.Now,
		state:       sentence.StateIdle,
		tone:        core.DefaultTone,
	}
}

// WithStore persists history for deviceID after every finalized sentence.
func (h *SentenceHandler) WithStore(store history.Store, deviceID string) *SentenceHandler {
	h.store = store
	h.deviceID = deviceID
	return h
}

func (h *SentenceHandler) History() *history.Log { return h.history }

func (h *SentenceHandler) Initialize(
	inputChan <-chan *core.EventPacket,
	outputNextChan chan<- *core.EventPacket,
	outputTopChan chan<- *core.EventPacket,
	ctx context.Context,
) error {
	h.timerChan = make(chan uint64, 4)
	h.resultChan = make(chan enhanceResult, 1)
	h.speakRetryChan = make(chan speech.SpeakRequestEvent, 4)
	h.resetChan = make(chan struct{}, 1)
	if err := h.BaseHandler.Initialize(inputChan, outputNextChan, outputTopChan, ctx); err != nil {
		return err
	}
	h.restoreHistory()
	return nil
}

func (h *SentenceHandler) restoreHistory() {
	if h.store == nil {
		return
	}
	entries, err := h.store.Load(h.Ctx, h.deviceID)
	if err != nil {
		h.Logger.With(map[string]any{"error": err}).Warn("failed to load history")
		return
	}
	h.history.Restore(entries)
	if len(entries) > 0 {
		h.Logger.With(map[string]any{"entries": h.history.Len()}).Info("history restored")
	}
}

func (h *SentenceHandler) Start() error {
	go h.eventLoop()
	return nil
}

func (h *SentenceHandler) eventLoop() {
	for {
		select {
		case <-h.Ctx.Done():
			h.stopTimer()
			return
		case packet := <-h.InputChan:
			h.HandleEvent(packet)
		case seq := <-h.timerChan:
			h.onTimer(seq)
		case result := <-h.resultChan:
			h.onEnhanced(result)
		case req := <-h.speakRetryChan:
			h.Emit(&req, core.EventRelayDestinationNextService, "SentenceHandler")
		case <-h.resetChan:
			h.reset()
		}
	}
}

func (h *SentenceHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *classifier.GestureLabelEvent:
		h.onLabel(event.Label)
		h.SendPacket(packet)
		return nil
	case *speech.SpeakRejectedEvent:
		h.onRejected(event.Request)
		return nil
	case *control.ToneSelectEvent:
		h.tone = core.ParseTone(event.Tone)
		h.Logger.With(map[string]any{"tone": h.tone}).Info("tone selected")
		h.Emit(&control.ToneChangedEvent{Tone: h.tone}, core.EventRelayDestinationNextService, "SentenceHandler")
	case *control.SessionResetEvent:
		h.reset()
	}
	h.SendPacket(packet)
	return nil
}

func (h *SentenceHandler) onLabel(raw string) {
	label := strings.TrimSpace(raw)
	if label == "" {
		return
	}

	if strings.EqualFold(label, h.config.noGesture()) {
		if h.state == sentence.StateBuilding {
			h.finalizeRetries = 0
			h.armTimer(h.config.inactivity())
		}
		return
	}

	h.stopTimer()
	h.pending = append(h.pending, label)
	h.setState(sentence.StateBuilding)

	h.Emit(&sentence.WordAddedEvent{
		Word:    label,
		Pending: append([]string(nil), h.pending...),
	}, core.EventRelayDestinationNextService, "SentenceHandler")

	if h.config.SpeakWords {
		h.Emit(&speech.SpeakRequestEvent{
			RequestID: uuid.NewString(),
			Text:      label,
			Tone:      h.tone,
			Kind:      speech.KindWord,
		}, core.EventRelayDestinationNextService, "SentenceHandler")
	}
}

// armTimer replaces any live timer; only the newest sequence is honoured.
func (h *SentenceHandler) armTimer(d time.Duration) {
	h.stopTimer()
	h.timerSeq++
	seq := h.timerSeq
	h.timer = time.AfterFunc(d, func() {
		select {
		case h.timerChan <- seq:
		case <-h.Ctx.Done():
		}
	})
}

func (h *SentenceHandler) stopTimer() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.timerSeq++
}

func (h *SentenceHandler) onTimer(seq uint64) {
	if seq != h.timerSeq {
		return
	}
	h.timer = nil
	if len(h.pending) == 0 {
		return
	}

	// One enhancement at a time. The enhancer call is itself bounded, so
	// this wait does not count against the retry budget.
	if h.inFlight {
		h.armTimer(h.config.finalizeRetry())
		return
	}

	if h.speaking != nil && h.speaking.IsSpeaking() {
		if h.finalizeRetries < h.config.FinalizeMaxRetries {
			h.finalizeRetries++
			h.Logger.With(map[string]any{"attempt": h.finalizeRetries}).Debug("speech active, deferring finalize")
			h.armTimer(h.config.finalizeRetry())
			return
		}
		h.Logger.Warn("speech still active after retries, finalizing anyway")
	}

	h.finalize()
}

func (h *SentenceHandler) finalize() {
	original := strings.Join(h.pending, " ")
	h.pending = nil
	h.finalizeRetries = 0
	h.generation++
	h.inFlight = true
	h.setState(sentence.StateFinalizing)

	gen, tone := h.generation, h.tone
	h.Logger.With(map[string]any{"sentence": original, "generation": gen, "tone": tone}).Info("finalizing sentence")

	if h.enhancer == nil {
		h.onEnhanced(enhanceResult{generation: gen, original: original, tone: tone, err: errNoEnhancer})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(h.Ctx, h.config.enhanceTimeout())
		defer cancel()
		enh, err := h.enhancer.Enhance(ctx, original, tone)
		select {
		case h.resultChan <- enhanceResult{generation: gen, original: original, tone: tone, enhancement: enh, err: err}:
		case <-h.Ctx.Done():
		}
	}()
}

func (h *SentenceHandler) onEnhanced(r enhanceResult) {
	if !h.inFlight || r.generation != h.generation {
		h.Logger.With(map[string]any{
			"generation": r.generation,
			"current":    h.generation,
			"error":      core.ErrStaleResponse,
		}).Debug("discarding enhancement")
		return
	}
	h.inFlight = false

	enh := r.enhancement
	if r.err != nil {
		h.Logger.With(map[string]any{"sentence": r.original, "error": r.err}).Warn("enhancement failed, using original sentence")
		enh = core.FallbackEnhancement(r.original, r.tone, r.err)
		h.Emit(&core.StatusEvent{
			Level:   core.StatusWarning,
			Source:  "enhancer",
			Message: "Text enhancement unavailable, speaking the original sentence",
		}, core.EventRelayDestinationNextService, "SentenceHandler")
	}

	entries := h.history.Push(history.EntryFromEnhancement(enh, h.now()))
	h.persist(entries)

	h.Emit(&sentence.SentenceFinalizedEvent{Enhancement: enh, Generation: r.generation}, core.EventRelayDestinationNextService, "SentenceHandler")
	h.Emit(&sentence.HistoryUpdatedEvent{Entries: entries}, core.EventRelayDestinationNextService, "SentenceHandler")
	h.Emit(&speech.SpeakRequestEvent{
		RequestID: uuid.NewString(),
		Text:      enh.ToneAdjusted,
		Tone:      r.tone,
		Kind:      speech.KindSentence,
	}, core.EventRelayDestinationNextService, "SentenceHandler")

	// Words signed during enhancement start the next sentence.
	if len(h.pending) > 0 {
		h.setState(sentence.StateBuilding)
	} else {
		h.setState(sentence.StateIdle)
	}
}

func (h *SentenceHandler) persist(entries []history.Entry) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(h.Ctx, 2*time.Second)
	defer cancel()
	if err := h.store.Save(ctx, h.deviceID, entries); err != nil {
		h.Logger.With(map[string]any{"error": err}).Warn("failed to persist history")
	}
}

func (h *SentenceHandler) onRejected(req speech.SpeakRequestEvent) {
	if req.Kind != speech.KindSentence {
		return
	}
	if req.Attempt >= h.config.SpeakMaxRetries {
		h.Logger.With(map[string]any{"text": req.Text, "attempts": req.Attempt}).Warn("giving up on speaking sentence")
		return
	}
	req.Attempt++
	time.AfterFunc(h.config.speakRetry(), func() {
		select {
		case h.speakRetryChan <- req:
		case <-h.Ctx.Done():
		}
	})
}

func (h *SentenceHandler) setState(s sentence.State) {
	if h.state == s {
		return
	}
	h.state = s
	h.Emit(&sentence.SentenceStateEvent{State: s, Generation: h.generation}, core.EventRelayDestinationNextService, "SentenceHandler")
}

func (h *SentenceHandler) reset() {
	h.stopTimer()
	h.pending = nil
	h.finalizeRetries = 0
	if h.inFlight {
		// Bumping the generation makes the outstanding result stale.
		h.generation++
		h.inFlight = false
	}
	h.setState(sentence.StateIdle)
}

func (h *SentenceHandler) Reset() error {
	select {
	case h.resetChan <- struct{}{}:
	default:
	}
	return h.BaseHandler.Reset()
}
