package recorder

import (
	"fmt"
	"strings"

	"handspeak/core"
	"handspeak/events/control"
	"handspeak/events/sensor"
)

// RecorderHandler appends labelled frames to the training file while a
// recording is active. Frames always continue down the pipeline.
type RecorderHandler struct {
	core.BaseHandler
	config RecorderConfig
	store  *CSVStore

	recording bool
	label     string
	id        string
	startMs   int64
	started   bool
	rows      int
	buffer    [][]string
}

func NewRecorderHandler(store *CSVStore, config RecorderConfig, logger *core.Logger) *RecorderHandler {
	return &RecorderHandler{
		BaseHandler: *core.NewBaseHandler(nil, nil, nil, logger),
		config:      config,
		store:       store,
	}
}

func (h *RecorderHandler) Start() error {
	go func() {
		for {
			select {
			case <-h.Ctx.Done():
				h.flush()
				return
			case packet := <-h.InputChan:
				h.HandleEvent(packet)
			}
		}
	}()
	return nil
}

func (h *RecorderHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *sensor.SensorFrameEvent:
		if h.recording {
			h.record(event.Frame)
		}
		h.SendPacket(packet)
	case *control.RecorderStartEvent:
		h.start(event)
	case *control.RecorderStopEvent:
		h.stop()
	case *control.RecorderDeleteEvent:
		h.delete(event)
	default:
		h.SendPacket(packet)
	}
	return nil
}

func (h *RecorderHandler) start(event *control.RecorderStartEvent) {
	label := strings.TrimSpace(event.Label)
	if label == "" {
		h.emitStatus(0, fmt.Errorf("recording needs a label"))
		return
	}
	if h.recording {
		h.flush()
	}
	count, err := h.store.Count()
	if err != nil {
		h.emitStatus(0, err)
		return
	}

	h.recording = true
	h.label = label
	h.id = event.ID
	h.started = false
	h.rows = count
	h.Logger.With(map[string]any{"label": label, "id": event.ID}).Info("recording started")
	h.emitStatus(0, nil)
}

func (h *RecorderHandler) stop() {
	if !h.recording {
		h.emitStatus(0, nil)
		return
	}
	err := h.flush()
	h.recording = false
	h.Logger.With(map[string]any{"label": h.label, "rows": h.rows}).Info("recording stopped")
	h.emitStatus(0, err)
}

func (h *RecorderHandler) delete(event *control.RecorderDeleteEvent) {
	var byID bool
	switch event.Type {
	case "id":
		byID = true
	case "label":
	default:
		h.emitStatus(0, fmt.Errorf("invalid delete type %q, must be id or label", event.Type))
		return
	}
	if event.Value == "" {
		h.emitStatus(0, fmt.Errorf("delete value is required"))
		return
	}
	if err := h.flush(); err != nil {
		h.emitStatus(0, err)
		return
	}

	deleted, err := h.store.Delete(byID, event.Value)
	if err == nil {
		h.rows, err = h.store.Count()
	}
	h.Logger.With(map[string]any{"type": event.Type, "value": event.Value, "deleted": deleted}).Info("recorded rows deleted")
	h.emitStatus(deleted, err)
}

func (h *RecorderHandler) record(frame core.SensorFrame) {
	if !h.started {
		h.started = true
		h.startMs = frame.TimestampMs
	}
	elapsed := float64(frame.TimestampMs-h.startMs) / 1000
	h.buffer = append(h.buffer, Row(h.id, elapsed, frame, h.label))
	h.rows++
	if len(h.buffer) >= h.config.flushRows() {
		if err := h.flush(); err != nil {
			h.emitStatus(0, err)
		}
	}
}

func (h *RecorderHandler) flush() error {
	if len(h.buffer) == 0 {
		return nil
	}
	rows := h.buffer
	h.buffer = nil
	if err := h.store.Append(rows); err != nil {
		h.rows -= len(rows)
		h.Logger.With(map[string]any{"error": err, "rows": len(rows)}).Error("failed to write recorded rows")
		return err
	}
	return nil
}

func (h *RecorderHandler) emitStatus(deleted int, err error) {
	status := &control.RecorderStatusEvent{
		Recording: h.recording,
		Label:     h.label,
		Rows:      h.rows,
		Deleted:   deleted,
		Path:      h.store.Path(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	h.Emit(status, core.EventRelayDestinationNextService, "RecorderHandler")
}
