package transport

import (
	"sync"

	"handspeak/core"
	"handspeak/events/sensor"
)

// TransportHandlerWrapper holds the device connection shared by the input
// handler at the head of the pipeline and the output handler at its tail.
type TransportHandlerWrapper struct {
	service ITransportService
	config  TransportConfig
	logger  *core.Logger

	receiveOnce sync.Once
}

func NewTransportHandlerWrapper(service ITransportService, config TransportConfig, logger *core.Logger) *TransportHandlerWrapper {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &TransportHandlerWrapper{
		service: service,
		config:  config,
		logger:  logger.With(map[string]any{"device_id": service.DeviceID()}),
	}
}

func (w *TransportHandlerWrapper) GetInputHandler() *TransportInputHandler {
	return &TransportInputHandler{
		BaseHandler: *core.NewBaseHandler(w.service, nil, nil, w.logger),
		wrapper:     w,
	}
}

// GetOutputHandler returns the tail handler. It does not own the service so
// the connection is closed once, by the input handler.
func (w *TransportHandlerWrapper) GetOutputHandler() *TransportOutputHandler {
	return &TransportOutputHandler{
		BaseHandler: *core.NewBaseHandler(nil, nil, nil, w.logger),
		wrapper:     w,
	}
}

// TransportInputHandler turns device messages into SensorReadingEvents and
// relays everything that re-enters at the top of the pipeline.
type TransportInputHandler struct {
	core.BaseHandler
	wrapper *TransportHandlerWrapper
}

func (h *TransportInputHandler) Start() error {
	readings := make(chan core.SensorReading, 64)
	errs := make(chan error, 1)
	h.wrapper.receiveOnce.Do(func() {
		h.wrapper.service.StartReceiving(readings, errs)
	})
	go h.eventLoop(readings, errs)
	return nil
}

func (h *TransportInputHandler) eventLoop(readings <-chan core.SensorReading, errs <-chan error) {
	for {
		select {
		case <-h.Ctx.Done():
			return
		case packet := <-h.InputChan:
			h.HandleEvent(packet)
		case r := <-readings:
			h.Emit(&sensor.SensorReadingEvent{Reading: r}, core.EventRelayDestinationNextService, "TransportInputHandler")
		case err := <-errs:
			h.Logger.With(map[string]any{"error": err}).Info("device disconnected")
			h.Emit(&core.EndSessionEvent{Reason: "device disconnected"}, core.EventRelayDestinationTopService, "TransportInputHandler")
			// keep relaying until the runner stops the session
			errs = nil
		}
	}
}

func (h *TransportInputHandler) HandleEvent(packet *core.EventPacket) error {
	h.SendPacket(packet)
	return nil
}

// TransportOutputHandler echoes selected external events to the device.
// Write failures are logged and never end the session; a dead connection is
// reported by the input side.
type TransportOutputHandler struct {
	core.BaseHandler
	wrapper *TransportHandlerWrapper
}

func (h *TransportOutputHandler) Start() error {
	go func() {
		for {
			select {
			case <-h.Ctx.Done():
				return
			case packet := <-h.InputChan:
				h.HandleEvent(packet)
			}
		}
	}()
	return nil
}

func (h *TransportOutputHandler) HandleEvent(packet *core.EventPacket) error {
	if ev, ok := packet.Event.(core.IExternalOutputEvent); ok && h.wrapper.config.echoes(ev.GetId()) {
		if err := h.wrapper.service.SendEvent(ev); err != nil {
			h.Logger.With(map[string]any{"error": err, "event": ev.GetId()}).Debug("echo to device failed")
		}
	}
	h.SendPacket(packet)
	return nil
}
