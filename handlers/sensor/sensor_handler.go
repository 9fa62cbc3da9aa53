package sensor

import (
	"context"
	"time"

	"handspeak/core"
	"handspeak/events/sensor"
)

// SensorHandler turns independent channel readings into fixed-rate frames.
// Readings are consumed; frames go to the next handler once every channel
// has reported at least once.
type SensorHandler struct {
	core.BaseHandler
	config   SensorConfig
	composer *Composer
	now      func() time.Time

	start        time.Time
	readyEmitted bool

	packets       uint64
	dropped       uint64
	lastPacket    time.Time
	periodPackets uint64
	periodStart   time.Time

	resetChan chan struct{}
}

func NewSensorHandler(config SensorConfig, logger *core.Logger) *SensorHandler {
	return &SensorHandler{
		BaseHandler: *core.NewBaseHandler(nil, nil, nil, logger),
		config:      config,
		composer:    NewComposer(),
		now:         time.Now,
	}
}

func (h *SensorHandler) Initialize(
	inputChan <-chan *core.EventPacket,
	outputNextChan chan<- *core.EventPacket,
	outputTopChan chan<- *core.EventPacket,
	ctx context.Context,
) error {
	h.resetChan = make(chan struct{}, 1)
	h.start = h.now()
	h.periodStart = h.start
	return h.BaseHandler.Initialize(inputChan, outputNextChan, outputTopChan, ctx)
}

func (h *SensorHandler) Start() error {
	go h.eventLoop()
	return nil
}

func (h *SensorHandler) eventLoop() {
	sampler := time.NewTicker(h.config.samplePeriod())
	defer sampler.Stop()

	var telemetryC <-chan time.Time
	if iv := h.config.telemetryInterval(); iv > 0 {
		telemetry := time.NewTicker(iv)
		defer telemetry.Stop()
		telemetryC = telemetry.C
	}

	for {
		select {
		case <-h.Ctx.Done():
			return
		case packet := <-h.InputChan:
			h.HandleEvent(packet)
		case <-sampler.C:
			h.sample()
		case <-telemetryC:
			h.emitTelemetry()
		case <-h.resetChan:
			h.composer.Reset()
			h.readyEmitted = false
		}
	}
}

func (h *SensorHandler) HandleEvent(packet *core.EventPacket) error {
	event, ok := packet.Event.(*sensor.SensorReadingEvent)
	if !ok {
		h.SendPacket(packet)
		return nil
	}

	h.packets++
	h.periodPackets++
	h.lastPacket = h.now()

	if err := h.composer.Apply(event.Reading); err != nil {
		h.dropped++
		h.Logger.With(map[string]any{"error": err}).Debug("dropping sensor reading")
		return nil
	}
	return nil
}

func (h *SensorHandler) sample() {
	frame, ok := h.composer.Frame(h.now().Sub(h.start).Milliseconds())
	if !ok {
		return
	}
	if !h.readyEmitted {
		h.readyEmitted = true
		h.Logger.Info("all sensor channels reporting")
		h.Emit(&sensor.DeviceReadyEvent{DeviceID: h.config.DeviceID}, core.EventRelayDestinationNextService, "SensorHandler")
	}
	h.Emit(&sensor.SensorFrameEvent{Frame: frame}, core.EventRelayDestinationNextService, "SensorHandler")
}

func (h *SensorHandler) emitTelemetry() {
	now := h.now()
	elapsed := now.Sub(h.periodStart).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(h.periodPackets) / elapsed
	}
	h.periodPackets = 0
	h.periodStart = now

	var lastMs int64
	if !h.lastPacket.IsZero() {
		lastMs = h.lastPacket.Sub(h.start).Milliseconds()
	}
	h.Emit(&sensor.DeviceTelemetryEvent{
		DeviceID:     h.config.DeviceID,
		PacketCount:  h.packets,
		DroppedCount: h.dropped,
		DataRate:     rate,
		LastPacketMs: lastMs,
	}, core.EventRelayDestinationNextService, "SensorHandler")
}

// Reset re-arms the readiness gate. Safe to call from any goroutine.
func (h *SensorHandler) Reset() error {
	select {
	case h.resetChan <- struct{}{}:
	default:
	}
	return h.BaseHandler.Reset()
}
