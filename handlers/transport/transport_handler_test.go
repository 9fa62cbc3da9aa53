package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handspeak/core"
	"handspeak/events/classifier"
	"handspeak/events/sensor"
)

type fakeDevice struct {
	core.NoopService
	readings chan core.SensorReading
	errs     chan error

	mu     sync.Mutex
	sent   []string
	closed bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{readings: make(chan core.SensorReading), errs: make(chan error)}
}

func (d *fakeDevice) DeviceID() string { return "watch" }

func (d *fakeDevice) StartReceiving(out chan<- core.SensorReading, errs chan<- error) {
	go func() {
		for {
			select {
			case r := <-d.readings:
				out <- r
			case err := <-d.errs:
				errs <- err
				return
			}
		}
	}()
}

func (d *fakeDevice) SendEvent(ev core.IExternalOutputEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, ev.GetId())
	return nil
}

func (d *fakeDevice) Sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func startHandler(t *testing.T, h core.IHandler) (in, next, top chan *core.EventPacket) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	in = make(chan *core.EventPacket, 8)
	next = make(chan *core.EventPacket, 8)
	top = make(chan *core.EventPacket, 8)
	require.NoError(t, h.Initialize(in, next, top, ctx))
	require.NoError(t, h.Start())
	return in, next, top
}

func receive(t *testing.T, ch chan *core.EventPacket) core.IEvent {
	t.Helper()
	select {
	case p := <-ch:
		return p.Event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for packet")
		return nil
	}
}

func TestInputHandler_EmitsReadings(t *testing.T) {
	dev := newFakeDevice()
	w := NewTransportHandlerWrapper(dev, DefaultConfig(), core.NewNopLogger())
	_, next, _ := startHandler(t, w.GetInputHandler())

	dev.readings <- core.SensorReading{Channel: core.ChannelGravity, Values: []float64{0, 9.8, 0}}
	ev, ok := receive(t, next).(*sensor.SensorReadingEvent)
	require.True(t, ok)
	assert.Equal(t, core.ChannelGravity, ev.Reading.Channel)
}

func TestInputHandler_DisconnectEndsSession(t *testing.T) {
	dev := newFakeDevice()
	w := NewTransportHandlerWrapper(dev, DefaultConfig(), core.NewNopLogger())
	in, next, top := startHandler(t, w.GetInputHandler())

	dev.errs <- assert.AnError
	end, ok := receive(t, top).(*core.EndSessionEvent)
	require.True(t, ok)
	assert.Equal(t, "device disconnected", end.Reason)

	// still relays re-entering packets
	in <- core.NewEventPacket(&core.StatusEvent{Message: "x"}, core.EventRelayDestinationNextService, "test")
	_, ok = receive(t, next).(*core.StatusEvent)
	assert.True(t, ok)
}

func TestOutputHandler_EchoesConfiguredEvents(t *testing.T) {
	dev := newFakeDevice()
	w := NewTransportHandlerWrapper(dev, TransportConfig{EchoEvents: []string{"classifier.label"}}, core.NewNopLogger())
	in, next, _ := startHandler(t, w.GetOutputHandler())

	in <- core.NewEventPacket(&classifier.GestureLabelEvent{Label: "Hello"}, core.EventRelayDestinationNextService, "test")
	in <- core.NewEventPacket(&core.StatusEvent{Message: "x"}, core.EventRelayDestinationNextService, "test")

	_, ok := receive(t, next).(*classifier.GestureLabelEvent)
	require.True(t, ok)
	_, ok = receive(t, next).(*core.StatusEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"classifier.label"}, dev.Sent())
}

func TestOutputHandler_DoesNotCloseSharedService(t *testing.T) {
	dev := newFakeDevice()
	w := NewTransportHandlerWrapper(dev, DefaultConfig(), core.NewNopLogger())
	require.NoError(t, w.GetOutputHandler().Cleanup())
	dev.mu.Lock()
	defer dev.mu.Unlock()
	assert.False(t, dev.closed)
}
