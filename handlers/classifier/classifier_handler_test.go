package classifier

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handspeak/core"
	"handspeak/events/classifier"
	"handspeak/events/window"
)

type fakeClassifier struct {
	core.NoopService
	label   string
	err     error
	block   chan struct{}
	calls   atomic.Int32
	started chan struct{}
}

func (f *fakeClassifier) Classify(ctx context.Context, w *core.Window) (core.Prediction, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return core.Prediction{}, core.NewNetworkError("classify", 0, ctx.Err())
		}
	}
	if f.err != nil {
		return core.Prediction{}, f.err
	}
	return core.Prediction{Label: f.label, Confidence: 0.9}, nil
}

func startHandler(t *testing.T, svc *fakeClassifier, cfg ClassifierConfig) (chan *core.EventPacket, chan *core.EventPacket) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	in := make(chan *core.EventPacket, 8)
	next := make(chan *core.EventPacket, 32)
	h := NewClassifierHandler(svc, cfg, core.NewNopLogger())
	require.NoError(t, h.Initialize(in, next, make(chan *core.EventPacket, 8), ctx))
	require.NoError(t, h.Start())
	return in, next
}

func readyPacket(seq uint64) *core.EventPacket {
	return core.NewEventPacket(&window.WindowReadyEvent{Window: &core.Window{Seq: seq}}, core.EventRelayDestinationNextService, "test")
}

func receive(t *testing.T, ch <-chan *core.EventPacket) core.IEvent {
	t.Helper()
	select {
	case p := <-ch:
		return p.Event
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return nil
	}
}

func TestClassifierHandler_EmitsLabel(t *testing.T) {
	svc := &fakeClassifier{label: "Hello"}
	in, next := startHandler(t, svc, DefaultConfig())

	in <- readyPacket(7)

	ev, ok := receive(t, next).(*classifier.GestureLabelEvent)
	require.True(t, ok)
	assert.Equal(t, "Hello", ev.Label)
	assert.Equal(t, uint64(7), ev.WindowSeq)
}

func TestClassifierHandler_FailureIsNotALabel(t *testing.T) {
	svc := &fakeClassifier{err: core.NewNetworkError("classify", 500, errors.New("boom"))}
	in, next := startHandler(t, svc, DefaultConfig())

	in <- readyPacket(1)

	failed, ok := receive(t, next).(*classifier.ClassificationFailedEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(1), failed.WindowSeq)
	assert.Contains(t, failed.Error, "boom")

	status, ok := receive(t, next).(*core.StatusEvent)
	require.True(t, ok)
	assert.Equal(t, core.StatusWarning, status.Level)
	assert.Equal(t, "classifier", status.Source)
}

func TestClassifierHandler_TimeoutBoundsCall(t *testing.T) {
	svc := &fakeClassifier{block: make(chan struct{})}
	in, next := startHandler(t, svc, ClassifierConfig{TimeoutMs: 30})

	in <- readyPacket(1)

	_, ok := receive(t, next).(*classifier.ClassificationFailedEvent)
	assert.True(t, ok)
}

func TestClassifierHandler_DropsWindowsWhileBusy(t *testing.T) {
	svc := &fakeClassifier{label: "Yes", block: make(chan struct{}), started: make(chan struct{}, 8)}
	in, next := startHandler(t, svc, DefaultConfig())

	in <- readyPacket(1)
	<-svc.started
	in <- readyPacket(2) // queued
	in <- readyPacket(3) // dropped
	in <- readyPacket(4) // dropped

	// let the event loop drain the input before releasing the worker
	require.Eventually(t, func() bool { return len(in) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(svc.block)

	first := receive(t, next).(*classifier.GestureLabelEvent)
	second := receive(t, next).(*classifier.GestureLabelEvent)
	assert.Equal(t, uint64(1), first.WindowSeq)
	assert.Equal(t, uint64(2), second.WindowSeq)

	select {
	case p := <-next:
		t.Fatalf("unexpected event %T", p.Event)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(2), svc.calls.Load())
}

func TestClassifierHandler_ForwardsOtherEvents(t *testing.T) {
	in, next := startHandler(t, &fakeClassifier{}, DefaultConfig())

	in <- core.NewEventPacket(&window.BufferProgressEvent{Length: 10, Target: 100}, core.EventRelayDestinationNextService, "test")

	_, ok := receive(t, next).(*window.BufferProgressEvent)
	assert.True(t, ok)
}
