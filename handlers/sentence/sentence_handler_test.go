package sentence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handspeak/core"
	"handspeak/events/classifier"
	"handspeak/events/control"
	"handspeak/events/sentence"
	"handspeak/events/speech"
	"handspeak/history"
)

type fakeEnhancer struct {
	core.NoopService
	mu    sync.Mutex
	calls []string
	tones []core.Tone
	fn    func(ctx context.Context, text string, tone core.Tone) (core.Enhancement, error)
}

func (f *fakeEnhancer) Enhance(ctx context.Context, text string, tone core.Tone) (core.Enhancement, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.tones = append(f.tones, tone)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, text, tone)
	}
	return core.Enhancement{Original: text, GrammarCorrected: text + ".", ToneAdjusted: text + "!", Tone: tone}, nil
}

func (f *fakeEnhancer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeProbe struct{ speaking atomic.Bool }

func (p *fakeProbe) IsSpeaking() bool { return p.speaking.Load() }

type harness struct {
	h     *SentenceHandler
	in    chan *core.EventPacket
	next  chan *core.EventPacket
	probe *fakeProbe
}

func testConfig() SentenceConfig {
	cfg := DefaultConfig()
	cfg.InactivityTimeoutMs = 60
	cfg.FinalizeRetryIntervalMs = 20
	cfg.SpeakRetryIntervalMs = 10
	cfg.EnhanceTimeoutMs = 1000
	return cfg
}

func newHarness(t *testing.T, enhancer EnhancerService, cfg SentenceConfig, store history.Store) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	probe := &fakeProbe{}
	h := NewSentenceHandler(enhancer, probe, history.NewLog(5), cfg, core.NewNopLogger())
	if store != nil {
		h.WithStore(store, "watch-1")
	}
	in := make(chan *core.EventPacket, 16)
	next := make(chan *core.EventPacket, 256)
	require.NoError(t, h.Initialize(in, next, make(chan *core.EventPacket, 16), ctx))
	require.NoError(t, h.Start())
	return &harness{h: h, in: in, next: next, probe: probe}
}

func (hs *harness) send(ev core.IEvent) {
	hs.in <- core.NewEventPacket(ev, core.EventRelayDestinationNextService, "test")
}

func (hs *harness) label(l string) {
	hs.send(&classifier.GestureLabelEvent{Label: l})
}

// waitFor discards events until one of type T arrives.
func waitFor[T core.IEvent](t *testing.T, ch <-chan *core.EventPacket, timeout time.Duration) T {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case p := <-ch:
			if ev, ok := p.Event.(T); ok {
				return ev
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func assertNo[T core.IEvent](t *testing.T, ch <-chan *core.EventPacket, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case p := <-ch:
			if _, ok := p.Event.(T); ok {
				t.Fatalf("unexpected %T", p.Event)
			}
		case <-deadline:
			return
		}
	}
}

func TestSentence_FinalizesAfterInactivity(t *testing.T) {
	enh := &fakeEnhancer{}
	hs := newHarness(t, enh, testConfig(), nil)

	hs.label("Hello")
	word := waitFor[*speech.SpeakRequestEvent](t, hs.next, time.Second)
	assert.Equal(t, speech.KindWord, word.Kind)
	assert.Equal(t, "Hello", word.Text)

	for i := 0; i < 3; i++ {
		hs.label("no gesture")
	}

	final := waitFor[*sentence.SentenceFinalizedEvent](t, hs.next, time.Second)
	assert.Equal(t, "Hello", final.Enhancement.Original)
	assert.Equal(t, "Hello!", final.Enhancement.ToneAdjusted)
	assert.False(t, final.Enhancement.Fallback)

	hist := waitFor[*sentence.HistoryUpdatedEvent](t, hs.next, time.Second)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, "Hello", hist.Entries[0].Original)

	say := waitFor[*speech.SpeakRequestEvent](t, hs.next, time.Second)
	assert.Equal(t, speech.KindSentence, say.Kind)
	assert.Equal(t, "Hello!", say.Text)
	assert.Equal(t, core.ToneFriendly, say.Tone)

	state := waitFor[*sentence.SentenceStateEvent](t, hs.next, time.Second)
	assert.Equal(t, sentence.StateIdle, state.State)
	assert.Equal(t, []string{"Hello"}, enh.Calls())
}

func TestSentence_DebounceUsesLastSentinel(t *testing.T) {
	enh := &fakeEnhancer{}
	cfg := testConfig()
	cfg.InactivityTimeoutMs = 80
	hs := newHarness(t, enh, cfg, nil)

	hs.label("Hello")
	hs.label("No gesture")
	time.Sleep(50 * time.Millisecond)
	last := time.Now()
	hs.label("No gesture")

	waitFor[*sentence.SentenceFinalizedEvent](t, hs.next, time.Second)
	assert.GreaterOrEqual(t, time.Since(last), 75*time.Millisecond)
	assert.Len(t, enh.Calls(), 1)
}

func TestSentence_RealWordCancelsTimer(t *testing.T) {
	enh := &fakeEnhancer{}
	hs := newHarness(t, enh, testConfig(), nil)

	hs.label("Hello")
	hs.label("No gesture")
	hs.label("World")

	assertNo[*sentence.SentenceFinalizedEvent](t, hs.next, 150*time.Millisecond)
	assert.Empty(t, enh.Calls())

	hs.label("No gesture")
	final := waitFor[*sentence.SentenceFinalizedEvent](t, hs.next, time.Second)
	assert.Equal(t, "Hello World", final.Enhancement.Original)
}

func TestSentence_SentinelWhileIdleIsNoop(t *testing.T) {
	enh := &fakeEnhancer{}
	hs := newHarness(t, enh, testConfig(), nil)

	hs.label("No gesture")
	hs.label("")
	hs.label("NO GESTURE")

	assertNo[*sentence.SentenceStateEvent](t, hs.next, 150*time.Millisecond)
	assert.Empty(t, enh.Calls())
}

func TestSentence_EnhancerFailureFallsBackToOriginal(t *testing.T) {
	enh := &fakeEnhancer{fn: func(context.Context, string, core.Tone) (core.Enhancement, error) {
		return core.Enhancement{}, core.NewNetworkError("enhance", 500, errors.New("quota"))
	}}
	hs := newHarness(t, enh, testConfig(), nil)

	hs.label("Thank")
	hs.label("you")
	hs.label("No gesture")

	status := waitFor[*core.StatusEvent](t, hs.next, time.Second)
	assert.Equal(t, "enhancer", status.Source)

	final := waitFor[*sentence.SentenceFinalizedEvent](t, hs.next, time.Second)
	assert.True(t, final.Enhancement.Fallback)
	assert.Equal(t, "Thank you", final.Enhancement.GrammarCorrected)
	assert.Equal(t, "Thank you", final.Enhancement.ToneAdjusted)

	say := waitFor[*speech.SpeakRequestEvent](t, hs.next, time.Second)
	assert.Equal(t, "Thank you", say.Text)

	entries := hs.h.History().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Thank you", entries[0].Enhanced)
	assert.True(t, entries[0].Fallback)
}

func TestSentence_FinalizeWaitsForSpeech(t *testing.T) {
	enh := &fakeEnhancer{}
	hs := newHarness(t, enh, testConfig(), nil)
	hs.probe.speaking.Store(true)

	hs.label("Hello")
	hs.label("No gesture")

	assertNo[*sentence.SentenceFinalizedEvent](t, hs.next, 150*time.Millisecond)
	hs.probe.speaking.Store(false)

	final := waitFor[*sentence.SentenceFinalizedEvent](t, hs.next, time.Second)
	assert.Equal(t, "Hello", final.Enhancement.Original)
}

func TestSentence_FinalizeRetriesAreBounded(t *testing.T) {
	enh := &fakeEnhancer{}
	cfg := testConfig()
	cfg.FinalizeMaxRetries = 2
	hs := newHarness(t, enh, cfg, nil)
	hs.probe.speaking.Store(true)

	hs.label("Hello")
	hs.label("No gesture")

	final := waitFor[*sentence.SentenceFinalizedEvent](t, hs.next, time.Second)
	assert.Equal(t, "Hello", final.Enhancement.Original)
}

func TestSentence_ResetDiscardsInFlightEnhancement(t *testing.T) {
	release := make(chan struct{})
	enh := &fakeEnhancer{fn: func(ctx context.Context, text string, tone core.Tone) (core.Enhancement, error) {
		<-release
		return core.Enhancement{Original: text, GrammarCorrected: text, ToneAdjusted: text, Tone: tone}, nil
	}}
	hs := newHarness(t, enh, testConfig(), nil)

	hs.label("Hello")
	hs.label("No gesture")
	state := waitFor[*sentence.SentenceStateEvent](t, hs.next, time.Second)
	for state.State != sentence.StateFinalizing {
		state = waitFor[*sentence.SentenceStateEvent](t, hs.next, time.Second)
	}

	hs.send(&control.SessionResetEvent{})
	waitFor[*control.SessionResetEvent](t, hs.next, time.Second)
	close(release)

	assertNo[*sentence.SentenceFinalizedEvent](t, hs.next, 150*time.Millisecond)
	assert.Equal(t, 0, hs.h.History().Len())
}

func TestSentence_WordsDuringEnhancementStartNextSentence(t *testing.T) {
	release := make(chan struct{})
	var first atomic.Bool
	enh := &fakeEnhancer{fn: func(ctx context.Context, text string, tone core.Tone) (core.Enhancement, error) {
		if first.CompareAndSwap(false, true) {
			<-release
		}
		return core.Enhancement{Original: text, GrammarCorrected: text, ToneAdjusted: text, Tone: tone}, nil
	}}
	hs := newHarness(t, enh, testConfig(), nil)

	hs.label("Hello")
	hs.label("No gesture")
	require.Eventually(t, func() bool { return len(enh.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	hs.label("Bye")
	hs.label("No gesture")
	time.Sleep(100 * time.Millisecond)
	close(release)

	a := waitFor[*sentence.SentenceFinalizedEvent](t, hs.next, time.Second)
	b := waitFor[*sentence.SentenceFinalizedEvent](t, hs.next, time.Second)
	assert.Equal(t, "Hello", a.Enhancement.Original)
	assert.Equal(t, "Bye", b.Enhancement.Original)
	assert.Equal(t, []string{"Bye", "Hello"}, []string{
		hs.h.History().Entries()[0].Original,
		hs.h.History().Entries()[1].Original,
	})
}

func TestSentence_RetriesRejectedSentenceOnly(t *testing.T) {
	hs := newHarness(t, &fakeEnhancer{}, testConfig(), nil)

	hs.send(&speech.SpeakRejectedEvent{Request: speech.SpeakRequestEvent{RequestID: "w", Text: "Hi", Kind: speech.KindWord}})
	assertNo[*speech.SpeakRequestEvent](t, hs.next, 60*time.Millisecond)

	hs.send(&speech.SpeakRejectedEvent{Request: speech.SpeakRequestEvent{RequestID: "s", Text: "Hi there", Kind: speech.KindSentence}})
	retry := waitFor[*speech.SpeakRequestEvent](t, hs.next, time.Second)
	assert.Equal(t, "s", retry.RequestID)
	assert.Equal(t, 1, retry.Attempt)

	hs.send(&speech.SpeakRejectedEvent{Request: speech.SpeakRequestEvent{RequestID: "s", Kind: speech.KindSentence, Attempt: testConfig().SpeakMaxRetries}})
	assertNo[*speech.SpeakRequestEvent](t, hs.next, 60*time.Millisecond)
}

func TestSentence_ToneSelection(t *testing.T) {
	enh := &fakeEnhancer{}
	hs := newHarness(t, enh, testConfig(), nil)

	hs.send(&control.ToneSelectEvent{Tone: "PROFESSIONAL"})
	changed := waitFor[*control.ToneChangedEvent](t, hs.next, time.Second)
	assert.Equal(t, core.ToneProfessional, changed.Tone)

	hs.label("Hello")
	hs.label("No gesture")
	say := waitFor[*sentence.SentenceFinalizedEvent](t, hs.next, time.Second)
	assert.Equal(t, core.ToneProfessional, say.Enhancement.Tone)
}

func TestSentence_PersistsAndRestoresHistory(t *testing.T) {
	store := history.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "watch-1", []history.Entry{{Original: "Earlier", Enhanced: "Earlier."}}))

	hs := newHarness(t, &fakeEnhancer{}, testConfig(), store)
	assert.Equal(t, 1, hs.h.History().Len())

	hs.label("Hello")
	hs.label("No gesture")
	waitFor[*sentence.HistoryUpdatedEvent](t, hs.next, time.Second)

	saved, err := store.Load(context.Background(), "watch-1")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "Hello", saved[0].Original)
	assert.Equal(t, "Earlier", saved[1].Original)
}
