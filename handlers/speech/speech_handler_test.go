package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handspeak/core"
	"handspeak/events/speech"
	elevenlabs "handspeak/services/elevenlabs/tts"
)

type localCall struct {
	text        string
	rate, pitch float64
}

type fakeLocal struct {
	mu    sync.Mutex
	calls []localCall
	block chan struct{}
	err   error
}

func (f *fakeLocal) Speak(ctx context.Context, text string, rate, pitch float64) error {
	f.mu.Lock()
	f.calls = append(f.calls, localCall{text, rate, pitch})
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeLocal) Calls() []localCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]localCall(nil), f.calls...)
}

type fakePlayer struct {
	played atomic.Int32
	err    error
}

func (p *fakePlayer) Play(context.Context, core.AudioChunk) error {
	p.played.Add(1)
	return p.err
}

type fakeSynth struct{ err error }

func (s fakeSynth) Synthesize(context.Context, string, core.Tone) (core.AudioChunk, error) {
	if s.err != nil {
		return core.AudioChunk{}, s.err
	}
	return core.AudioChunk{Data: []byte{1, 2}, Format: core.MP3}, nil
}

func TestArbiter_PrimaryNon2xxFallsBackToLocal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer server.Close()

	primary := elevenlabs.NewElevenLabsTTS(elevenlabs.ElevenLabsTTSConfig{APIKey: "k", BaseURL: server.URL}, core.NewNopLogger())
	player := &fakePlayer{}
	local := &fakeLocal{}
	a := NewArbiter(primary, player, local, DefaultConfig(), core.NewNopLogger())

	out, err := a.Speak(context.Background(), "Good day", core.ToneProfessional)
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Equal(t, "local", out.Engine)
	assert.Equal(t, int32(0), player.played.Load())
	assert.Equal(t, []localCall{{"Good day", 0.9, 0.9}}, local.Calls())
	assert.False(t, a.IsSpeaking())
}

func TestArbiter_PlaybackErrorFallsBack(t *testing.T) {
	local := &fakeLocal{}
	a := NewArbiter(fakeSynth{}, &fakePlayer{err: errors.New("no device")}, local, DefaultConfig(), core.NewNopLogger())

	out, err := a.Speak(context.Background(), "hi", core.ToneSarcastic)
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	// unknown prosody uses the default tone
	assert.Equal(t, []localCall{{"hi", 1.0, 1.0}}, local.Calls())
}

func TestArbiter_PrimarySuccess(t *testing.T) {
	player := &fakePlayer{}
	local := &fakeLocal{}
	a := NewArbiter(fakeSynth{}, player, local, DefaultConfig(), core.NewNopLogger())

	out, err := a.Speak(context.Background(), "hi", core.ToneFriendly)
	require.NoError(t, err)
	assert.False(t, out.Fallback)
	assert.Equal(t, int32(1), player.played.Load())
	assert.Empty(t, local.Calls())
}

func TestArbiter_FlagClearsWhenBothEnginesFail(t *testing.T) {
	local := &fakeLocal{err: errors.New("espeak missing")}
	a := NewArbiter(fakeSynth{err: core.NewNetworkError("synthesize", 500, errors.New("x"))}, &fakePlayer{}, local, DefaultConfig(), core.NewNopLogger())

	_, err := a.Speak(context.Background(), "hi", core.ToneFriendly)
	require.Error(t, err)
	assert.False(t, a.IsSpeaking())

	_, err = a.Speak(context.Background(), "again", core.ToneFriendly)
	require.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrSpeechBusy))
}

func TestArbiter_ConcurrentSpeakExactlyOneWins(t *testing.T) {
	for i := 0; i < 50; i++ {
		local := &fakeLocal{block: make(chan struct{})}
		a := NewArbiter(nil, nil, local, DefaultConfig(), core.NewNopLogger())

		var wg sync.WaitGroup
		var ok, busy atomic.Int32
		start := make(chan struct{})
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := a.TrySpeak(context.Background(), "hi", core.ToneFriendly, nil)
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, core.ErrSpeechBusy):
					busy.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), ok.Load())
		assert.Equal(t, int32(1), busy.Load())
		assert.True(t, a.IsSpeaking())
		close(local.block)
		require.Eventually(t, func() bool { return !a.IsSpeaking() }, time.Second, time.Millisecond)
	}
}

func startSpeechHandler(t *testing.T, a *Arbiter) (in, next, top chan *core.EventPacket) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	in = make(chan *core.EventPacket, 8)
	next = make(chan *core.EventPacket, 32)
	top = make(chan *core.EventPacket, 8)
	h := NewSpeechHandler(a, core.NewNopLogger())
	require.NoError(t, h.Initialize(in, next, top, ctx))
	require.NoError(t, h.Start())
	return in, next, top
}

func request(id, text string, kind speech.RequestKind) *core.EventPacket {
	return core.NewEventPacket(&speech.SpeakRequestEvent{RequestID: id, Text: text, Tone: core.ToneFriendly, Kind: kind}, core.EventRelayDestinationNextService, "test")
}

func TestSpeechHandler_RejectsWhileSpeaking(t *testing.T) {
	local := &fakeLocal{block: make(chan struct{})}
	a := NewArbiter(nil, nil, local, DefaultConfig(), core.NewNopLogger())
	in, next, top := startSpeechHandler(t, a)

	in <- request("w1", "Hello", speech.KindWord)
	started := (<-next).Event.(*speech.SpeakingStartedEvent)
	assert.Equal(t, "w1", started.RequestID)

	in <- request("s1", "Hello there", speech.KindSentence)
	select {
	case p := <-top:
		rejected, ok := p.Event.(*speech.SpeakRejectedEvent)
		require.True(t, ok)
		assert.Equal(t, "s1", rejected.Request.RequestID)
		assert.Equal(t, speech.KindSentence, rejected.Request.Kind)
	case <-time.After(time.Second):
		t.Fatal("no rejection")
	}

	close(local.block)
	select {
	case p := <-next:
		ended, ok := p.Event.(*speech.SpeakingEndedEvent)
		require.True(t, ok)
		assert.Equal(t, "w1", ended.RequestID)
		assert.Empty(t, ended.Error)
	case <-time.After(time.Second):
		t.Fatal("no end event")
	}
	require.Eventually(t, func() bool { return !a.IsSpeaking() }, time.Second, time.Millisecond)
}

func TestSpeechHandler_NormalizesAndForwards(t *testing.T) {
	local := &fakeLocal{}
	a := NewArbiter(nil, nil, local, DefaultConfig(), core.NewNopLogger())
	in, next, _ := startSpeechHandler(t, a)

	in <- request("x", "**Hello**   world 👋", speech.KindSentence)
	started := (<-next).Event.(*speech.SpeakingStartedEvent)
	assert.Equal(t, "Hello world", started.Text)
	<-next

	in <- request("empty", " ** ", speech.KindSentence)
	ended, ok := (<-next).Event.(*speech.SpeakingEndedEvent)
	require.True(t, ok)
	assert.Equal(t, "empty", ended.RequestID)
	assert.Equal(t, speech.KindSentence, ended.Kind)
	assert.Equal(t, "none", ended.Engine)
	assert.Equal(t, errNothingToSpeak.Error(), ended.Error)
	assert.False(t, a.IsSpeaking())

	in <- core.NewEventPacket(&core.StatusEvent{Message: "passthrough"}, core.EventRelayDestinationNextService, "test")
	status, ok := (<-next).Event.(*core.StatusEvent)
	require.True(t, ok)
	assert.Equal(t, "passthrough", status.Message)
	assert.Len(t, local.Calls(), 1)
}

func TestNormalizeTextForSpeech(t *testing.T) {
	assert.Equal(t, "Hi there!", normalizeTextForSpeech("  *Hi*  there! "))
	assert.Equal(t, "code", normalizeTextForSpeech("`code`"))
	assert.Equal(t, "", normalizeTextForSpeech("🎉"))
}
