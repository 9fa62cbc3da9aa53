package local

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handspeak/core"
)

func TestEspeakEngine_MapsRateAndPitch(t *testing.T) {
	tests := []struct {
		rate, pitch float64
		wpm, p      string
	}{
		{1.0, 1.0, "175", "50"},
		{0.9, 0.9, "158", "45"},
		{1.1, 1.1, "193", "55"},
		{0, 0, "175", "50"},
		{1.0, 3.0, "175", "99"},
	}
	e := NewEspeakEngine(Config{}, core.NewNopLogger())
	for _, tt := range tests {
		args := e.Args("hi", tt.rate, tt.pitch)
		assert.Equal(t, []string{"-v", "en-us", "-s", tt.wpm, "-p", tt.p, "--", "hi"}, args)
	}
}

func TestEspeakEngine_Speak(t *testing.T) {
	var gotName string
	var gotArgs []string
	e := NewEspeakEngine(Config{Binary: "say-it"}, core.NewNopLogger()).
		WithRunner(func(_ context.Context, name string, args ...string) error {
			gotName, gotArgs = name, args
			return nil
		})

	require.NoError(t, e.Speak(context.Background(), "Good morning", 1.0, 1.0))
	assert.Equal(t, "say-it", gotName)
	assert.Equal(t, "Good morning", gotArgs[len(gotArgs)-1])

	assert.Error(t, e.Speak(context.Background(), "", 1, 1))
}

func TestEspeakEngine_PropagatesFailure(t *testing.T) {
	boom := errors.New("no audio device")
	e := NewEspeakEngine(Config{}, core.NewNopLogger()).
		WithRunner(func(context.Context, string, ...string) error { return boom })
	assert.ErrorIs(t, e.Speak(context.Background(), "hi", 1, 1), boom)
}
