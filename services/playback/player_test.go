package playback

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handspeak/core"
)

func TestCommandPlayer_UsesFirstAvailable(t *testing.T) {
	p := NewCommandPlayer([]Command{{Name: "missing"}, {Name: "player", Args: []string{"-q"}}}, core.NewNopLogger())
	p.lookPath = func(name string) (string, error) {
		if name == "player" {
			return "/usr/bin/player", nil
		}
		return "", errors.New("not found")
	}

	var played []byte
	var gotArgs []string
	p.run = func(_ context.Context, name string, args ...string) error {
		assert.Equal(t, "player", name)
		gotArgs = args
		data, err := os.ReadFile(args[len(args)-1])
		require.NoError(t, err)
		played = data
		return nil
	}

	chunk := core.AudioChunk{Data: []byte{0xff, 0xfb, 0x90}, Format: core.MP3}
	require.NoError(t, p.Play(context.Background(), chunk))
	assert.Equal(t, chunk.Data, played)
	assert.Equal(t, "-q", gotArgs[0])
	assert.Contains(t, gotArgs[1], ".mp3")

	_, err := os.Stat(gotArgs[1])
	assert.True(t, os.IsNotExist(err), "temp file should be removed")
}

func TestCommandPlayer_NoPlayer(t *testing.T) {
	p := NewCommandPlayer(nil, core.NewNopLogger())
	p.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	err := p.Play(context.Background(), core.AudioChunk{Data: []byte{1}, Format: core.MP3})
	assert.Error(t, err)
}

func TestCommandPlayer_PropagatesPlayerError(t *testing.T) {
	p := NewCommandPlayer([]Command{{Name: "player"}}, core.NewNopLogger())
	p.lookPath = func(string) (string, error) { return "/bin/player", nil }
	p.run = func(context.Context, string, ...string) error { return errors.New("device busy") }

	err := p.Play(context.Background(), core.AudioChunk{Data: []byte{0, 0, 1, 0}, Format: core.PCM, SampleRate: 16000, Channels: 1})
	assert.ErrorContains(t, err, "device busy")
}
