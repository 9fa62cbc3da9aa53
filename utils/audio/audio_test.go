package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handspeak/core"
)

func TestPCMBytesToWavBytes_RoundTrip(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	wav, err := PCMBytesToWavBytes(pcm, 1, 16000)
	require.NoError(t, err)
	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))

	data, err := StripWAVHeaderIfPresent(wav)
	require.NoError(t, err)
	assert.Equal(t, pcm, data)
}

func TestPCMBytesToWavBytes_Rejects(t *testing.T) {
	_, err := PCMBytesToWavBytes(nil, 1, 16000)
	assert.Error(t, err)
	_, err = PCMBytesToWavBytes([]byte{1, 2, 3}, 1, 16000)
	assert.Error(t, err)
	_, err = PCMBytesToWavBytes([]byte{1, 2}, 3, 16000)
	assert.Error(t, err)
	_, err = PCMBytesToWavBytes([]byte{1, 2}, 1, 0)
	assert.Error(t, err)
}

func TestULawRoundTrip(t *testing.T) {
	pcm := make([]byte, 16)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i*1000-4000)))
	}
	u, err := PCMBytesToULaw(pcm)
	require.NoError(t, err)
	require.Len(t, u, 8)

	back := ULawBytesToPCM(u)
	require.Len(t, back, 16)
	for i := 0; i < 8; i++ {
		want := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		got := int16(binary.LittleEndian.Uint16(back[i*2:]))
		assert.InDelta(t, want, got, 200)
	}
}

func TestPlayable(t *testing.T) {
	mp3 := core.AudioChunk{Data: []byte{0xff, 0xfb}, Format: core.MP3}
	body, ext, err := Playable(mp3)
	require.NoError(t, err)
	assert.Equal(t, ".mp3", ext)
	assert.Equal(t, mp3.Data, body)

	ulaw := core.AudioChunk{Data: []byte{0xff, 0x7f, 0x00, 0x80}, Format: core.ULAW, SampleRate: 8000, Channels: 1}
	body, ext, err = Playable(ulaw)
	require.NoError(t, err)
	assert.Equal(t, ".wav", ext)
	assert.Len(t, body, 44+8)

	_, _, err = Playable(core.AudioChunk{Format: core.MP3})
	assert.Error(t, err)
}
