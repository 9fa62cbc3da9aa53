package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handspeak/core"
)

func TestElevenLabsTTS_Request(t *testing.T) {
	tests := []struct {
		tone       core.Tone
		stability  float64
		similarity float64
	}{
		{core.ToneFriendly, 0.5, 0.75},
		{core.ToneProfessional, 0.7, 0.8},
		{core.TonePersuasive, 0.6, 0.85},
		{core.ToneCasual, 0.4, 0.7},
		{core.ToneSarcastic, 0.5, 0.75},
	}

	for _, tt := range tests {
		t.Run(string(tt.tone), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/text-to-speech/voice-123", r.URL.Path)
				assert.Equal(t, "mp3_44100_128", r.URL.Query().Get("output_format"))
				assert.Equal(t, "secret", r.Header.Get("xi-api-key"))
				assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))

				var body ttsRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "Hello there", body.Text)
				assert.Equal(t, DefaultModelID, body.ModelID)
				assert.Equal(t, tt.stability, body.VoiceSettings.Stability)
				assert.Equal(t, tt.similarity, body.VoiceSettings.SimilarityBoost)

				w.Header().Set("Content-Type", "audio/mpeg")
				w.Write([]byte{0xff, 0xfb, 0x90, 0x00})
			}))
			defer server.Close()

			e := NewElevenLabsTTS(ElevenLabsTTSConfig{
				APIKey:  "secret",
				BaseURL: server.URL + "/v1/text-to-speech",
				VoiceID: "voice-123",
			}, core.NewNopLogger())

			chunk, err := e.Synthesize(context.Background(), "Hello there", tt.tone)
			require.NoError(t, err)
			assert.Equal(t, core.MP3, chunk.Format)
			assert.Equal(t, []byte{0xff, 0xfb, 0x90, 0x00}, chunk.Data)
		})
	}
}

func TestElevenLabsTTS_ULawIsDecoded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ulaw_8000", r.URL.Query().Get("output_format"))
		w.Write([]byte{0xff, 0x7f, 0x00})
	}))
	defer server.Close()

	e := NewElevenLabsTTS(ElevenLabsTTSConfig{APIKey: "k", BaseURL: server.URL, Encoding: "ulaw"}, core.NewNopLogger())
	chunk, err := e.Synthesize(context.Background(), "hi", core.ToneFriendly)
	require.NoError(t, err)
	assert.Equal(t, core.PCM, chunk.Format)
	assert.Equal(t, 8000, chunk.SampleRate)
	assert.Len(t, chunk.Data, 6)
}

func TestElevenLabsTTS_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
	}{
		{"unauthorized", http.StatusUnauthorized, []byte(`{"detail":"invalid api key"}`)},
		{"quota", http.StatusTooManyRequests, []byte(`{"detail":"quota exceeded"}`)},
		{"empty audio", http.StatusOK, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write(tt.body)
			}))
			defer server.Close()

			e := NewElevenLabsTTS(ElevenLabsTTSConfig{APIKey: "k", BaseURL: server.URL}, core.NewNopLogger())
			_, err := e.Synthesize(context.Background(), "hi", core.ToneFriendly)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrTransientNetwork))
		})
	}
}

func TestElevenLabsTTS_MissingKey(t *testing.T) {
	e := NewElevenLabsTTS(ElevenLabsTTSConfig{}, core.NewNopLogger())
	assert.Error(t, e.Init(context.Background()))
	_, err := e.Synthesize(context.Background(), "hi", core.ToneFriendly)
	assert.True(t, errors.Is(err, core.ErrTransientNetwork))
}
