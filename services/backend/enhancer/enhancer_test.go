package enhancer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handspeak/core"
	"handspeak/services/backend"
)

func newEnhancer(url string) *HTTPEnhancer {
	return NewHTTPEnhancer(backend.Config{BaseURL: url, TimeoutMs: 1000}, core.NewNopLogger())
}

func TestHTTPEnhancer_SendsUppercaseTone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/enhance-text", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello how you", req["text"])
		assert.Equal(t, "PROFESSIONAL", req["tone"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"grammar_corrected":"Hello, how are you?","tone_adjusted":"Good day, how are you?"}`))
	}))
	defer server.Close()

	got, err := newEnhancer(server.URL).Enhance(context.Background(), "hello how you", core.ToneProfessional)
	require.NoError(t, err)
	assert.Equal(t, core.Enhancement{
		Original:         "hello how you",
		GrammarCorrected: "Hello, how are you?",
		ToneAdjusted:     "Good day, how are you?",
		Tone:             core.ToneProfessional,
	}, got)
}

func TestHTTPEnhancer_MissingGrammarUsesOriginal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tone_adjusted":"Hey there!"}`))
	}))
	defer server.Close()

	got, err := newEnhancer(server.URL).Enhance(context.Background(), "hello", core.ToneFriendly)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.GrammarCorrected)
	assert.Equal(t, "Hey there!", got.ToneAdjusted)
}

func TestHTTPEnhancer_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"error with echoed text", http.StatusInternalServerError, `{"error":"quota","grammar_corrected":"hi","tone_adjusted":"hi"}`},
		{"error field with 200", http.StatusOK, `{"error":"quota"}`},
		{"empty tone_adjusted", http.StatusOK, `{"grammar_corrected":"hi","tone_adjusted":"  "}`},
		{"not json", http.StatusOK, `<html>`},
		{"gateway", http.StatusBadGateway, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newEnhancer(server.URL).Enhance(context.Background(), "hi", core.ToneCasual)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrTransientNetwork), "err = %v", err)
		})
	}
}

func TestHTTPEnhancer_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := newEnhancer(server.URL).Enhance(ctx, "hi", core.ToneCasual)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTransientNetwork))
}
