package enhancer

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

func newTestEnhancer(t *testing.T, handler http.HandlerFunc) *OpenAIEnhancer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = server.URL + "/v1"
	e := NewOpenAIEnhancer(cfg, core.NewNopLogger())
	require.NoError(t, e.Init(context.Background()))
	return e
}

func TestOpenAIEnhancer_Enhance(t *testing.T) {
	e := newTestEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, core.TonePrompt(core.ToneExcited, "we won"), req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" We won!!! "},"finish_reason":"stop"}]}`))
	})

	got, err := e.Enhance(context.Background(), "we won", core.ToneExcited)
	require.NoError(t, err)
	assert.Equal(t, "we won", got.GrammarCorrected)
	assert.Equal(t, "We won!!!", got.ToneAdjusted)
	assert.Equal(t, core.ToneExcited, got.Tone)
}

func TestOpenAIEnhancer_APIErrorIsTransient(t *testing.T) {
	e := newTestEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	})

	_, err := e.Enhance(context.Background(), "hi", core.ToneFriendly)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTransientNetwork))
	var netErr *core.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusTooManyRequests, netErr.StatusCode)
}

func TestOpenAIEnhancer_EmptyCompletion(t *testing.T) {
	e := newTestEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	})

	_, err := e.Enhance(context.Background(), "hi", core.ToneFriendly)
	assert.True(t, errors.Is(err, core.ErrTransientNetwork))
}

func TestOpenAIEnhancer_RequiresKey(t *testing.T) {
	e := NewOpenAIEnhancer(Config{}, core.NewNopLogger())
	assert.Error(t, e.Init(context.Background()))
	_, err := e.Enhance(context.Background(), "hi", core.ToneFriendly)
	assert.Error(t, err)
}
