package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAgent/internal/config"
	"NewsAgent/internal/ports"
)

func TestCompleteSendsPayload(t *testing.T) {
	var got chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Yes \n"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL + "/v1/", APIKey: "secret"})
	reply, err := client.Complete(context.Background(), ports.ChatRequest{
		Model:       "qwen2.5:7b",
		System:      "answer only yes or no",
		User:        "is this AI?",
		Temperature: 0.1,
		MaxTokens:   4,
	})
	require.NoError(t, err)
	assert.Equal(t, "Yes", reply)

	assert.Equal(t, "qwen2.5:7b", got.Model)
	assert.Equal(t, 4, got.MaxTokens)
	assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "is this AI?", got.Messages[1].Content)
}

func TestCompleteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("case") {
		case "empty":
			_, _ = w.Write([]byte(`{"choices":[]}`))
		default:
			http.Error(w, "model not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL})
	_, err := client.Complete(context.Background(), ports.ChatRequest{Model: "m", User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")

	client.endpoint = srv.URL + "/chat/completions?case=empty"
	_, err = client.Complete(context.Background(), ports.ChatRequest{Model: "m", User: "u"})
	assert.ErrorIs(t, err, ErrEmptyReply)

	_, err = client.Complete(context.Background(), ports.ChatRequest{User: "u"})
	require.Error(t, err)
}

func TestCompleteHonoursDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(config.LLMConfig{BaseURL: srv.URL}).Complete(ctx, ports.ChatRequest{Model: "m", User: "u"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
