package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/check-cli/internal/resilience"
)

func TestOpenAIModel_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		parts := req.Messages[1].MultiContent
		require.Len(t, parts, 2)
		assert.Equal(t, openai.ChatMessagePartTypeImageURL, parts[1].Type)
		assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,"))

		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant", Content: ` {"payee": "Acme"} `},
			}},
		})
	}))
	defer srv.Close()

	m := NewOpenAIModel("test-key", "", 0.1, 0, srv.URL)
	assert.Equal(t, "openai", m.Name())

	reply, err := m.Generate(context.Background(), pngImage, "image/png")
	require.NoError(t, err)
	assert.Equal(t, `{"payee": "Acme"}`, reply)
}

func TestOpenAIModel_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "requests"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIModel("test-key", "gpt-4o", 0, 256, srv.URL).Generate(context.Background(), pngImage, "image/png")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestOpenAIModel_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{ID: "chatcmpl-2"})
	}))
	defer srv.Close()

	_, err := NewOpenAIModel("test-key", "", 0, 0, srv.URL).Generate(context.Background(), pngImage, "image/png")
	assert.ErrorContains(t, err, "no choices")
}
