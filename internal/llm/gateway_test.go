package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestStubChatIsDeterministic(t *testing.T) {
	g, err := NewGateway(Config{Provider: ProviderStub}, discardLogger())
	require.NoError(t, err)

	for _, prompt := range []string{"", "X", "Break down this task\nline two"} {
		first := g.Chat(context.Background(), prompt)
		second := g.Chat(context.Background(), prompt)
		assert.Equal(t, "[stub] "+prompt, first.Text)
		assert.Equal(t, first, second)
		assert.False(t, first.Failed())
	}
}

func TestEmptyProviderDefaultsToStub(t *testing.T) {
	g, err := NewGateway(Config{}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, ProviderStub, g.Provider())
}

func TestUnsupportedProviderNeverFailsConstruction(t *testing.T) {
	g, err := NewGateway(Config{Provider: "Anthropic"}, discardLogger())
	require.NoError(t, err)

	reply := g.Chat(context.Background(), "hello")
	assert.Equal(t, "[unsupported provider] anthropic", reply.Text)
	assert.True(t, errors.Is(reply.Err, ErrUnsupportedProvider))
}

func TestGroqRequiresAPIKey(t *testing.T) {
	_, err := NewGateway(Config{Provider: ProviderGroq}, discardLogger())
	require.Error(t, err)
}

func TestGroqChatSendsSingleUserMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "1. Do A\n2. Do B"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
		}`)
	}))
	defer srv.Close()

	g, err := NewGateway(Config{Provider: ProviderGroq, APIKey: "gsk_test", BaseURL: srv.URL}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultGroqModel, g.Model())

	reply := g.Chat(context.Background(), "plan this")
	require.NoError(t, reply.Err)
	assert.Equal(t, "1. Do A\n2. Do B", reply.Text)
	require.NotNil(t, reply.Usage)
	assert.Equal(t, int64(20), reply.Usage.TotalTokens)

	assert.Equal(t, DefaultGroqModel, got["model"])
	assert.InDelta(t, 0.7, got["temperature"], 1e-9)
	assert.EqualValues(t, 1024, got["max_tokens"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "plan this", msg["content"])
}

func TestGroqChatHTTPErrorBecomesFailedReply(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": {"message": "Invalid API Key", "type": "invalid_request_error"}}`)
	}))
	defer srv.Close()

	g, err := NewGateway(Config{Provider: ProviderGroq, APIKey: "bad", BaseURL: srv.URL + "/"}, discardLogger())
	require.NoError(t, err)

	reply := g.Chat(context.Background(), "hello")
	require.Error(t, reply.Err)
	assert.True(t, reply.Failed())
	assert.True(t, strings.HasPrefix(reply.Text, ErrorPrefix), reply.Text)
	assert.Equal(t, 1, calls, "gateway must not retry")
}
