package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdigest/paper-service/internal/config"
)

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "openai"})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "api key is not set")
}

func TestNewAnthropicRequiresKey(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "anthropic"})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestNewUnsupportedProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "cohere"})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "unsupported provider: cohere")
}

func TestNewFakeNeedsNoKey(t *testing.T) {
	client, err := New(config.LLMConfig{Provider: "fake"})
	require.NoError(t, err)
	assert.IsType(t, &Fake{}, client)
}

func TestIsConfigErrorOtherError(t *testing.T) {
	assert.False(t, IsConfigError(assert.AnError))
	assert.False(t, IsConfigError(nil))
}

func TestOpenAIComplete(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello back"}},
			},
		})
	}))
	defer srv.Close()

	client, err := New(config.LLMConfig{
		Provider: "openai",
		Key:      "test-key",
		BaseURL:  srv.URL,
		Model:    "gpt-4o-mini",
	})
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), Request{
		Prompt:   "hello",
		System:   "be brief",
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello back", out)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	rf := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_object", rf["type"])
	assert.Equal(t, float64(DefaultMaxTokens), captured["max_tokens"])
}

func TestOpenAICompleteNoJSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasFormat := body["response_format"]
		assert.False(t, hasFormat)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	client := newOpenAIClient(config.LLMConfig{Key: "k", BaseURL: srv.URL, Model: "m"})
	out, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestOpenAICompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newOpenAIClient(config.LLMConfig{Key: "k", BaseURL: srv.URL, Model: "m"})
	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai returned 429")
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client := newOpenAIClient(config.LLMConfig{Key: "k", BaseURL: srv.URL, Model: "m"})
	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
