package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/browserbase-mcp/pkg/llm"
)

func TestNewProvider_RequiresKey(t *testing.T) {
	_, err := NewProvider("")
	assert.Error(t, err)
}

func TestNewProvider_Defaults(t *testing.T) {
	p, err := NewProvider("sk-test", WithModel(""), WithBaseURL(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.GetModel())
	assert.Equal(t, DefaultBaseURL, p.GetBaseURL())
}

func TestComplete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "The price is $10."}}]
		}`))
	}))
	defer server.Close()

	p, err := NewProvider("sk-test", WithBaseURL(server.URL+"/v1"), WithModel("test-model"), WithMaxRetries(0))
	require.NoError(t, err)

	answer, err := p.Complete(context.Background(), []llm.Message{
		llm.SystemMessage("You extract data."),
		llm.UserMessage("What is the price?"),
	})
	require.NoError(t, err)
	assert.Equal(t, "The price is $10.", answer)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "What is the price?", got.Messages[1].Content)
}

func TestComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	p, err := NewProvider("sk-test", WithBaseURL(server.URL), WithMaxRetries(0))
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), []llm.Message{llm.UserMessage("hi")})
	assert.Error(t, err)
}
