// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ANTHROPIC CLIENT TESTS
// =============================================================================

func TestAnthropicClient_Messages(t *testing.T) {
	var got AnthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, AnthropicVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "Try these boots"}],
			"usage": {"input_tokens": 12, "output_tokens": 4}
		}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(" test-key ", Options{BaseURL: server.URL + "/v1/"})
	resp, err := client.Messages(context.Background(), AnthropicRequest{
		Model:       "claude-3-5-sonnet-20241022",
		MaxTokens:   1500,
		Temperature: 0.7,
		System:      "be helpful",
		Messages:    []Message{{Role: "user", Content: "boots"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Try these boots", resp.Text())
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, "be helpful", got.System)
	assert.Equal(t, 1500, got.MaxTokens)
	assert.Len(t, got.Messages, 1)
}

func TestAnthropicClient_NotConfigured(t *testing.T) {
	client := NewAnthropicClient("", Options{})
	assert.False(t, client.IsConfigured())

	_, err := client.Messages(context.Background(), AnthropicRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAnthropicClient_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient("k", Options{BaseURL: server.URL})
	_, err := client.Messages(context.Background(), AnthropicRequest{Messages: []Message{{Role: "user", Content: "x"}}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "rate_limit_error", apiErr.Type)
	assert.Equal(t, "slow down", apiErr.Message)
	assert.JSONEq(t, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, string(apiErr.Body))
	assert.Contains(t, apiErr.Error(), "HTTP 429")
}

func TestAnthropicClient_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	_, err := NewAnthropicClient("k", Options{BaseURL: server.URL}).
		Messages(context.Background(), AnthropicRequest{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
	assert.Nil(t, apiErr.Body)
}

func TestAnthropicClient_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"m","content":[]}`))
	}))
	defer server.Close()

	_, err := NewAnthropicClient("k", Options{BaseURL: server.URL}).
		Messages(context.Background(), AnthropicRequest{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestReadResponse_Limit(t *testing.T) {
	resp := &http.Response{Body: io.NopCloser(strings.NewReader(strings.Repeat("x", MaxResponseSize+1)))}
	_, err := readResponse(resp)
	assert.Error(t, err)

	resp = &http.Response{Body: io.NopCloser(strings.NewReader(strings.Repeat("x", 10)))}
	body, err := readResponse(resp)
	require.NoError(t, err)
	assert.Len(t, body, 10)
}

// =============================================================================
// OPENAI CLIENT TESTS
// =============================================================================

func TestOpenAIClient_Complete(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "Here you go"}
			}],
			"usage": {"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120}
		}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", Options{BaseURL: server.URL + "/v1"})
	resp, err := client.Complete(context.Background(), OpenAIRequest{
		Model:       "gpt-4o-mini",
		MaxTokens:   1500,
		Temperature: 0.7,
		Messages: []Message{
			{Role: "system", Content: "catalog"},
			{Role: "user", Content: "lamps"},
			{Role: "assistant", Content: "which room?"},
			{Role: "user", Content: "bedroom"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Here you go", resp.Text)
	assert.Equal(t, 100, resp.PromptTokens)
	assert.Equal(t, 20, resp.CompletionTokens)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Len(t, body["messages"], 4)
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", Options{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), OpenAIRequest{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "x"}},
	})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "openai", apiErr.Provider)
	assert.Equal(t, 1, calls, "client must not retry")
}

func TestOpenAIClient_NotConfigured(t *testing.T) {
	_, err := NewOpenAIClient("  ", Options{}).Complete(context.Background(), OpenAIRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestToOpenAIMessages_InvalidRole(t *testing.T) {
	_, err := toOpenAIMessages([]Message{{Role: "tool", Content: "x"}})
	assert.ErrorIs(t, err, ErrInvalidRole)
}
