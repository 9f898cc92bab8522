// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultAnthropicURL is the base URL for the Anthropic API.
	DefaultAnthropicURL = "https://api.anthropic.com/v1"

	// AnthropicVersion is sent as the anthropic-version header.
	AnthropicVersion = "2023-06-01"
)

// AnthropicRequest is the body of a messages API call. Field order matches
// the wire encoding used for token estimation.
type AnthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
}

// AnthropicResponse is the subset of the messages API response in use.
type AnthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Text returns the text of the first content block.
func (r *AnthropicResponse) Text() string {
	if len(r.Content) > 0 {
		return r.Content[0].Text
	}
	return ""
}

// anthropicErrorResponse is the error envelope of the Anthropic API.
type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicClient calls the Anthropic messages API.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAnthropicClient creates a client. With an empty key the client is
// still usable but every call fails with ErrNotConfigured.
func NewAnthropicClient(apiKey string, opts Options) *AnthropicClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultAnthropicURL
	}
	return &AnthropicClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: opts.httpClient(),
		logger:     opts.logger(),
	}
}

// IsConfigured returns true if the client has an API key configured.
func (c *AnthropicClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Messages performs one messages API call.
func (c *AnthropicClient) Messages(ctx context.Context, req AnthropicRequest) (*AnthropicResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", AnthropicVersion)

	c.logger.Debug("UPSTREAM_REQUEST",
		zap.String("provider", "anthropic"),
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Bool("system", req.System != ""))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	httpReq.Header.Del("x-api-key")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("UPSTREAM_RESPONSE",
		zap.String("provider", "anthropic"),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, anthropicError(resp.StatusCode, body)
	}

	var out AnthropicResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Content) == 0 {
		return nil, ErrEmptyResponse
	}
	return &out, nil
}

func anthropicError(status int, body []byte) *APIError {
	apiErr := &APIError{Provider: "anthropic", Status: status}
	if json.Valid(body) {
		apiErr.Body = json.RawMessage(body)
	}

	var env anthropicErrorResponse
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		apiErr.Type = env.Error.Type
		apiErr.Message = env.Error.Message
		return apiErr
	}

	apiErr.Message = http.StatusText(status)
	return apiErr
}
