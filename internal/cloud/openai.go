// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"
)

// DefaultOpenAIURL is the base URL for the OpenAI API.
const DefaultOpenAIURL = "https://api.openai.com/v1/"

// OpenAIRequest is one chat completion call.
type OpenAIRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// OpenAICompletion is the subset of a chat completion in use.
type OpenAICompletion struct {
	Model            string
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	client     openai.Client
	configured bool
	logger     *zap.Logger
}

// NewOpenAIClient creates a client. With an empty key the client is still
// usable but every call fails with ErrNotConfigured.
func NewOpenAIClient(apiKey string, opts Options) *OpenAIClient {
	apiKey = strings.TrimSpace(apiKey)
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &OpenAIClient{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithHTTPClient(opts.httpClient()),
			option.WithMaxRetries(0),
		),
		configured: apiKey != "",
		logger:     opts.logger(),
	}
}

// IsConfigured returns true if the client has an API key configured.
func (c *OpenAIClient) IsConfigured() bool {
	return c.configured
}

// Complete performs one chat completion call.
func (c *OpenAIClient) Complete(ctx context.Context, req OpenAIRequest) (*OpenAICompletion, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}

	messages, err := toOpenAIMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	c.logger.Debug("UPSTREAM_REQUEST",
		zap.String("provider", "openai"),
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)))

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			c.logger.Debug("UPSTREAM_RESPONSE",
				zap.String("provider", "openai"),
				zap.Int("status", apiErr.StatusCode),
				zap.Duration("duration", time.Since(start)))
			return nil, openAIError(apiErr)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	c.logger.Debug("UPSTREAM_RESPONSE",
		zap.String("provider", "openai"),
		zap.Int("status", http.StatusOK),
		zap.Duration("duration", time.Since(start)))

	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return &OpenAICompletion{
		Model:            completion.Model,
		Text:             completion.Choices[0].Message.Content,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
	}, nil
}

func toOpenAIMessages(msgs []Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "user":
			out = append(out, openai.UserMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			return nil, fmt.Errorf("%w %q at message %d", ErrInvalidRole, m.Role, i)
		}
	}
	return out, nil
}

func openAIError(e *openai.Error) *APIError {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return &APIError{
		Provider: "openai",
		Status:   e.StatusCode,
		Type:     e.Type,
		Message:  msg,
	}
}
