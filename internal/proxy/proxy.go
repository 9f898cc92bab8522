// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package proxy implements the two language model proxy endpoints as a
// stateless service: validate the conversation, forward one upstream call,
// and reshape the reply into content plus priced usage stats.
//
// Endpoint A forwards to Claude and estimates tokens from text length.
// Endpoint B forwards to OpenAI with a fixed model and prices reported usage.
// Every failure is an *Error carrying the HTTP status to answer with.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/shopchat/internal/cloud"
	"github.com/jeranaias/shopchat/internal/model"
	"github.com/jeranaias/shopchat/internal/router"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultClaudeModel is used when a Claude request names no model.
	DefaultClaudeModel = "claude-3-sonnet-20240229"

	// DefaultMaxTokens is used when a request sets no max_tokens.
	DefaultMaxTokens = 1500

	// DefaultTemperature is used when a request sets no temperature.
	DefaultTemperature = 0.7
)

// ============================================================================
// WIRE TYPES
// ============================================================================

// Request is the body accepted by both endpoints.
type Request struct {
	Messages    []model.ChatMessage `json:"messages"`
	Model       string              `json:"model,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

// Stats is the priced usage of one call. Costs are in dollars, Time in seconds.
type Stats struct {
	Time         float64 `json:"time"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	InputCost    float64 `json:"inputCost"`
	OutputCost   float64 `json:"outputCost"`
	TotalCost    float64 `json:"totalCost"`
	Model        string  `json:"model,omitempty"`
}

// Response is the success body of both endpoints.
type Response struct {
	Content string `json:"content"`
	Stats   *Stats `json:"stats,omitempty"`
}

// Error is the failure body of both endpoints. Status is the HTTP status
// to answer with.
type Error struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Details any    `json:"details,omitempty"`
	Detail  string `json:"message,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Message, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error { return e.cause }

// ============================================================================
// SERVICE
// ============================================================================

// AnthropicAPI is the upstream used by endpoint A. *cloud.AnthropicClient
// satisfies it.
type AnthropicAPI interface {
	IsConfigured() bool
	Messages(ctx context.Context, req cloud.AnthropicRequest) (*cloud.AnthropicResponse, error)
}

// OpenAIAPI is the upstream used by endpoint B. *cloud.OpenAIClient
// satisfies it.
type OpenAIAPI interface {
	IsConfigured() bool
	Complete(ctx context.Context, req cloud.OpenAIRequest) (*cloud.OpenAICompletion, error)
}

// Service forwards requests to the upstream providers. It holds no
// per-conversation state and is safe for concurrent use.
type Service struct {
	anthropic   AnthropicAPI
	openai      OpenAIAPI
	openAIModel string
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a Service. An empty openAIModel uses
// router.DefaultOpenAIModel.
func NewService(anthropic AnthropicAPI, openai OpenAIAPI, openAIModel string, logger *zap.Logger) *Service {
	if openAIModel == "" {
		openAIModel = router.DefaultOpenAIModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		anthropic:   anthropic,
		openai:      openai,
		openAIModel: openAIModel,
		logger:      logger,
		now:         time.Now,
	}
}

// Call forwards req to the given backend.
func (s *Service) Call(ctx context.Context, backend router.Backend, req Request) (*Response, error) {
	switch backend {
	case router.BackendClaude:
		return s.Claude(ctx, req)
	case router.BackendOpenAI:
		return s.OpenAI(ctx, req)
	default:
		return nil, &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf("unknown backend %s", backend)}
	}
}

// Claude forwards req to the Anthropic messages API. System entries are
// lifted into the separate system field; the last one wins.
func (s *Service) Claude(ctx context.Context, req Request) (*Response, error) {
	start := s.now()

	if s.anthropic == nil || !s.anthropic.IsConfigured() {
		return nil, &Error{Status: http.StatusInternalServerError, Message: "API key is not configured on the server"}
	}
	if err := validateMessages(req.Messages); err != nil {
		return nil, err
	}

	var system string
	var messages []cloud.Message
	for _, m := range req.Messages {
		if m.Role == model.RoleSystem {
			system = m.Content
			continue
		}
		messages = append(messages, cloud.Message{Role: string(m.Role), Content: m.Content})
	}
	if len(messages) == 0 {
		return nil, &Error{
			Status:  http.StatusBadRequest,
			Message: "At least one non-system message is required",
			Details: map[string]any{"messages": req.Messages},
		}
	}

	upstream := cloud.AnthropicRequest{
		Model:       orDefault(req.Model, DefaultClaudeModel),
		MaxTokens:   req.MaxTokens,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if upstream.MaxTokens <= 0 {
		upstream.MaxTokens = DefaultMaxTokens
	}
	if upstream.Temperature == 0 {
		upstream.Temperature = DefaultTemperature
	}
	if strings.TrimSpace(system) != "" {
		upstream.System = system
	}

	resp, err := s.anthropic.Messages(ctx, upstream)
	if err != nil {
		var apiErr *cloud.APIError
		if errors.As(err, &apiErr) {
			return nil, s.fail(router.BackendClaude, upstream.Model, &Error{
				Status:  apiErr.Status,
				Message: fmt.Sprintf("Claude API error: %d", apiErr.Status),
				Details: details(apiErr),
				cause:   err,
			})
		}
		return nil, s.fail(router.BackendClaude, upstream.Model, internalError(err))
	}

	// Usage is estimated from the encoded request and the reply text.
	encoded, err := json.Marshal(upstream)
	if err != nil {
		return nil, s.fail(router.BackendClaude, upstream.Model, internalError(err))
	}
	text := resp.Text()
	stats := priced(router.BackendClaude, upstream.Model,
		router.EstimateTokens(string(encoded)), router.EstimateTokens(text),
		s.now().Sub(start))

	s.succeed(router.BackendClaude, stats)
	return &Response{Content: text, Stats: stats}, nil
}

// OpenAI forwards req to the OpenAI chat completions API. The requested
// model is ignored; the service's fixed model is always used.
func (s *Service) OpenAI(ctx context.Context, req Request) (*Response, error) {
	start := s.now()

	if s.openai == nil || !s.openai.IsConfigured() {
		return nil, &Error{Status: http.StatusInternalServerError, Message: "OpenAI API key is not configured on the server"}
	}
	if len(req.Messages) == 0 {
		return nil, &Error{
			Status:  http.StatusBadRequest,
			Message: "At least one message is required",
			Details: map[string]any{"messages": req.Messages},
		}
	}
	if err := validateMessages(req.Messages); err != nil {
		return nil, err
	}

	messages := make([]cloud.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = cloud.Message{Role: string(m.Role), Content: m.Content}
	}
	upstream := cloud.OpenAIRequest{
		Model:       s.openAIModel,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if upstream.MaxTokens <= 0 {
		upstream.MaxTokens = DefaultMaxTokens
	}
	if upstream.Temperature == 0 {
		upstream.Temperature = DefaultTemperature
	}

	resp, err := s.openai.Complete(ctx, upstream)
	if err != nil {
		var apiErr *cloud.APIError
		if errors.As(err, &apiErr) {
			return nil, s.fail(router.BackendOpenAI, upstream.Model, &Error{
				Status:  apiErr.Status,
				Message: "Error from OpenAI API",
				Details: details(apiErr),
				cause:   err,
			})
		}
		return nil, s.fail(router.BackendOpenAI, upstream.Model, internalError(err))
	}

	stats := priced(router.BackendOpenAI, upstream.Model,
		resp.PromptTokens, resp.CompletionTokens, s.now().Sub(start))

	s.succeed(router.BackendOpenAI, stats)
	return &Response{Content: resp.Text, Stats: stats}, nil
}

// ============================================================================
// HELPERS
// ============================================================================

// validateMessages rejects roles outside system, user and assistant.
func validateMessages(msgs []model.ChatMessage) *Error {
	for i, m := range msgs {
		if !m.Role.Valid() {
			return &Error{
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("invalid role '%s' at message %d: must be one of user, assistant, system", m.Role, i),
			}
		}
	}
	return nil
}

func priced(b router.Backend, modelName string, in, out int, elapsed time.Duration) *Stats {
	cost := router.CalculateCost(b, in, out)
	return &Stats{
		Time:         elapsed.Seconds(),
		InputTokens:  in,
		OutputTokens: out,
		InputCost:    cost.Input,
		OutputCost:   cost.Output,
		TotalCost:    cost.Total,
		Model:        modelName,
	}
}

func details(apiErr *cloud.APIError) any {
	if len(apiErr.Body) > 0 {
		return apiErr.Body
	}
	d := map[string]string{"message": apiErr.Message}
	if apiErr.Type != "" {
		d["type"] = apiErr.Type
	}
	return d
}

func internalError(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
		Detail:  err.Error(),
		cause:   err,
	}
}

func (s *Service) fail(b router.Backend, modelName string, e *Error) *Error {
	s.logger.Warn("PROXY_CALL_FAILED",
		zap.Stringer("backend", b),
		zap.String("model", modelName),
		zap.Int("status", e.Status),
		zap.Error(e))
	return e
}

func (s *Service) succeed(b router.Backend, st *Stats) {
	s.logger.Info("PROXY_CALL",
		zap.Stringer("backend", b),
		zap.String("model", st.Model),
		zap.Int("input_tokens", st.InputTokens),
		zap.Int("output_tokens", st.OutputTokens),
		zap.Float64("total_cost", st.TotalCost),
		zap.Float64("seconds", st.Time))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
