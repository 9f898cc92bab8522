// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the default timeout for upstream requests.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize is the maximum allowed upstream response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrEmptyResponse indicates a success response with no content.
	ErrEmptyResponse = errors.New("upstream returned no content")

	// ErrInvalidRole indicates a message role the upstream does not accept.
	ErrInvalidRole = errors.New("invalid message role")
)

// APIError represents a non-success response from an upstream provider.
type APIError struct {
	Provider string
	Status   int
	Type     string
	Message  string

	// Body is the raw upstream body when it was valid JSON.
	Body json.RawMessage
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s error [%s] (HTTP %d): %s", e.Provider, e.Type, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error (HTTP %d): %s", e.Provider, e.Status, e.Message)
}

// Options configures an upstream client.
type Options struct {
	// BaseURL overrides the provider's API root.
	BaseURL string

	// Timeout bounds a single request. Zero uses DefaultTimeout.
	Timeout time.Duration

	// HTTPClient replaces the default client. Timeout is ignored when set.
	HTTPClient *http.Client

	Logger *zap.Logger
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Message is a role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// readResponse reads the response body with a size limit to prevent memory
// exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}
