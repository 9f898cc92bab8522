// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jeranaias/shopchat/internal/proxy"
	"github.com/jeranaias/shopchat/internal/router"
)

// HTTPCaller calls the proxy endpoints of a running shopchat server.
type HTTPCaller struct {
	client *resty.Client
}

// NewHTTPCaller creates a caller for the server at baseURL. A zero timeout
// leaves the deadline to ctx.
func NewHTTPCaller(baseURL string, timeout time.Duration) *HTTPCaller {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPCaller{client: client}
}

// WithPassword authenticates requests with the server's access password.
func (c *HTTPCaller) WithPassword(password string) *HTTPCaller {
	if password != "" {
		c.client.SetAuthToken(password)
	}
	return c
}

// Call posts req to the endpoint of backend. Non-success responses are
// returned as *proxy.Error.
func (c *HTTPCaller) Call(ctx context.Context, backend router.Backend, req proxy.Request) (*proxy.Response, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&proxy.Response{}).
		SetError(&proxy.Error{}).
		Post("/api/" + backend.String())
	if err != nil {
		return nil, fmt.Errorf("call %s endpoint: %w", backend, err)
	}

	if resp.IsError() || !resp.IsSuccess() {
		pe, _ := resp.Error().(*proxy.Error)
		if pe == nil {
			pe = &proxy.Error{}
		}
		pe.Status = resp.StatusCode()
		if pe.Message == "" {
			pe.Message = fmt.Sprintf("API request failed: %s", http.StatusText(resp.StatusCode()))
		}
		return nil, pe
	}

	out, ok := resp.Result().(*proxy.Response)
	if !ok || out == nil {
		return nil, fmt.Errorf("call %s endpoint: unexpected response body", backend)
	}
	return out, nil
}
