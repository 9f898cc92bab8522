// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultFetchTimeout bounds a single catalog fetch over HTTP.
const DefaultFetchTimeout = 30 * time.Second

// ErrFetch is matched by every catalog fetch failure.
var ErrFetch = errors.New("catalog fetch failed")

// FetchError reports a catalog source that could not be read.
// Status is the HTTP status for non-success responses and 0 otherwise.
type FetchError struct {
	Source string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog fetch %s: HTTP %d", e.Source, e.Status)
	}
	return fmt.Sprintf("catalog fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetch) hold for every FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Loader reads catalog text from an HTTP(S) URL or a local path.
type Loader struct {
	client *resty.Client
	logger *zap.Logger
}

// NewLoader creates a Loader. A zero timeout uses DefaultFetchTimeout.
func NewLoader(timeout time.Duration, logger *zap.Logger) *Loader {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		client: resty.New().SetTimeout(timeout),
		logger: logger,
	}
}

// Fetch returns the raw text of source.
func (l *Loader) Fetch(ctx context.Context, source string) (string, error) {
	if !IsRemote(source) {
		data, err := os.ReadFile(strings.TrimPrefix(source, "file://"))
		if err != nil {
			return "", &FetchError{Source: source, Err: err}
		}
		return string(data), nil
	}

	resp, err := l.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/plain").
		Get(source)
	if err != nil {
		return "", &FetchError{Source: source, Err: err}
	}
	if !resp.IsSuccess() {
		return "", &FetchError{
			Source: source,
			Status: resp.StatusCode(),
			Err:    fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}
	return resp.String(), nil
}

// Load fetches and parses source. Parsing never fails; only fetch errors
// are returned, always as *FetchError.
func (l *Loader) Load(ctx context.Context, source string) (*Catalog, error) {
	start := time.Now()
	text, err := l.Fetch(ctx, source)
	if err != nil {
		l.logger.Warn("CATALOG_FETCH_FAILED", zap.String("source", source), zap.Error(err))
		return nil, err
	}
	cat := New(Parse(text))
	l.logger.Info("CATALOG_LOADED",
		zap.String("source", source),
		zap.Int("products", cat.Len()),
		zap.Duration("duration", time.Since(start)))
	return cat, nil
}

// IsRemote reports whether source is fetched over HTTP rather than read
// from disk.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
