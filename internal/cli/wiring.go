// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/shopchat/internal/catalog"
	"github.com/jeranaias/shopchat/internal/cloud"
	"github.com/jeranaias/shopchat/internal/config"
	"github.com/jeranaias/shopchat/internal/prompt"
	"github.com/jeranaias/shopchat/internal/proxy"
	"github.com/jeranaias/shopchat/internal/router"
	"github.com/jeranaias/shopchat/internal/server"
)

// newProxyService builds the upstream clients and the proxy over them.
func newProxyService(cfg *config.Config, logger *zap.Logger) *proxy.Service {
	up := cfg.Upstream
	anthropic := cloud.NewAnthropicClient(up.ClaudeKey, cloud.Options{
		BaseURL: up.AnthropicURL,
		Timeout: up.Timeout(),
		Logger:  logger,
	})
	openai := cloud.NewOpenAIClient(up.OpenAIKey, cloud.Options{
		BaseURL: up.OpenAIURL,
		Timeout: up.Timeout(),
		Logger:  logger,
	})
	return proxy.NewService(anthropic, openai, cfg.Assistant.OpenAIModel, logger)
}

// assistantFrom converts the assistant section into session settings.
// The config has been validated, so parse errors are still reported but
// not expected.
func assistantFrom(cfg *config.Config) (server.Assistant, error) {
	backend, err := router.ParseBackend(cfg.Assistant.Backend)
	if err != nil {
		return server.Assistant{}, err
	}
	policy, err := router.ParsePolicy(cfg.Assistant.Policy)
	if err != nil {
		return server.Assistant{}, err
	}
	return server.Assistant{
		ClaudeModels: cfg.Assistant.ClaudeModels,
		OpenAIModel:  cfg.Assistant.OpenAIModel,
		Backend:      backend,
		Policy:       policy,
		MaxTokens:    cfg.Assistant.MaxTokens,
		Temperature:  cfg.Assistant.Temperature,
	}, nil
}

func promptBuilder(cfg *config.Config) prompt.Builder {
	return prompt.Builder{Preamble: cfg.Assistant.Preamble}
}

// loadCatalog loads source, or the configured source when empty.
func loadCatalog(ctx context.Context, cfg *config.Config, source string, logger *zap.Logger) (*catalog.Catalog, string, error) {
	if source == "" {
		source = cfg.Catalog.Source
	}
	cat, err := catalog.NewLoader(cfg.Catalog.FetchTimeout(), logger).Load(ctx, source)
	return cat, source, err
}

// localPath returns the file path of a local catalog source.
func localPath(source string) string {
	return strings.TrimPrefix(source, "file://")
}
