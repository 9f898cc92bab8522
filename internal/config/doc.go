// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and validation for shopchat.
//
// Supports TOML and YAML configuration files, a .env file for credentials,
// sensible defaults, environment variable overrides and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Listen address, sessions and rate limiting
//   - AuthConfig: Password gate and token lifetime
//   - AssistantConfig: Backend selection and generation parameters
//   - UpstreamConfig: API keys and provider endpoints
//
// # Configuration Precedence
//
// Configuration is resolved from (highest first):
//   - Environment variables (CLAUDE_API_KEY, OPENAI_API_KEY, SHOPCHAT_*)
//   - .env in the working directory
//   - The file passed to Load, or ~/.shopchat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	addr := cfg.Server.Addr
package config
