// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the upstream clients for the two language model
// providers the proxy endpoints forward to.
//
// # Key Types
//
//   - AnthropicClient: Anthropic messages API over net/http
//   - OpenAIClient: OpenAI chat completions through openai-go
//   - APIError: non-success upstream response with status and raw body
//
// # Usage
//
//	client := cloud.NewAnthropicClient(apiKey, cloud.Options{Logger: logger})
//	resp, err := client.Messages(ctx, cloud.AnthropicRequest{
//	    Model:     "claude-3-5-sonnet-20241022",
//	    MaxTokens: 1500,
//	    Messages:  []cloud.Message{{Role: "user", Content: "Hello"}},
//	})
//
// # Security
//
// API keys are never logged. Response bodies are read with a size limit.
// Neither client retries: a failed call is reported to the caller as is.
package cloud
