// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"math"
	"unicode/utf8"
)

// ============================================================================
// TOKEN ESTIMATION
// ============================================================================

// EstimateTokens approximates a token count as one token per four
// characters, rounded to the nearest integer. Used when the upstream does
// not report usage.
func EstimateTokens(text string) int {
	return int(math.Round(float64(utf8.RuneCountInString(text)) / 4))
}

// ============================================================================
// PRICING
// ============================================================================

// Pricing holds input and output prices in dollars per million tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Cost is the priced breakdown of one call, in dollars.
type Cost struct {
	Input  float64
	Output float64
	Total  float64
}

var backendPricing = map[Backend]Pricing{
	BackendClaude: {InputPerMillion: 3, OutputPerMillion: 15},     // $3/M input, $15/M output
	BackendOpenAI: {InputPerMillion: 0.15, OutputPerMillion: 0.6}, // $0.15/M input, $0.60/M output
}

// PricingFor returns the price table for a backend.
func PricingFor(b Backend) Pricing {
	return backendPricing[b]
}

// Cost prices a call with the given token counts.
func (p Pricing) Cost(inputTokens, outputTokens int) Cost {
	in := float64(inputTokens) / 1_000_000 * p.InputPerMillion
	out := float64(outputTokens) / 1_000_000 * p.OutputPerMillion
	return Cost{Input: in, Output: out, Total: in + out}
}

// CalculateCost prices a call on backend b.
func CalculateCost(b Backend, inputTokens, outputTokens int) Cost {
	return PricingFor(b).Cost(inputTokens, outputTokens)
}
