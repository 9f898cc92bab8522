// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router decides which language model backend and model serve the
// next turn, and prices the calls made to them.
//
// Two backends exist: Claude, with an ordered list of interchangeable models,
// and OpenAI, with a single fixed model. A Selector holds the current
// backend and the rotation index over the Claude models.
//
// # Key Types
//
//   - Backend: backend enumeration (Claude, OpenAI)
//   - Policy: what happens to the selection after a successful call
//   - Selector: current backend + model, advanced only on success
//   - Pricing: per-million token prices for a backend
//
// # Usage
//
//	sel := router.NewSelector(router.DefaultClaudeModels, router.DefaultOpenAIModel,
//	    router.BackendOpenAI, router.PolicyPinned)
//	choice := sel.Current()
//	// ... call choice.Backend with choice.Model ...
//	sel.Advance() // only after the call succeeded
package router
