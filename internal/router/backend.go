// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"strings"
)

// ============================================================================
// BACKENDS
// ============================================================================

// Backend identifies one of the two language model proxies.
type Backend int

const (
	// BackendClaude is the Anthropic messages API (backend A).
	BackendClaude Backend = iota
	// BackendOpenAI is the OpenAI chat completions API (backend B).
	BackendOpenAI
)

// String returns the wire name of the backend.
func (b Backend) String() string {
	switch b {
	case BackendClaude:
		return "claude"
	case BackendOpenAI:
		return "openai"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// MarshalText encodes the backend by wire name.
func (b Backend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText decodes a backend wire name.
func (b *Backend) UnmarshalText(text []byte) error {
	parsed, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBackend parses a backend name, case-insensitively.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "claude", "anthropic", "a":
		return BackendClaude, nil
	case "openai", "b":
		return BackendOpenAI, nil
	}
	return 0, fmt.Errorf("unknown backend %q (want claude or openai)", s)
}

// ============================================================================
// SELECTION POLICY
// ============================================================================

// Policy controls how the selection moves after a successful call.
type Policy int

const (
	// PolicyPinned never changes the selection.
	PolicyPinned Policy = iota
	// PolicyRotate advances the Claude model index and toggles the backend
	// after every successful call.
	PolicyRotate
)

func (p Policy) String() string {
	switch p {
	case PolicyPinned:
		return "pinned"
	case PolicyRotate:
		return "rotate"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pinned", "pin", "fixed":
		return PolicyPinned, nil
	case "rotate", "alternate":
		return PolicyRotate, nil
	}
	return 0, fmt.Errorf("unknown policy %q (want pinned or rotate)", s)
}

// ============================================================================
// SELECTOR
// ============================================================================

// Default model identifiers.
var DefaultClaudeModels = []string{
	"claude-3-7-sonnet-20250219",
	"claude-3-5-sonnet-20241022",
	"claude-3-5-sonnet-20240620",
}

const DefaultOpenAIModel = "gpt-4o-mini"

// Choice is the backend and model used for one call.
type Choice struct {
	Backend Backend `json:"backend"`
	Model   string  `json:"model"`
}

// Selector tracks the current backend and Claude model index.
// It is not safe for concurrent use; the owning session serialises access.
type Selector struct {
	claudeModels []string
	openAIModel  string
	backend      Backend
	index        int
	policy       Policy
}

// NewSelector creates a selector. Empty model arguments fall back to the
// defaults.
func NewSelector(claudeModels []string, openAIModel string, initial Backend, policy Policy) *Selector {
	if len(claudeModels) == 0 {
		claudeModels = DefaultClaudeModels
	}
	if openAIModel == "" {
		openAIModel = DefaultOpenAIModel
	}
	return &Selector{
		claudeModels: append([]string(nil), claudeModels...),
		openAIModel:  openAIModel,
		backend:      initial,
		policy:       policy,
	}
}

// Current returns the backend and model for the next call.
func (s *Selector) Current() Choice {
	if s.backend == BackendOpenAI {
		return Choice{Backend: BackendOpenAI, Model: s.openAIModel}
	}
	return Choice{Backend: BackendClaude, Model: s.claudeModels[s.index]}
}

// Policy returns the selection policy.
func (s *Selector) Policy() Policy {
	return s.policy
}

// Advance moves the selection after a successful call. Failed calls must
// not call Advance.
func (s *Selector) Advance() {
	if s.policy != PolicyRotate {
		return
	}
	s.index = (s.index + 1) % len(s.claudeModels)
	if s.backend == BackendClaude {
		s.backend = BackendOpenAI
	} else {
		s.backend = BackendClaude
	}
}
