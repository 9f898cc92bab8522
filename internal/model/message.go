// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// =============================================================================
// API-FACING HISTORY
// =============================================================================

var (
	// ErrSystemAlreadySet is returned when a second system entry is installed.
	ErrSystemAlreadySet = errors.New("system message already set")

	// ErrSystemRole is returned when Append is given the system role.
	ErrSystemRole = errors.New("system messages must be set with SetSystem")
)

// ChatMessage is one entry of the conversation sent to the model.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is the append-only API-facing log. At most one system entry
// exists and it is always first.
type History struct {
	msgs []ChatMessage
}

// SetSystem installs the system entry at the head of the log. It may be
// called once; later calls return ErrSystemAlreadySet.
func (h *History) SetSystem(content string) error {
	if h.HasSystem() {
		return ErrSystemAlreadySet
	}
	msgs := make([]ChatMessage, 0, len(h.msgs)+1)
	msgs = append(msgs, ChatMessage{Role: RoleSystem, Content: content})
	h.msgs = append(msgs, h.msgs...)
	return nil
}

// HasSystem reports whether the system entry is present.
func (h *History) HasSystem() bool {
	return len(h.msgs) > 0 && h.msgs[0].Role == RoleSystem
}

// Append adds a user or assistant entry.
func (h *History) Append(role Role, content string) error {
	switch role {
	case RoleUser, RoleAssistant:
	case RoleSystem:
		return ErrSystemRole
	default:
		return fmt.Errorf("invalid role %q", role)
	}
	h.msgs = append(h.msgs, ChatMessage{Role: role, Content: content})
	return nil
}

// Messages returns a copy of the log.
func (h *History) Messages() []ChatMessage {
	out := make([]ChatMessage, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.msgs)
}
