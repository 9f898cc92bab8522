// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/shopchat/internal/catalog"
)

// =============================================================================
// DISPLAY KIND
// =============================================================================

// Kind is the variant of a UI-facing message. Renderers switch on it
// instead of probing optional fields.
type Kind int

const (
	// KindUser is text the user submitted.
	KindUser Kind = iota
	// KindAssistantText is an assistant reply without resolved products.
	KindAssistantText
	// KindAssistantProducts is an assistant reply rendered as product cards.
	KindAssistantProducts
	// KindNotice is an assistant-side informational message (welcome, not ready).
	KindNotice
	// KindError is an assistant-side failure report for one turn.
	KindError
)

var kindNames = map[Kind]string{
	KindUser:              "user",
	KindAssistantText:     "assistant_text",
	KindAssistantProducts: "assistant_products",
	KindNotice:            "notice",
	KindError:             "error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	s, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown message kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown message kind %q", b)
}

// Role returns the role a message of this kind is shown as.
func (k Kind) Role() Role {
	if k == KindUser {
		return RoleUser
	}
	return RoleAssistant
}

// =============================================================================
// DISPLAY MESSAGE
// =============================================================================

// DisplayMessage is one entry of the UI-facing transcript.
// Products is set only for KindAssistantProducts.
type DisplayMessage struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Content   string            `json:"content,omitempty"`
	Products  []catalog.Product `json:"products,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewDisplayMessage creates a message with a fresh id.
func NewDisplayMessage(kind Kind, content string) DisplayMessage {
	return DisplayMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewProductsMessage creates an assistant message carrying resolved products.
func NewProductsMessage(products []catalog.Product) DisplayMessage {
	m := NewDisplayMessage(KindAssistantProducts, "")
	m.Products = append([]catalog.Product(nil), products...)
	return m
}

// Role returns the role derived from the message kind.
func (m DisplayMessage) Role() Role {
	return m.Kind.Role()
}

// MarshalJSON adds the derived role to the encoded message.
func (m DisplayMessage) MarshalJSON() ([]byte, error) {
	type plain DisplayMessage
	return json.Marshal(struct {
		plain
		Role Role `json:"role"`
	}{plain(m), m.Role()})
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the append-only UI-facing log.
type Transcript struct {
	msgs []DisplayMessage
}

// Append adds m at the end of the transcript.
func (t *Transcript) Append(m DisplayMessage) {
	t.msgs = append(t.msgs, m)
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []DisplayMessage {
	out := make([]DisplayMessage, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.msgs)
}

// Last returns the most recent message.
func (t *Transcript) Last() (DisplayMessage, bool) {
	if len(t.msgs) == 0 {
		return DisplayMessage{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}
