// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jeranaias/shopchat/internal/catalog"
)

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestHistory_SetSystemOnceAndFirst(t *testing.T) {
	var h History

	if err := h.Append(RoleUser, "hi"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if h.HasSystem() {
		t.Error("HasSystem() = true before SetSystem")
	}

	if err := h.SetSystem("prompt"); err != nil {
		t.Fatalf("SetSystem() error = %v", err)
	}
	if err := h.SetSystem("again"); !errors.Is(err, ErrSystemAlreadySet) {
		t.Errorf("second SetSystem() error = %v, want ErrSystemAlreadySet", err)
	}

	msgs := h.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[0].Content != "prompt" {
		t.Errorf("msgs[0] = %+v, want system prompt", msgs[0])
	}
	if msgs[1].Role != RoleUser {
		t.Errorf("msgs[1].Role = %s, want user", msgs[1].Role)
	}
}

func TestHistory_AppendRejectsSystemAndUnknown(t *testing.T) {
	var h History

	if err := h.Append(RoleSystem, "x"); !errors.Is(err, ErrSystemRole) {
		t.Errorf("Append(system) error = %v, want ErrSystemRole", err)
	}
	if err := h.Append(Role("tool"), "x"); err == nil {
		t.Error("Append(tool) should fail")
	}
	if h.Len() != 0 {
		t.Errorf("Len = %d, want 0", h.Len())
	}
}

func TestHistory_MessagesIsCopy(t *testing.T) {
	var h History
	_ = h.Append(RoleUser, "original")

	msgs := h.Messages()
	msgs[0].Content = "mutated"

	if got := h.Messages()[0].Content; got != "original" {
		t.Errorf("Content = %q, want original", got)
	}
}

func TestRole(t *testing.T) {
	tests := []struct {
		role  Role
		name  string
		valid bool
	}{
		{RoleUser, "You", true},
		{RoleAssistant, "Assistant", true},
		{RoleSystem, "System", true},
		{Role("tool"), "tool", false},
	}
	for _, tt := range tests {
		if got := tt.role.DisplayName(); got != tt.name {
			t.Errorf("%s.DisplayName() = %q, want %q", tt.role, got, tt.name)
		}
		if got := tt.role.Valid(); got != tt.valid {
			t.Errorf("%s.Valid() = %v, want %v", tt.role, got, tt.valid)
		}
	}
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestKind_Role(t *testing.T) {
	tests := []struct {
		kind Kind
		want Role
	}{
		{KindUser, RoleUser},
		{KindAssistantText, RoleAssistant},
		{KindAssistantProducts, RoleAssistant},
		{KindNotice, RoleAssistant},
		{KindError, RoleAssistant},
	}
	for _, tt := range tests {
		if got := tt.kind.Role(); got != tt.want {
			t.Errorf("%s.Role() = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestKind_TextRoundTrip(t *testing.T) {
	for kind := KindUser; kind <= KindError; kind++ {
		b, err := kind.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) error = %v", kind, err)
		}
		var got Kind
		if err := got.UnmarshalText(b); err != nil || got != kind {
			t.Errorf("UnmarshalText(%s) = %v, %v; want %v", b, got, err, kind)
		}
	}
	if _, err := Kind(99).MarshalText(); err == nil {
		t.Error("MarshalText(99) should fail")
	}
}

func TestTranscript_AppendOrderAndUniqueIDs(t *testing.T) {
	var tr Transcript
	tr.Append(NewDisplayMessage(KindNotice, "welcome"))
	tr.Append(NewDisplayMessage(KindUser, "boots please"))
	tr.Append(NewProductsMessage([]catalog.Product{{ID: "product_1", Name: "Boot"}}))

	msgs := tr.Messages()
	if len(msgs) != 3 {
		t.Fatalf("Len = %d, want 3", len(msgs))
	}
	wantKinds := []Kind{KindNotice, KindUser, KindAssistantProducts}
	seen := make(map[string]bool)
	for i, m := range msgs {
		if m.Kind != wantKinds[i] {
			t.Errorf("msgs[%d].Kind = %s, want %s", i, m.Kind, wantKinds[i])
		}
		if m.ID == "" || seen[m.ID] {
			t.Errorf("msgs[%d].ID = %q is empty or duplicate", i, m.ID)
		}
		seen[m.ID] = true
	}

	last, ok := tr.Last()
	if !ok || len(last.Products) != 1 {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestDisplayMessage_JSONIncludesRole(t *testing.T) {
	b, err := json.Marshal(NewDisplayMessage(KindError, "boom"))
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	s := string(b)
	for _, want := range []string{`"role":"assistant"`, `"kind":"error"`, `"content":"boom"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
}
