// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package web renders the browser chat page and the login page.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/jeranaias/shopchat/internal/catalog"
	"github.com/jeranaias/shopchat/internal/chat"
	"github.com/jeranaias/shopchat/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultTitle is the page title when none is configured.
const DefaultTitle = "Shopping Assistant"

// Renderer holds the parsed page templates. It is safe for concurrent use.
type Renderer struct {
	chat  *template.Template
	login *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	chatTmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/chat.html")
	if err != nil {
		return nil, fmt.Errorf("parse chat template: %w", err)
	}
	loginTmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("parse login template: %w", err)
	}
	return &Renderer{chat: chatTmpl, login: loginTmpl}, nil
}

// ChatPage is the data of the chat page.
type ChatPage struct {
	Title    string
	Snapshot chat.Snapshot
	Device   Device
	Images   *chat.ImageCache
	// ShowStats adds the usage footer.
	ShowStats bool
	// AuthEnabled shows the logout button.
	AuthEnabled bool
}

// Link returns the card link of a product for the page's device.
func (p ChatPage) Link(product catalog.Product) Link {
	return ProductLink(p.Device, product.ProductLink)
}

// Image returns the memoized image URL of a product.
func (p ChatPage) Image(product catalog.Product) string {
	if p.Images == nil {
		return product.ImageLink
	}
	return p.Images.URL(product)
}

// IsUser reports whether m is shown on the user side.
func (p ChatPage) IsUser(m model.DisplayMessage) bool {
	return m.Kind == model.KindUser
}

// HasProducts reports whether m renders as product cards.
func (p ChatPage) HasProducts(m model.DisplayMessage) bool {
	return m.Kind == model.KindAssistantProducts && len(m.Products) > 0
}

// IsError reports whether m is a failed turn.
func (p ChatPage) IsError(m model.DisplayMessage) bool {
	return m.Kind == model.KindError
}

// Cost formats a dollar amount.
func (p ChatPage) Cost(v float64) string {
	return fmt.Sprintf("$%.6f", v)
}

// Chat renders the chat page.
func (r *Renderer) Chat(w io.Writer, page ChatPage) error {
	if page.Title == "" {
		page.Title = DefaultTitle
	}
	return r.chat.ExecuteTemplate(w, "layout", page)
}

// LoginPage is the data of the login page.
type LoginPage struct {
	Title string
	Error string
}

// Login renders the password page.
func (r *Renderer) Login(w io.Writer, page LoginPage) error {
	if page.Title == "" {
		page.Title = DefaultTitle
	}
	return r.login.ExecuteTemplate(w, "layout", page)
}
