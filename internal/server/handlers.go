// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jeranaias/shopchat/internal/chat"
	"github.com/jeranaias/shopchat/internal/proxy"
	"github.com/jeranaias/shopchat/internal/router"
	"github.com/jeranaias/shopchat/internal/telemetry"
	"github.com/jeranaias/shopchat/internal/ui/web"
)

// ============================================================================
// SESSION COOKIE
// ============================================================================

// sessionFor returns the caller's chat session, starting a new one when
// the cookie is missing or the session expired.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *chat.Session {
	var id string
	if c, err := r.Cookie(SessionCookieName); err == nil {
		id = c.Value
	}

	sess, created := s.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    sess.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// submit runs one chat turn. The upstream call is not tied to the client
// connection: a turn that has started runs to completion.
func (s *Server) submit(r *http.Request, sess *chat.Session, text string) chat.Outcome {
	outcome := sess.Submit(context.WithoutCancel(r.Context()), text)
	s.stats.recordOutcome(outcome)
	return outcome
}

// ============================================================================
// BROWSER HANDLERS
// ============================================================================

// handleIndex handles GET /.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	var buf bytes.Buffer
	err := s.renderer.Chat(&buf, web.ChatPage{
		Title:       s.title,
		Snapshot:    sess.Snapshot(),
		Device:      web.DetectDevice(r.UserAgent()),
		Images:      sess.Images(),
		ShowStats:   true,
		AuthEnabled: s.gate.Enabled(),
	})
	if err != nil {
		s.logger.Error("RENDER_FAILED", zap.String("page", "chat"), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// handleChatForm handles POST /chat from the page form.
func (s *Server) handleChatForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	text := r.PostFormValue("message")
	if len(text) > MaxMessageLength {
		http.Error(w, "Message too long", http.StatusRequestEntityTooLarge)
		return
	}

	sess := s.sessionFor(w, r)
	s.submit(r, sess, text)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ============================================================================
// SESSION API HANDLERS
// ============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the answer of POST /api/chat.
type ChatResponse struct {
	Outcome string        `json:"outcome"`
	Session chat.Snapshot `json:"session"`
}

// handleSession handles GET /api/session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Message) > MaxMessageLength {
		writeError(w, http.StatusRequestEntityTooLarge, "Message too long")
		return
	}

	sess := s.sessionFor(w, r)
	outcome := s.submit(r, sess, req.Message)

	status := http.StatusOK
	if outcome == chat.OutcomeBusy {
		status = http.StatusConflict
	}
	writeJSON(w, status, ChatResponse{Outcome: outcome.String(), Session: sess.Snapshot()})
}

// ============================================================================
// PROXY HANDLERS
// ============================================================================

// handleProxy returns the handler of one proxy endpoint.
func (s *Server) handleProxy(backend router.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req proxy.Request
		if !s.decode(w, r, &req) {
			return
		}

		if s.proxy == nil {
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		s.stats.ProxyCalls.Add(1)

		var (
			resp *proxy.Response
			err  error
		)
		if backend == router.BackendClaude {
			resp, err = s.proxy.Claude(r.Context(), req)
		} else {
			resp, err = s.proxy.OpenAI(r.Context(), req)
		}
		if err != nil {
			var pe *proxy.Error
			if errors.As(err, &pe) {
				writeJSON(w, pe.Status, pe)
				return
			}
			s.logger.Error("PROXY_UNEXPECTED_ERROR", zap.Stringer("backend", backend), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleMethodNotAllowed answers non-POST requests to the proxy endpoints.
func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// decode reads a size-limited JSON body into v. On failure it writes the
// error response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		s.logger.Debug("INVALID_REQUEST_BODY", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request format")
		return false
	}
	return true
}

// ============================================================================
// LOGIN HANDLERS
// ============================================================================

// IncorrectPasswordMessage is shown after a failed login.
const IncorrectPasswordMessage = "Incorrect password, please try again"

// handleLoginPage handles GET /login.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if !s.gate.Enabled() || s.gate.authorized(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderLogin(w, http.StatusOK, "")
}

// handleLogin handles POST /login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.gate.Enabled() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if !s.gate.CheckPassword(r.PostFormValue("password")) {
		s.logger.Warn("AUTH_LOGIN_FAILED", zap.String("ip", GetClientIP(r)))
		s.renderLogin(w, http.StatusUnauthorized, IncorrectPasswordMessage)
		return
	}

	s.gate.SetCookie(w, r)
	s.logger.Info("AUTH_LOGIN", zap.String("ip", GetClientIP(r)))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout handles POST /logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.gate.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, message string) {
	var buf bytes.Buffer
	if err := s.renderer.Login(&buf, web.LoginPage{Title: s.title, Error: message}); err != nil {
		s.logger.Error("RENDER_FAILED", zap.String("page", "login"), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// ============================================================================
// HEALTH AND STATS HANDLERS
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Products      int    `json:"products"`
	Sessions      int    `json:"sessions"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// handleHealth handles GET /health. The status is "degraded" until a
// catalog has loaded.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:        "ok",
		Version:       Version,
		Products:      s.Catalog().Len(),
		Sessions:      s.sessions.Len(),
		UptimeSeconds: int64(s.stats.Uptime().Seconds()),
	}
	if health.Products == 0 {
		health.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, health)
}

// StatsResponse represents the usage statistics response.
type StatsResponse struct {
	ChatTurns     int64             `json:"chat_turns"`
	Replies       int64             `json:"replies"`
	Failures      int64             `json:"failures"`
	ProxyCalls    int64             `json:"proxy_calls"`
	Sessions      int               `json:"sessions"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Ledger        *telemetry.Totals `json:"ledger,omitempty"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		ChatTurns:     s.stats.ChatTurns.Load(),
		Replies:       s.stats.Replies.Load(),
		Failures:      s.stats.Failures.Load(),
		ProxyCalls:    s.stats.ProxyCalls.Load(),
		Sessions:      s.sessions.Len(),
		UptimeSeconds: int64(s.stats.Uptime().Seconds()),
	}

	if s.ledger != nil {
		totals, err := s.ledger.Totals(r.Context())
		if err != nil {
			s.logger.Error("LEDGER_TOTALS_FAILED", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		resp.Ledger = &totals
	}
	writeJSON(w, http.StatusOK, resp)
}
