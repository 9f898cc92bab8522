// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/shopchat/internal/catalog"
	"github.com/jeranaias/shopchat/internal/chat"
	"github.com/jeranaias/shopchat/internal/prompt"
	"github.com/jeranaias/shopchat/internal/proxy"
	"github.com/jeranaias/shopchat/internal/router"
	"github.com/jeranaias/shopchat/internal/session"
	"github.com/jeranaias/shopchat/internal/telemetry"
	"github.com/jeranaias/shopchat/internal/ui/web"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// MaxRequestBodySize is the maximum size for request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageLength caps one chat input, in bytes.
	MaxMessageLength = 4000

	// SessionCookieName holds the chat session id.
	SessionCookieName = "shopchat_session"

	// DefaultWriteTimeout leaves room for a slow upstream call.
	DefaultWriteTimeout = 180 * time.Second

	// Version is the server version.
	Version = "0.1.0"
)

// ============================================================================
// SERVER STATS
// ============================================================================

// ServerStats counts what the server has handled since start.
type ServerStats struct {
	ChatTurns  atomic.Int64
	Replies    atomic.Int64
	Failures   atomic.Int64
	ProxyCalls atomic.Int64
	StartTime  time.Time
}

// NewServerStats creates a new ServerStats instance.
func NewServerStats() *ServerStats {
	return &ServerStats{StartTime: time.Now()}
}

// recordOutcome counts one submitted chat turn.
func (s *ServerStats) recordOutcome(o chat.Outcome) {
	switch o {
	case chat.OutcomeReplied:
		s.ChatTurns.Add(1)
		s.Replies.Add(1)
	case chat.OutcomeFailed:
		s.ChatTurns.Add(1)
		s.Failures.Add(1)
	}
}

// Uptime returns the server uptime duration.
func (s *ServerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ============================================================================
// SERVER
// ============================================================================

// Proxy is the upstream surface used by the server. *proxy.Service
// satisfies it.
type Proxy interface {
	chat.Caller
	Claude(ctx context.Context, req proxy.Request) (*proxy.Response, error)
	OpenAI(ctx context.Context, req proxy.Request) (*proxy.Response, error)
}

// Assistant holds the settings every new chat session starts with.
type Assistant struct {
	ClaudeModels []string
	OpenAIModel  string
	Backend      router.Backend
	Policy       router.Policy
	MaxTokens    int
	Temperature  float64
}

// Options configures a Server.
type Options struct {
	Addr      string
	Title     string
	Proxy     Proxy
	Assistant Assistant
	Prompt    prompt.Builder
	Sessions  session.Config

	// Gate may be nil for an open server.
	Gate *Gate
	// Ledger may be nil to skip usage recording.
	Ledger *telemetry.Ledger
	// Renderer may be nil to use the embedded templates.
	Renderer *web.Renderer

	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit    int
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

// Server is the shopchat HTTP server.
type Server struct {
	addr      string
	title     string
	proxy     Proxy
	assistant Assistant
	prompt    prompt.Builder
	gate      *Gate
	ledger    *telemetry.Ledger
	recorder  chat.Recorder
	renderer  *web.Renderer
	rateLimit int
	logger    *zap.Logger

	mux          *http.ServeMux
	httpServer   *http.Server
	writeTimeout time.Duration
	sessions     *session.Store
	stats        *ServerStats

	mu           sync.RWMutex
	catalog      *catalog.Catalog
	systemPrompt string
}

// New creates a Server. It starts without a catalog; call SetCatalog once
// one has loaded.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		addr:         opts.Addr,
		title:        opts.Title,
		proxy:        opts.Proxy,
		assistant:    opts.Assistant,
		prompt:       opts.Prompt,
		gate:         opts.Gate,
		ledger:       opts.Ledger,
		renderer:     opts.Renderer,
		rateLimit:    opts.RateLimit,
		logger:       logger,
		mux:          http.NewServeMux(),
		writeTimeout: opts.WriteTimeout,
		stats:        NewServerStats(),
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = DefaultWriteTimeout
	}
	if s.gate == nil {
		gate, err := NewGate(GateConfig{}, logger)
		if err != nil {
			return nil, err
		}
		s.gate = gate
	}
	if s.renderer == nil {
		r, err := web.New()
		if err != nil {
			return nil, err
		}
		s.renderer = r
	}
	if opts.Ledger != nil {
		s.recorder = opts.Ledger
	}

	s.sessions = session.NewStore(opts.Sessions, s.newSession, logger)
	s.setupRoutes()
	return s, nil
}

// Sessions returns the session store.
func (s *Server) Sessions() *session.Store {
	return s.sessions
}

// Stats returns the server counters.
func (s *Server) Stats() *ServerStats {
	return s.stats
}

// Catalog returns the current catalog, or nil before one has loaded.
func (s *Server) Catalog() *catalog.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// SetCatalog makes cat the catalog for new sessions and installs it in
// live sessions that are still waiting for one. Sessions that already have
// a catalog keep it. Empty catalogs are ignored.
func (s *Server) SetCatalog(cat *catalog.Catalog) {
	if cat.Empty() {
		s.logger.Warn("CATALOG_IGNORED", zap.String("reason", "empty"))
		return
	}
	systemPrompt := s.prompt.Build(cat.Products())

	s.mu.Lock()
	s.catalog = cat
	s.systemPrompt = systemPrompt
	s.mu.Unlock()

	installed := 0
	s.sessions.Each(func(sess *chat.Session) {
		if sess.Ready() {
			return
		}
		if err := sess.SetCatalog(cat, systemPrompt); err == nil {
			installed++
		}
	})
	s.logger.Info("CATALOG_INSTALLED",
		zap.Int("products", cat.Len()),
		zap.Int("waiting_sessions", installed))
}

// newSession is the session store factory.
func (s *Server) newSession(id string) *chat.Session {
	s.mu.RLock()
	cat, systemPrompt := s.catalog, s.systemPrompt
	s.mu.RUnlock()

	a := s.assistant
	cfg := chat.Config{
		ID:           id,
		Selector:     router.NewSelector(a.ClaudeModels, a.OpenAIModel, a.Backend, a.Policy),
		Catalog:      cat,
		SystemPrompt: systemPrompt,
		MaxTokens:    a.MaxTokens,
		Temperature:  a.Temperature,
		Recorder:     s.recorder,
		Logger:       s.logger,
	}
	if s.proxy != nil {
		cfg.Caller = s.proxy
	}
	return chat.NewSession(cfg)
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	// Browser
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /chat", s.handleChatForm)

	// Session API
	s.mux.HandleFunc("GET /api/session", s.handleSession)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)

	// Proxy endpoints
	s.mux.HandleFunc("POST /api/claude", s.handleProxy(router.BackendClaude))
	s.mux.HandleFunc("POST /api/openai", s.handleProxy(router.BackendOpenAI))
	s.mux.HandleFunc("/api/claude", s.handleMethodNotAllowed)
	s.mux.HandleFunc("/api/openai", s.handleMethodNotAllowed)

	// Password gate
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)

	// Health and stats
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
	}
	if s.rateLimit > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(NewRateLimiter(s.rateLimit), s.logger))
	}
	middlewares = append(middlewares, s.gate.Middleware())
	return Chain(middlewares...)(s.mux)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.serve(s.prepare(), ln)
}

// prepare builds the http.Server that Shutdown will stop.
func (s *Server) prepare() *http.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s.httpServer
}

func (s *Server) serve(srv *http.Server, ln net.Listener) error {
	s.logger.Info("SERVER_START",
		zap.String("addr", ln.Addr().String()),
		zap.String("version", Version),
		zap.Bool("password_gate", s.gate.Enabled()))

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("SERVER_SHUTDOWN", zap.Int("sessions", s.sessions.Len()))
	return srv.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down within grace.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := s.prepare()

	errCh := make(chan error, 1)
	go func() { errCh <- s.serve(srv, ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body in the proxy endpoints' shape.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
