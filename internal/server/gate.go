// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// PASSWORD GATE
// ============================================================================

const (
	// AuthCookieName holds the signed access token.
	AuthCookieName = "shopchat_auth"

	// DefaultTokenTTL is how long a successful login stays valid.
	DefaultTokenTTL = 24 * time.Hour
)

// GateConfig configures the password gate.
type GateConfig struct {
	// Password is compared in constant time.
	Password string
	// PasswordHash is a bcrypt hash checked instead of Password when set.
	PasswordHash string
	// Secret signs tokens. Empty generates a random secret, so tokens do
	// not survive a restart.
	Secret []byte
	TTL    time.Duration
}

// Gate guards the server with a shared password. A successful login is
// remembered in an HMAC-signed cookie carrying its expiry time.
type Gate struct {
	password string
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewGate creates a gate. With no password configured the gate is
// disabled and lets every request through.
func NewGate(cfg GateConfig, logger *zap.Logger) (*Gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		password: cfg.Password,
		secret:   cfg.Secret,
		ttl:      cfg.TTL,
		now:      time.Now,
		logger:   logger,
	}
	if cfg.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
			return nil, fmt.Errorf("invalid password hash: %w", err)
		}
		g.hash = []byte(cfg.PasswordHash)
	}
	if g.ttl <= 0 {
		g.ttl = DefaultTokenTTL
	}
	if len(g.secret) == 0 {
		g.secret = make([]byte, 32)
		if _, err := rand.Read(g.secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	return g, nil
}

// Enabled reports whether a password is required.
func (g *Gate) Enabled() bool {
	return g != nil && (g.password != "" || len(g.hash) > 0)
}

// CheckPassword reports whether password unlocks the gate.
func (g *Gate) CheckPassword(password string) bool {
	if password == "" {
		return false
	}
	if len(g.hash) > 0 {
		return bcrypt.CompareHashAndPassword(g.hash, []byte(password)) == nil
	}
	if g.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) == 1
}

// Issue returns a token valid until the returned expiry.
func (g *Gate) Issue() (string, time.Time) {
	expires := g.now().Add(g.ttl).Truncate(time.Second)
	payload := strconv.FormatInt(expires.Unix(), 10)
	return payload + "." + g.sign(payload), expires
}

var (
	errMalformedToken = errors.New("malformed token")
	errBadSignature   = errors.New("bad signature")
	errTokenExpired   = errors.New("token expired")
)

// Verify checks a token's signature and expiry.
func (g *Gate) Verify(token string) error {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sig == "" {
		return errMalformedToken
	}
	if !hmac.Equal([]byte(sig), []byte(g.sign(payload))) {
		return errBadSignature
	}
	unix, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return errMalformedToken
	}
	if !g.now().Before(time.Unix(unix, 0)) {
		return errTokenExpired
	}
	return nil
}

func (g *Gate) sign(payload string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// authorized reports whether r carries a valid cookie, or a bearer token
// that is either a valid token or the password itself.
func (g *Gate) authorized(r *http.Request) bool {
	if c, err := r.Cookie(AuthCookieName); err == nil {
		if err := g.Verify(c.Value); err == nil {
			return true
		}
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		bearer := strings.TrimPrefix(auth, "Bearer ")
		return g.Verify(bearer) == nil || g.CheckPassword(bearer)
	}
	return false
}

// openPaths are reachable without logging in.
var openPaths = map[string]bool{
	"/login":  true,
	"/health": true,
}

// Middleware returns HTTP middleware enforcing the gate. API requests are
// answered with 401; page requests are redirected to /login.
func (g *Gate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.Enabled() || openPaths[r.URL.Path] || g.authorized(r) {
				next.ServeHTTP(w, r)
				return
			}

			g.logger.Debug("AUTH_DENIED",
				zap.String("ip", GetClientIP(r)),
				zap.String("path", r.URL.Path))

			if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/stats" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		})
	}
}

// SetCookie stores a fresh token on the response.
func (g *Gate) SetCookie(w http.ResponseWriter, r *http.Request) {
	token, expires := g.Issue()
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the token cookie.
func (g *Gate) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
