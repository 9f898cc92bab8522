// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/shopchat/internal/router"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete shopchat configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server" json:"server"`
	Auth      AuthConfig      `toml:"auth" yaml:"auth" json:"auth"`
	Catalog   CatalogConfig   `toml:"catalog" yaml:"catalog" json:"catalog"`
	Assistant AssistantConfig `toml:"assistant" yaml:"assistant" json:"assistant"`
	Upstream  UpstreamConfig  `toml:"upstream" yaml:"upstream" json:"upstream"`
	Ledger    LedgerConfig    `toml:"ledger" yaml:"ledger" json:"ledger"`
	Log       LogConfig       `toml:"log" yaml:"log" json:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:8080"
	Addr string `toml:"addr" yaml:"addr" json:"addr"`
	// SessionIdleMinutes expires chat sessions without activity
	SessionIdleMinutes int `toml:"session_idle_minutes" yaml:"session_idle_minutes" json:"session_idle_minutes"`
	// MaxSessions caps the number of live chat sessions
	MaxSessions int `toml:"max_sessions" yaml:"max_sessions" json:"max_sessions"`
	// RateLimit is requests per minute per client (0 = unlimited)
	RateLimit int `toml:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// AuthConfig contains the password gate settings.
// With neither Password nor PasswordHash set the gate is disabled.
type AuthConfig struct {
	Password string `toml:"password" yaml:"password" json:"password"`
	// PasswordHash is a bcrypt hash, checked instead of Password when set
	PasswordHash string `toml:"password_hash" yaml:"password_hash" json:"password_hash"`
	// TokenSecret signs the auth cookie; generated at startup when empty
	TokenSecret string `toml:"token_secret" yaml:"token_secret" json:"token_secret"`
	// TokenTTLHours is how long a successful login stays valid
	TokenTTLHours int `toml:"token_ttl_hours" yaml:"token_ttl_hours" json:"token_ttl_hours"`
}

// CatalogConfig contains product catalog settings.
type CatalogConfig struct {
	// Source is a local path, file:// URL or http(s) URL
	Source string `toml:"source" yaml:"source" json:"source"`
	// Watch reloads a local catalog file when it changes
	Watch bool `toml:"watch" yaml:"watch" json:"watch"`
	// FetchTimeoutSecs bounds remote catalog fetches
	FetchTimeoutSecs int `toml:"fetch_timeout_secs" yaml:"fetch_timeout_secs" json:"fetch_timeout_secs"`
}

// AssistantConfig contains backend selection and generation parameters.
type AssistantConfig struct {
	// ClaudeModels is the ordered model list used when rotating
	ClaudeModels []string `toml:"claude_models" yaml:"claude_models" json:"claude_models"`
	// OpenAIModel is the single model used for the OpenAI backend
	OpenAIModel string `toml:"openai_model" yaml:"openai_model" json:"openai_model"`
	// Backend is the initial backend: "claude" or "openai"
	Backend string `toml:"backend" yaml:"backend" json:"backend"`
	// Policy is "pinned" (never move) or "rotate" (advance after each reply)
	Policy      string  `toml:"policy" yaml:"policy" json:"policy"`
	MaxTokens   int     `toml:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `toml:"temperature" yaml:"temperature" json:"temperature"`
	// Preamble replaces the default system prompt preamble when set
	Preamble string `toml:"preamble" yaml:"preamble" json:"preamble"`
}

// UpstreamConfig contains LLM provider credentials and endpoints.
type UpstreamConfig struct {
	ClaudeKey    string `toml:"claude_key" yaml:"claude_key" json:"claude_key"`
	OpenAIKey    string `toml:"openai_key" yaml:"openai_key" json:"openai_key"`
	AnthropicURL string `toml:"anthropic_url" yaml:"anthropic_url" json:"anthropic_url"`
	OpenAIURL    string `toml:"openai_url" yaml:"openai_url" json:"openai_url"`
	TimeoutSecs  int    `toml:"timeout_secs" yaml:"timeout_secs" json:"timeout_secs"`
}

// LedgerConfig contains usage ledger settings.
type LedgerConfig struct {
	// Path is the sqlite database path (empty = ledger disabled)
	Path string `toml:"path" yaml:"path" json:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" yaml:"level" json:"level"`
	JSON  bool   `toml:"json" yaml:"json" json:"json"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               "127.0.0.1:8080",
			SessionIdleMinutes: 120,
			MaxSessions:        1000,
			RateLimit:          60,
		},
		Auth: AuthConfig{
			TokenTTLHours: 24,
		},
		Catalog: CatalogConfig{
			Source:           "productData.md",
			Watch:            true,
			FetchTimeoutSecs: 30,
		},
		Assistant: AssistantConfig{
			ClaudeModels: append([]string(nil), router.DefaultClaudeModels...),
			OpenAIModel:  router.DefaultOpenAIModel,
			Backend:      router.BackendOpenAI.String(),
			Policy:       router.PolicyPinned.String(),
			MaxTokens:    1500,
			Temperature:  0.7,
		},
		Upstream: UpstreamConfig{
			AnthropicURL: "https://api.anthropic.com/v1",
			OpenAIURL:    "https://api.openai.com/v1",
			TimeoutSecs:  120,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SessionIdle returns the session idle timeout.
func (s ServerConfig) SessionIdle() time.Duration {
	return time.Duration(s.SessionIdleMinutes) * time.Minute
}

// TokenTTL returns the auth token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// Enabled reports whether the password gate is active.
func (a AuthConfig) Enabled() bool {
	return a.Password != "" || a.PasswordHash != ""
}

// FetchTimeout returns the catalog fetch timeout.
func (c CatalogConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

// Timeout returns the upstream request timeout.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the shopchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".shopchat"), nil
}

// DefaultPath returns the path of the default TOML config file.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// warnInsecurePermissions reports config files readable by other users.
// The file may hold API keys and the access password.
func warnInsecurePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		fmt.Fprintf(os.Stderr, "Warning: %s is accessible by other users (mode %o)\n", path, mode)
	}
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load resolves the configuration.
//
// An explicit path must exist. An empty path falls back to the default
// config file when present and to built-in defaults otherwise. A .env file in
// the working directory is loaded into the environment (existing variables
// win) before environment overrides are applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if def, err := DefaultPath(); err == nil {
			if _, statErr := os.Stat(def); statErr == nil {
				path = def
			}
		}
	}

	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile decodes a config file into cfg. The format is chosen by
// extension: .yaml and .yml are YAML, everything else is TOML.
func LoadFile(cfg *Config, path string) error {
	warnInsecurePermissions(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML file %s: %w", path, err)
		}
	default:
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %v\n", path, undecoded)
		}
	}
	return nil
}

// SetDefaults fills zero-value fields with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.SessionIdleMinutes == 0 {
		c.Server.SessionIdleMinutes = d.Server.SessionIdleMinutes
	}
	if c.Server.MaxSessions == 0 {
		c.Server.MaxSessions = d.Server.MaxSessions
	}
	if c.Auth.TokenTTLHours == 0 {
		c.Auth.TokenTTLHours = d.Auth.TokenTTLHours
	}
	if c.Catalog.Source == "" {
		c.Catalog.Source = d.Catalog.Source
	}
	if c.Catalog.FetchTimeoutSecs == 0 {
		c.Catalog.FetchTimeoutSecs = d.Catalog.FetchTimeoutSecs
	}
	if len(c.Assistant.ClaudeModels) == 0 {
		c.Assistant.ClaudeModels = d.Assistant.ClaudeModels
	}
	if c.Assistant.OpenAIModel == "" {
		c.Assistant.OpenAIModel = d.Assistant.OpenAIModel
	}
	if c.Assistant.Backend == "" {
		c.Assistant.Backend = d.Assistant.Backend
	}
	if c.Assistant.Policy == "" {
		c.Assistant.Policy = d.Assistant.Policy
	}
	if c.Assistant.MaxTokens == 0 {
		c.Assistant.MaxTokens = d.Assistant.MaxTokens
	}
	if c.Upstream.AnthropicURL == "" {
		c.Upstream.AnthropicURL = d.Upstream.AnthropicURL
	}
	if c.Upstream.OpenAIURL == "" {
		c.Upstream.OpenAIURL = d.Upstream.OpenAIURL
	}
	if c.Upstream.TimeoutSecs == 0 {
		c.Upstream.TimeoutSecs = d.Upstream.TimeoutSecs
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if c.Server.SessionIdleMinutes < 1 {
		add("server.session_idle_minutes", "must be at least 1, got %d", c.Server.SessionIdleMinutes)
	}
	if c.Server.MaxSessions < 1 {
		add("server.max_sessions", "must be at least 1, got %d", c.Server.MaxSessions)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "cannot be negative")
	}

	// Auth
	if c.Auth.TokenTTLHours < 1 || c.Auth.TokenTTLHours > 24*30 {
		add("auth.token_ttl_hours", "must be 1-720, got %d", c.Auth.TokenTTLHours)
	}
	if c.Auth.PasswordHash != "" && !strings.HasPrefix(c.Auth.PasswordHash, "$2") {
		add("auth.password_hash", "must be a bcrypt hash")
	}

	// Catalog
	if c.Catalog.FetchTimeoutSecs < 1 {
		add("catalog.fetch_timeout_secs", "must be at least 1, got %d", c.Catalog.FetchTimeoutSecs)
	}

	// Assistant
	if _, err := router.ParseBackend(c.Assistant.Backend); err != nil {
		add("assistant.backend", "%v", err)
	}
	if _, err := router.ParsePolicy(c.Assistant.Policy); err != nil {
		add("assistant.policy", "%v", err)
	}
	for i, m := range c.Assistant.ClaudeModels {
		if strings.TrimSpace(m) == "" {
			add("assistant.claude_models", "entry %d is empty", i)
		}
	}
	if c.Assistant.MaxTokens < 1 || c.Assistant.MaxTokens > 100000 {
		add("assistant.max_tokens", "must be 1-100000, got %d", c.Assistant.MaxTokens)
	}
	if c.Assistant.Temperature < 0 || c.Assistant.Temperature > 2 {
		add("assistant.temperature", "must be between 0.0 and 2.0, got %g", c.Assistant.Temperature)
	}

	// Upstream
	for field, raw := range map[string]string{
		"upstream.anthropic_url": c.Upstream.AnthropicURL,
		"upstream.openai_url":    c.Upstream.OpenAIURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add(field, "invalid URL %q", raw)
		}
	}
	if c.Upstream.TimeoutSecs < 1 {
		add("upstream.timeout_secs", "must be at least 1, got %d", c.Upstream.TimeoutSecs)
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CLAUDE_API_KEY: overrides upstream.claude_key
//   - OPENAI_API_KEY: overrides upstream.openai_key
//   - ACCESS_PASSWORD: overrides auth.password
//   - NEXT_PUBLIC_ACCESS_PASSWORD: alias for ACCESS_PASSWORD
//   - SHOPCHAT_ADDR: overrides server.addr
//   - SHOPCHAT_CATALOG: overrides catalog.source
//   - SHOPCHAT_BACKEND: overrides assistant.backend
//   - SHOPCHAT_POLICY: overrides assistant.policy
//   - SHOPCHAT_LEDGER: overrides ledger.path
//   - SHOPCHAT_LOG_LEVEL: overrides log.level
//   - SHOPCHAT_LOG_JSON: set to "1" or "true" for JSON logs
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("CLAUDE_API_KEY"); key != "" {
		c.Upstream.ClaudeKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Upstream.OpenAIKey = key
	}

	if pw := os.Getenv("NEXT_PUBLIC_ACCESS_PASSWORD"); pw != "" {
		c.Auth.Password = pw
	}
	if pw := os.Getenv("ACCESS_PASSWORD"); pw != "" {
		c.Auth.Password = pw
	}

	if addr := os.Getenv("SHOPCHAT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if src := os.Getenv("SHOPCHAT_CATALOG"); src != "" {
		c.Catalog.Source = src
	}
	if backend := os.Getenv("SHOPCHAT_BACKEND"); backend != "" {
		c.Assistant.Backend = backend
	}
	if policy := os.Getenv("SHOPCHAT_POLICY"); policy != "" {
		c.Assistant.Policy = policy
	}
	if ledger := os.Getenv("SHOPCHAT_LEDGER"); ledger != "" {
		c.Ledger.Path = ledger
	}
	if level := os.Getenv("SHOPCHAT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if v := os.Getenv("SHOPCHAT_LOG_JSON"); v != "" {
		b, err := strconv.ParseBool(v)
		c.Log.JSON = err == nil && b
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Assistant.ClaudeModels = append([]string(nil), c.Assistant.ClaudeModels...)
	return &clone
}

// String returns the config as indented JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	for _, s := range []*string{
		&safe.Upstream.ClaudeKey,
		&safe.Upstream.OpenAIKey,
		&safe.Auth.Password,
		&safe.Auth.PasswordHash,
		&safe.Auth.TokenSecret,
	} {
		if *s != "" {
			*s = "[REDACTED]"
		}
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
