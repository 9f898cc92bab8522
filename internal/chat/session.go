// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/shopchat/internal/catalog"
	"github.com/jeranaias/shopchat/internal/model"
	"github.com/jeranaias/shopchat/internal/proxy"
	"github.com/jeranaias/shopchat/internal/recommend"
	"github.com/jeranaias/shopchat/internal/router"
	"github.com/jeranaias/shopchat/internal/telemetry"
)

// =============================================================================
// MESSAGES
// =============================================================================

const (
	// WelcomeMessage greets the user when the catalog loaded.
	WelcomeMessage = "Hello, I am Rufus, an Amazon AI Assistant. What do you need help with today?"

	// DegradedWelcomeMessage greets the user when the catalog failed to load.
	DegradedWelcomeMessage = WelcomeMessage + " Note: I'm currently working with a limited product catalog."

	// NotReadyMessage is shown when input arrives before the catalog and
	// system prompt are installed.
	NotReadyMessage = "The system is still getting ready, please try again in a moment..."

	// ErrorMessage opens every failed-turn entry.
	ErrorMessage = "Sorry, I encountered an error. Please try again later."
)

// =============================================================================
// STATE AND OUTCOME
// =============================================================================

// State is the orchestrator state.
type State int

const (
	StateIdle State = iota
	StateSending
	// StateError is idle after a failed turn; it accepts input.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateIdle, StateSending, StateError} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// Outcome reports what Submit did.
type Outcome int

const (
	// OutcomeIgnored: blank input, nothing changed.
	OutcomeIgnored Outcome = iota
	// OutcomeBusy: a call is already in flight, nothing changed.
	OutcomeBusy
	// OutcomeNotReady: a not-ready notice was appended, no call was made.
	OutcomeNotReady
	// OutcomeReplied: the call succeeded and both logs grew.
	OutcomeReplied
	// OutcomeFailed: the call failed and a UI error entry was appended.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeBusy:
		return "busy"
	case OutcomeNotReady:
		return "not_ready"
	case OutcomeReplied:
		return "replied"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Caller performs one upstream call. *proxy.Service and *HTTPCaller
// satisfy it.
type Caller interface {
	Call(ctx context.Context, backend router.Backend, req proxy.Request) (*proxy.Response, error)
}

// Recorder receives the usage of every successful call. *telemetry.Ledger
// satisfies it.
type Recorder interface {
	RecordUsage(ctx context.Context, u telemetry.Usage) error
}

// Config configures a Session.
type Config struct {
	// ID identifies the session. Empty generates a uuid.
	ID string

	Caller   Caller
	Selector *router.Selector

	// Catalog and SystemPrompt seed the session. A nil or empty catalog
	// starts the session in degraded mode; SetCatalog can install one later.
	Catalog      *catalog.Catalog
	SystemPrompt string

	MaxTokens   int
	Temperature float64

	Recorder Recorder
	Logger   *zap.Logger
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one chat conversation. All methods are safe for concurrent
// use; at most one upstream call is in flight at a time.
type Session struct {
	mu sync.Mutex

	id          string
	caller      Caller
	selector    *router.Selector
	maxTokens   int
	temperature float64
	recorder    Recorder
	logger      *zap.Logger

	catalog    *catalog.Catalog
	history    model.History
	transcript model.Transcript
	stats      UsageStats
	state      State
	images     *ImageCache
	lastActive time.Time
}

// NewSession creates a session seeded with a welcome message.
func NewSession(cfg Config) *Session {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	sel := cfg.Selector
	if sel == nil {
		sel = router.NewSelector(nil, "", router.BackendOpenAI, router.PolicyPinned)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		id:          id,
		caller:      cfg.Caller,
		selector:    sel,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		recorder:    cfg.Recorder,
		logger:      logger.With(zap.String("session", id)),
		images:      NewImageCache(),
		lastActive:  time.Now(),
	}

	current := sel.Current()
	s.stats.CurrentModel = current.Model
	s.stats.CurrentBackend = current.Backend

	welcome := DegradedWelcomeMessage
	if !cfg.Catalog.Empty() {
		welcome = WelcomeMessage
	}
	s.transcript.Append(model.NewDisplayMessage(model.KindNotice, welcome))

	if err := s.install(cfg.Catalog, cfg.SystemPrompt); err != nil {
		s.logger.Debug("SESSION_CATALOG_DEFERRED", zap.Error(err))
	}
	return s
}

// ErrEmptyCatalog is returned by SetCatalog for an empty catalog.
var ErrEmptyCatalog = errors.New("catalog is empty")

// SetCatalog installs a catalog and its system prompt on a session that is
// not ready yet. Once installed both are immutable: a second call returns
// model.ErrSystemAlreadySet.
func (s *Session) SetCatalog(cat *catalog.Catalog, systemPrompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.install(cat, systemPrompt)
}

func (s *Session) install(cat *catalog.Catalog, systemPrompt string) error {
	if s.history.HasSystem() {
		return model.ErrSystemAlreadySet
	}
	if cat.Empty() {
		return ErrEmptyCatalog
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return errors.New("system prompt is empty")
	}
	if err := s.history.SetSystem(systemPrompt); err != nil {
		return err
	}
	s.catalog = cat
	s.logger.Info("SESSION_READY", zap.Int("products", cat.Len()))
	return nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Images returns the session's product image cache.
func (s *Session) Images() *ImageCache {
	return s.images
}

// Ready reports whether the catalog and system prompt are installed.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready()
}

func (s *Session) ready() bool {
	return !s.catalog.Empty() && s.history.HasSystem()
}

// LastActive returns the time of the last Submit or creation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Touch marks the session as active.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

// Sending reports whether a call is in flight.
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateSending
}

// Submit handles one user input. It blocks until the upstream call, if
// any, completes.
func (s *Session) Submit(ctx context.Context, text string) Outcome {
	s.mu.Lock()

	if strings.TrimSpace(text) == "" {
		s.mu.Unlock()
		return OutcomeIgnored
	}
	if s.state == StateSending {
		s.mu.Unlock()
		return OutcomeBusy
	}
	s.lastActive = time.Now()

	if !s.ready() {
		s.transcript.Append(model.NewDisplayMessage(model.KindNotice, NotReadyMessage))
		s.mu.Unlock()
		s.logger.Info("SUBMIT_NOT_READY")
		return OutcomeNotReady
	}

	s.transcript.Append(model.NewDisplayMessage(model.KindUser, text))
	s.state = StateSending

	// The user entry joins the API log only together with the reply, so a
	// failed turn leaves no trace in the context sent next time.
	messages := append(s.history.Messages(), model.ChatMessage{Role: model.RoleUser, Content: text})
	choice := s.selector.Current()
	req := proxy.Request{
		Messages:    messages,
		Model:       choice.Model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}
	caller := s.caller
	s.mu.Unlock()

	start := time.Now()
	var resp *proxy.Response
	var err error
	if caller == nil {
		err = errors.New("no backend caller configured")
	} else {
		resp, err = caller.Call(ctx, choice.Backend, req)
	}
	latency := time.Since(start)

	s.mu.Lock()
	if err != nil {
		s.transcript.Append(model.NewDisplayMessage(model.KindError, errorText(err)))
		s.state = StateError
		s.mu.Unlock()
		s.logger.Warn("TURN_FAILED",
			zap.Stringer("backend", choice.Backend),
			zap.String("model", choice.Model),
			zap.Duration("duration", latency),
			zap.Error(err))
		return OutcomeFailed
	}

	_ = s.history.Append(model.RoleUser, text)
	_ = s.history.Append(model.RoleAssistant, resp.Content)

	res := recommend.Parse(resp.Content, s.catalog)
	if res.HasProducts() {
		s.transcript.Append(model.NewProductsMessage(res.Products))
	} else {
		s.transcript.Append(model.NewDisplayMessage(model.KindAssistantText, res.DisplayText))
	}

	var usage *telemetry.Usage
	if resp.Stats != nil {
		s.stats.merge(choice, *resp.Stats)
		usage = &telemetry.Usage{
			SessionID:    s.id,
			Backend:      choice.Backend.String(),
			Model:        choice.Model,
			InputTokens:  resp.Stats.InputTokens,
			OutputTokens: resp.Stats.OutputTokens,
			InputCost:    resp.Stats.InputCost,
			OutputCost:   resp.Stats.OutputCost,
			TotalCost:    resp.Stats.TotalCost,
			Latency:      latency,
			At:           time.Now(),
		}
	}
	s.selector.Advance()
	s.state = StateIdle
	recorder := s.recorder
	s.mu.Unlock()

	s.logger.Info("TURN_COMPLETE",
		zap.Stringer("backend", choice.Backend),
		zap.String("model", choice.Model),
		zap.Int("products", len(res.Products)),
		zap.Int("tags", len(res.TagIDs)),
		zap.Duration("duration", latency))

	if recorder != nil && usage != nil {
		if err := recorder.RecordUsage(context.WithoutCancel(ctx), *usage); err != nil {
			s.logger.Warn("USAGE_RECORD_FAILED", zap.Error(err))
		}
	}
	return OutcomeReplied
}

// errorText builds the UI entry for a failed turn.
func errorText(err error) string {
	var pe *proxy.Error
	detail := err.Error()
	if errors.As(err, &pe) {
		detail = pe.Message
		if pe.Detail != "" {
			detail += ": " + pe.Detail
		}
	}
	if detail == "" {
		return ErrorMessage
	}
	return ErrorMessage + " Error: " + detail
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a consistent copy of a session for rendering.
type Snapshot struct {
	ID       string                 `json:"id"`
	State    State                  `json:"state"`
	Ready    bool                   `json:"ready"`
	Messages []model.DisplayMessage `json:"messages"`
	History  []model.ChatMessage    `json:"-"`
	Stats    UsageStats             `json:"stats"`
	Choice   router.Choice          `json:"next"`
	Policy   string                 `json:"policy"`
}

// Sending reports whether a call is in flight.
func (s Snapshot) Sending() bool {
	return s.State == StateSending
}

// Snapshot returns a copy of both logs, the stats and the state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:       s.id,
		State:    s.state,
		Ready:    s.ready(),
		Messages: s.transcript.Messages(),
		History:  s.history.Messages(),
		Stats:    s.stats.clone(),
		Choice:   s.selector.Current(),
		Policy:   s.selector.Policy().String(),
	}
}
