// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/shopchat/internal/chat"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds configuration for the session store.
type Config struct {
	// IdleTimeout expires sessions without activity (default: 2 hours).
	IdleTimeout time.Duration

	// MaxSessions caps live sessions; the least recently active idle
	// session is evicted to make room (default: 1000).
	MaxSessions int
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		IdleTimeout: 2 * time.Hour,
		MaxSessions: 1000,
	}
}

// Factory builds a new session with the given id.
type Factory func(id string) *chat.Session

// =============================================================================
// STORE
// =============================================================================

// Store tracks live sessions. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*chat.Session

	factory     Factory
	idleTimeout time.Duration
	maxSessions int
	logger      *zap.Logger
	now         func() time.Time
}

// NewStore creates a store. Zero config fields use DefaultConfig values.
func NewStore(cfg Config, factory Factory, logger *zap.Logger) *Store {
	def := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessions:    make(map[string]*chat.Session),
		factory:     factory,
		idleTimeout: cfg.IdleTimeout,
		maxSessions: cfg.MaxSessions,
		logger:      logger,
		now:         time.Now,
	}
}

// Get returns the live session with id. Expired sessions are dropped.
func (s *Store) Get(id string) (*chat.Session, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(sess) {
		delete(s.sessions, id)
		s.logger.Info("SESSION_EXPIRED", zap.String("session", id))
		return nil, false
	}
	sess.Touch()
	return sess, true
}

// Create builds and registers a new session.
func (s *Store) Create() *chat.Session {
	id := uuid.NewString()
	sess := s.factory(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.maxSessions {
		s.evictLocked()
	}
	s.sessions[sess.ID()] = sess
	s.logger.Info("SESSION_CREATED", zap.String("session", sess.ID()), zap.Int("live", len(s.sessions)))
	return sess
}

// GetOrCreate returns the session with id, creating a new one when it is
// unknown or expired. created reports which happened.
func (s *Store) GetOrCreate(id string) (sess *chat.Session, created bool) {
	if sess, ok := s.Get(id); ok {
		return sess, false
	}
	return s.Create(), true
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Each calls fn for every live session.
func (s *Store) Each(fn func(*chat.Session)) {
	s.mu.Lock()
	live := make([]*chat.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		fn(sess)
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("SESSION_SWEEP", zap.Int("removed", removed), zap.Int("live", len(s.sessions)))
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) expired(sess *chat.Session) bool {
	if sess.Sending() {
		return false
	}
	return s.now().Sub(sess.LastActive()) >= s.idleTimeout
}

// evictLocked removes the least recently active idle session.
func (s *Store) evictLocked() {
	type entry struct {
		id   string
		last time.Time
	}
	var idle []entry
	for id, sess := range s.sessions {
		if !sess.Sending() {
			idle = append(idle, entry{id, sess.LastActive()})
		}
	}
	if len(idle) == 0 {
		return
	}
	sort.Slice(idle, func(i, j int) bool { return idle[i].last.Before(idle[j].last) })
	delete(s.sessions, idle[0].id)
	s.logger.Info("SESSION_EVICTED", zap.String("session", idle[0].id))
}
