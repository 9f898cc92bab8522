// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/shopchat/internal/catalog"
	"github.com/jeranaias/shopchat/internal/model"
	"github.com/jeranaias/shopchat/internal/prompt"
	"github.com/jeranaias/shopchat/internal/proxy"
	"github.com/jeranaias/shopchat/internal/recommend"
	"github.com/jeranaias/shopchat/internal/router"
	"github.com/jeranaias/shopchat/internal/telemetry"
)

// =============================================================================
// FAKES
// =============================================================================

type call struct {
	backend router.Backend
	req     proxy.Request
}

type scriptedCaller struct {
	mu      sync.Mutex
	calls   []call
	replies []reply
}

type reply struct {
	resp *proxy.Response
	err  error
}

func (c *scriptedCaller) Call(_ context.Context, b router.Backend, req proxy.Request) (*proxy.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call{b, req})
	if len(c.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r.resp, r.err
}

func (c *scriptedCaller) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func ok(content string, cost float64) reply {
	return reply{resp: &proxy.Response{Content: content, Stats: &proxy.Stats{
		Time: 0.5, InputTokens: 10, OutputTokens: 5, InputCost: cost / 2, OutputCost: cost / 2, TotalCost: cost,
	}}}
}

type memRecorder struct {
	mu    sync.Mutex
	usage []telemetry.Usage
	err   error
}

func (r *memRecorder) RecordUsage(_ context.Context, u telemetry.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage = append(r.usage, u)
	return r.err
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Product{
		{ID: "product_1", Name: "Trail Runner", Brand: "Acme", ImageLink: "https://img/1.jpg"},
		{ID: "product_2", Name: "City Loafer", Brand: "Brogue", ImageLink: "https://img/2.jpg"},
		{ID: "product_3", Name: "Hiking Boot", Brand: "Peak", ImageLink: "https://img/3.jpg"},
	})
}

func readySession(caller Caller, sel *router.Selector) *Session {
	cat := testCatalog()
	return NewSession(Config{
		Caller:       caller,
		Selector:     sel,
		Catalog:      cat,
		SystemPrompt: prompt.Build(cat.Products()),
		MaxTokens:    1500,
		Temperature:  0.7,
	})
}

// =============================================================================
// READINESS
// =============================================================================

func TestNewSession_Welcome(t *testing.T) {
	s := readySession(&scriptedCaller{}, nil)
	snap := s.Snapshot()

	require.Len(t, snap.Messages, 1)
	assert.Equal(t, model.KindNotice, snap.Messages[0].Kind)
	assert.Equal(t, WelcomeMessage, snap.Messages[0].Content)
	assert.True(t, snap.Ready)
	assert.Equal(t, StateIdle, snap.State)
	require.Len(t, snap.History, 1)
	assert.Equal(t, model.RoleSystem, snap.History[0].Role)
}

func TestSubmit_NotReadyAfterFailedCatalog(t *testing.T) {
	caller := &scriptedCaller{}
	s := NewSession(Config{Caller: caller})

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, DegradedWelcomeMessage, snap.Messages[0].Content)
	assert.False(t, snap.Ready)

	assert.Equal(t, OutcomeNotReady, s.Submit(context.Background(), "red shoes"))

	snap = s.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, model.KindNotice, snap.Messages[1].Kind)
	assert.Equal(t, NotReadyMessage, snap.Messages[1].Content)
	assert.Empty(t, snap.History)
	assert.Zero(t, caller.callCount())
}

func TestSetCatalog_LaterLoadMakesReady(t *testing.T) {
	caller := &scriptedCaller{replies: []reply{ok("no tags here", 0.01)}}
	s := NewSession(Config{Caller: caller})

	assert.ErrorIs(t, s.SetCatalog(catalog.New(nil), "prompt"), ErrEmptyCatalog)

	cat := testCatalog()
	require.NoError(t, s.SetCatalog(cat, prompt.Build(cat.Products())))
	assert.True(t, s.Ready())
	assert.ErrorIs(t, s.SetCatalog(cat, "other"), model.ErrSystemAlreadySet)

	assert.Equal(t, OutcomeReplied, s.Submit(context.Background(), "shoes"))
}

func TestSubmit_WhitespaceIsNoop(t *testing.T) {
	caller := &scriptedCaller{}
	s := readySession(caller, nil)
	before := s.Snapshot()

	assert.Equal(t, OutcomeIgnored, s.Submit(context.Background(), "  \t\n"))

	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("Snapshot changed (-before +after):\n%s", diff)
	}
	assert.Zero(t, caller.callCount())
}

// =============================================================================
// TURNS
// =============================================================================

func TestSubmit_SuccessResolvesProducts(t *testing.T) {
	raw := "Great picks:\n" + recommend.FormatTag("product_3") + "\n" +
		recommend.FormatTag("product_404") + "\n" + recommend.FormatTag("product_1") + "\nEnjoy"
	caller := &scriptedCaller{replies: []reply{ok(raw, 0.02)}}
	s := readySession(caller, nil)

	assert.Equal(t, OutcomeReplied, s.Submit(context.Background(), "boots"))

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, model.KindUser, snap.Messages[1].Kind)
	assert.Equal(t, "boots", snap.Messages[1].Content)

	last := snap.Messages[2]
	assert.Equal(t, model.KindAssistantProducts, last.Kind)
	require.Len(t, last.Products, 2)
	assert.Equal(t, "product_3", last.Products[0].ID)
	assert.Equal(t, "product_1", last.Products[1].ID)

	require.Len(t, snap.History, 3)
	assert.Equal(t, model.ChatMessage{Role: model.RoleUser, Content: "boots"}, snap.History[1])
	assert.Equal(t, model.ChatMessage{Role: model.RoleAssistant, Content: raw}, snap.History[2])
	assert.Equal(t, StateIdle, snap.State)
}

func TestSubmit_SuccessPlainText(t *testing.T) {
	caller := &scriptedCaller{replies: []reply{ok("What size are you?", 0.01)}}
	s := readySession(caller, nil)

	s.Submit(context.Background(), "shoes")

	last := s.Snapshot().Messages[2]
	assert.Equal(t, model.KindAssistantText, last.Kind)
	assert.Equal(t, "What size are you?", last.Content)
	assert.Empty(t, last.Products)
}

func TestSubmit_RequestCarriesFullHistory(t *testing.T) {
	caller := &scriptedCaller{replies: []reply{ok("first", 0), ok("second", 0)}}
	s := readySession(caller, router.NewSelector([]string{"c1"}, "o1", router.BackendOpenAI, router.PolicyPinned))

	s.Submit(context.Background(), "one")
	s.Submit(context.Background(), "two")

	require.Equal(t, 2, caller.callCount())
	second := caller.calls[1]
	assert.Equal(t, router.BackendOpenAI, second.backend)
	assert.Equal(t, "o1", second.req.Model)
	assert.Equal(t, 1500, second.req.MaxTokens)
	assert.Equal(t, 0.7, second.req.Temperature)

	roles := make([]model.Role, len(second.req.Messages))
	for i, m := range second.req.Messages {
		roles[i] = m.Role
	}
	assert.Equal(t, []model.Role{model.RoleSystem, model.RoleUser, model.RoleAssistant, model.RoleUser}, roles)
	assert.Equal(t, "two", second.req.Messages[3].Content)
}

func TestSubmit_FailureLeavesAPILogUntouched(t *testing.T) {
	caller := &scriptedCaller{replies: []reply{
		{err: &proxy.Error{Status: http.StatusInternalServerError, Message: "Claude API error: 500"}},
		ok("recovered", 0.01),
	}}
	s := readySession(caller, nil)
	before := s.Snapshot()

	assert.Equal(t, OutcomeFailed, s.Submit(context.Background(), "boots"))

	snap := s.Snapshot()
	assert.Len(t, snap.Messages, len(before.Messages)+2)
	last := snap.Messages[len(snap.Messages)-1]
	assert.Equal(t, model.KindError, last.Kind)
	assert.Equal(t, ErrorMessage+" Error: Claude API error: 500", last.Content)
	assert.Equal(t, model.RoleAssistant, last.Role())
	assert.Equal(t, before.History, snap.History)
	assert.Zero(t, snap.Stats.TotalCalls)
	assert.Equal(t, StateError, snap.State)

	// Error accepts input; the retry sends the pre-failure history plus the new turn.
	assert.Equal(t, OutcomeReplied, s.Submit(context.Background(), "boots again"))
	retry := caller.calls[1].req.Messages
	require.Len(t, retry, 2)
	assert.Equal(t, "boots again", retry[1].Content)
}

func TestSubmit_TransportErrorDetail(t *testing.T) {
	caller := &scriptedCaller{replies: []reply{{err: errors.New("dial tcp: refused")}}}
	s := readySession(caller, nil)
	s.Submit(context.Background(), "x")

	last, _ := lastMessage(s)
	assert.Equal(t, ErrorMessage+" Error: dial tcp: refused", last.Content)
}

func TestSubmit_NoCaller(t *testing.T) {
	s := readySession(nil, nil)
	assert.Equal(t, OutcomeFailed, s.Submit(context.Background(), "x"))
}

func lastMessage(s *Session) (model.DisplayMessage, bool) {
	msgs := s.Snapshot().Messages
	if len(msgs) == 0 {
		return model.DisplayMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

// =============================================================================
// STATS
// =============================================================================

func TestSubmit_StatsAccumulate(t *testing.T) {
	caller := &scriptedCaller{replies: []reply{ok("a", 0.0123), ok("b", 0.0456)}}
	s := readySession(caller, nil)

	s.Submit(context.Background(), "one")
	s.Submit(context.Background(), "two")

	st := s.Snapshot().Stats
	assert.Equal(t, 2, st.TotalCalls)
	assert.InDelta(t, 0.0579, st.TotalCost, 1e-12)
	require.NotNil(t, st.LastCall)
	assert.InDelta(t, 0.0456, st.LastCall.TotalCost, 1e-12)
	assert.Equal(t, router.BackendOpenAI, st.CurrentBackend)
	assert.Equal(t, router.DefaultOpenAIModel, st.CurrentModel)
}

func TestSubmit_MissingStatsNotCounted(t *testing.T) {
	caller := &scriptedCaller{replies: []reply{{resp: &proxy.Response{Content: "hi"}}}}
	s := readySession(caller, nil)

	assert.Equal(t, OutcomeReplied, s.Submit(context.Background(), "one"))
	assert.Zero(t, s.Snapshot().Stats.TotalCalls)
}

func TestSubmit_RotationOnlyOnSuccess(t *testing.T) {
	caller := &scriptedCaller{replies: []reply{
		{err: errors.New("boom")},
		ok("a", 0),
		ok("b", 0),
	}}
	sel := router.NewSelector([]string{"c1", "c2"}, "o1", router.BackendClaude, router.PolicyRotate)
	s := readySession(caller, sel)

	s.Submit(context.Background(), "1")
	s.Submit(context.Background(), "2")
	s.Submit(context.Background(), "3")

	require.Equal(t, 3, caller.callCount())
	assert.Equal(t, router.BackendClaude, caller.calls[0].backend)
	assert.Equal(t, "c1", caller.calls[0].req.Model)
	assert.Equal(t, router.BackendClaude, caller.calls[1].backend, "failure must not advance")
	assert.Equal(t, router.BackendOpenAI, caller.calls[2].backend)
	assert.Equal(t, "o1", caller.calls[2].req.Model)
}

func TestSubmit_RecordsUsage(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	caller := &scriptedCaller{replies: []reply{ok("a", 0.5)}}
	cat := testCatalog()
	s := NewSession(Config{
		ID: "sess-1", Caller: caller, Catalog: cat,
		SystemPrompt: prompt.Build(cat.Products()), Recorder: rec,
	})

	assert.Equal(t, OutcomeReplied, s.Submit(context.Background(), "x"), "recorder failure does not fail the turn")
	require.Len(t, rec.usage, 1)
	assert.Equal(t, "sess-1", rec.usage[0].SessionID)
	assert.Equal(t, "openai", rec.usage[0].Backend)
	assert.InDelta(t, 0.5, rec.usage[0].TotalCost, 1e-12)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

type blockingCaller struct {
	entered chan struct{}
	release chan struct{}
}

func (c *blockingCaller) Call(ctx context.Context, _ router.Backend, _ proxy.Request) (*proxy.Response, error) {
	close(c.entered)
	<-c.release
	return &proxy.Response{Content: "done"}, nil
}

func TestSubmit_BusyWhileSending(t *testing.T) {
	caller := &blockingCaller{entered: make(chan struct{}), release: make(chan struct{})}
	s := readySession(caller, nil)

	done := make(chan Outcome, 1)
	go func() { done <- s.Submit(context.Background(), "first") }()
	<-caller.entered

	snap := s.Snapshot()
	assert.True(t, snap.Sending())
	assert.Equal(t, OutcomeBusy, s.Submit(context.Background(), "second"))
	assert.Equal(t, snap.Messages, s.Snapshot().Messages, "busy submit changes nothing")

	close(caller.release)
	assert.Equal(t, OutcomeReplied, <-done)
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

// =============================================================================
// IMAGE CACHE
// =============================================================================

func TestImageCache_FirstURLWins(t *testing.T) {
	c := NewImageCache()
	p := catalog.Product{ID: "product_1", ImageLink: "https://img/a.jpg"}
	assert.Equal(t, "https://img/a.jpg", c.URL(p))

	p.ImageLink = "https://img/b.jpg"
	assert.Equal(t, "https://img/a.jpg", c.URL(p))
	assert.Equal(t, 1, c.Len())
}

func TestOutcomeAndStateStrings(t *testing.T) {
	assert.Equal(t, "not_ready", OutcomeNotReady.String())
	assert.Equal(t, "sending", StateSending.String())
	assert.True(t, strings.HasPrefix(Outcome(42).String(), "Outcome("))
}
