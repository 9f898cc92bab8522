// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package term

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/shopchat/internal/catalog"
	"github.com/jeranaias/shopchat/internal/chat"
	"github.com/jeranaias/shopchat/internal/model"
	"github.com/jeranaias/shopchat/internal/proxy"
	"github.com/jeranaias/shopchat/internal/router"
)

func plainRenderer(width int) *Renderer {
	return NewRenderer(&bytes.Buffer{}, width, termenv.Ascii)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "", Truncate("anything", 0))

	got := Truncate("Waterproof Hiking Boot", 10)
	assert.LessOrEqual(t, runewidth.StringWidth(got), 10)
	assert.True(t, strings.HasSuffix(got, "…"))

	// Wide runes count double.
	wide := Truncate("靴靴靴靴靴靴", 7)
	assert.LessOrEqual(t, runewidth.StringWidth(wide), 7)
}

func TestWrap(t *testing.T) {
	text := "These trainers have a breathable mesh upper and a cushioned sole"
	wrapped := Wrap(text, 20)

	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, runewidth.StringWidth(line), 20, "line %q", line)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(wrapped), "no words lost")

	assert.Equal(t, "a\nb", Wrap("a\nb", 20), "existing newlines kept")
	assert.Equal(t, "unbreakableword", Wrap("unbreakableword", 5))
}

func TestNewRenderer_ClampsWidth(t *testing.T) {
	assert.Equal(t, DefaultWidth, plainRenderer(0).Width())
	assert.Equal(t, MinWidth, plainRenderer(10).Width())
	assert.Equal(t, 120, plainRenderer(120).Width())
}

func TestCard(t *testing.T) {
	r := plainRenderer(100)
	p := catalog.Product{
		ID:          "product_1",
		Name:        "Trail Runner Pro",
		Brand:       "Acme",
		Price:       "£59.99",
		ProductLink: "https://www.amazon.co.uk/dp/B01",
	}

	card := r.Card(1, p)
	assert.Contains(t, card, "1. Trail Runner Pro")
	assert.Contains(t, card, "Acme")
	assert.Contains(t, card, "£59.99")
	assert.Contains(t, card, "https://www.amazon.co.uk/dp/B01")

	for _, line := range strings.Split(card, "\n") {
		assert.LessOrEqual(t, runewidth.StringWidth(stripANSI(line)), maxCardWidth)
	}
}

func TestCard_LongNameIsTruncated(t *testing.T) {
	r := plainRenderer(MinWidth)
	card := r.Card(3, catalog.Product{Name: strings.Repeat("Extremely Long Shoe Name ", 5)})

	assert.Contains(t, card, "…")
	for _, line := range strings.Split(card, "\n") {
		assert.LessOrEqual(t, runewidth.StringWidth(stripANSI(line)), MinWidth)
	}
}

func TestMessage(t *testing.T) {
	r := plainRenderer(80)

	user := r.Message(model.NewDisplayMessage(model.KindUser, "running shoes please"))
	assert.Contains(t, user, "You: ")
	assert.Contains(t, user, "running shoes please")

	errMsg := r.Message(model.NewDisplayMessage(model.KindError, chat.ErrorMessage))
	assert.Contains(t, errMsg, chat.ErrorMessage)

	text := r.Message(model.NewDisplayMessage(model.KindAssistantText, "No match, tell me your size."))
	assert.Contains(t, text, "No match, tell me your size.")

	products := r.Message(model.NewProductsMessage([]catalog.Product{
		{ID: "product_1", Name: "First"},
		{ID: "product_2", Name: "Second"},
	}))
	assert.Contains(t, products, "1. First")
	assert.Contains(t, products, "2. Second")
	assert.Less(t, strings.Index(products, "First"), strings.Index(products, "Second"))
}

func TestTranscript(t *testing.T) {
	r := plainRenderer(80)
	out := r.Transcript([]model.DisplayMessage{
		model.NewDisplayMessage(model.KindNotice, chat.WelcomeMessage),
		model.NewDisplayMessage(model.KindUser, "hi"),
	})
	require.Contains(t, out, "\n\n")
	assert.Less(t, strings.Index(out, "Rufus"), strings.Index(out, "hi"))
}

func TestStats(t *testing.T) {
	r := plainRenderer(120)
	assert.Contains(t, r.Stats(chat.UsageStats{}), "No calls yet")

	out := r.Stats(chat.UsageStats{
		TotalCalls:     2,
		TotalCost:      0.0123,
		CurrentModel:   "gpt-4o-mini",
		CurrentBackend: router.BackendOpenAI,
		LastCall:       &proxy.Stats{InputTokens: 120, OutputTokens: 45, Time: 1.5},
	})
	assert.Contains(t, out, "2 calls")
	assert.Contains(t, out, "$0.0123")
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, "120 in / 45 out")
}

func TestProfile_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("FORCE_COLOR", "1")
	assert.False(t, ColorsEnabled(nil))
	assert.Equal(t, termenv.Ascii, Profile(nil))
}

func TestColorsEnabled_NonTTY(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("FORCE_COLOR", "")
	assert.False(t, ColorsEnabled(nil))
	assert.Equal(t, DefaultWidth, Width(nil))
}

// stripANSI drops SGR escape sequences.
func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc && r == 'm':
			inEsc = false
		case !inEsc:
			b.WriteRune(r)
		}
	}
	return b.String()
}
