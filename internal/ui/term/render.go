// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package term

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/jeranaias/shopchat/internal/catalog"
	"github.com/jeranaias/shopchat/internal/chat"
	"github.com/jeranaias/shopchat/internal/model"
)

// =============================================================================
// PALETTE
// =============================================================================

var (
	purple        = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	cyan          = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	emerald       = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	rose          = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	amber         = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	overlay       = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#45475A"}
	textSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	textMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
)

// maxCardWidth caps product cards on wide terminals.
const maxCardWidth = 60

// =============================================================================
// RENDERER
// =============================================================================

// Renderer turns transcript entries into terminal text.
type Renderer struct {
	width int
	md    *glamour.TermRenderer

	user    lipgloss.Style
	notice  lipgloss.Style
	errText lipgloss.Style
	card    lipgloss.Style
	title   lipgloss.Style
	brand   lipgloss.Style
	price   lipgloss.Style
	link    lipgloss.Style
	dim     lipgloss.Style
}

// NewRenderer creates a renderer for output written to w with the given
// width and colour profile. Markdown is rendered only when profile has
// colour.
func NewRenderer(w io.Writer, width int, profile termenv.Profile) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	if width < MinWidth {
		width = MinWidth
	}

	lg := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	lg.SetColorProfile(profile)
	if profile == termenv.Ascii {
		lg.SetHasDarkBackground(true)
	}

	r := &Renderer{
		width:   width,
		user:    lg.NewStyle().Foreground(cyan).Bold(true),
		notice:  lg.NewStyle().Foreground(purple),
		errText: lg.NewStyle().Foreground(rose).Bold(true),
		card: lg.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(overlay).
			Padding(0, 1),
		title: lg.NewStyle().Bold(true),
		brand: lg.NewStyle().Foreground(textSecondary),
		price: lg.NewStyle().Foreground(emerald).Bold(true),
		link:  lg.NewStyle().Foreground(amber).Underline(true),
		dim:   lg.NewStyle().Foreground(textMuted),
	}

	if profile != termenv.Ascii {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width-4),
		)
		if err == nil {
			r.md = md
		}
	}
	return r
}

// Width returns the layout width.
func (r *Renderer) Width() int {
	return r.width
}

// Message renders one transcript entry.
func (r *Renderer) Message(m model.DisplayMessage) string {
	switch m.Kind {
	case model.KindUser:
		return r.user.Render("You: ") + Wrap(m.Content, r.width-5)
	case model.KindAssistantProducts:
		return r.Cards(m.Products)
	case model.KindNotice:
		return r.notice.Render(Wrap(m.Content, r.width))
	case model.KindError:
		return r.errText.Render(Wrap(m.Content, r.width))
	default:
		return r.Markdown(m.Content)
	}
}

// Transcript renders entries separated by blank lines.
func (r *Renderer) Transcript(msgs []model.DisplayMessage) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, r.Message(m))
	}
	return strings.Join(parts, "\n\n")
}

// Markdown renders assistant prose. Without colour, or if glamour fails,
// the text is only wrapped.
func (r *Renderer) Markdown(text string) string {
	if r.md != nil {
		if out, err := r.md.Render(text); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return Wrap(text, r.width)
}

// Cards renders products as numbered cards, one under the other.
func (r *Renderer) Cards(products []catalog.Product) string {
	cards := make([]string, 0, len(products))
	for i, p := range products {
		cards = append(cards, r.Card(i+1, p))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// Card renders a single product.
func (r *Renderer) Card(n int, p catalog.Product) string {
	w := min(r.width, maxCardWidth)
	inner := w - 4 // border and padding

	lines := []string{
		r.title.Render(Truncate(fmt.Sprintf("%d. %s", n, p.Name), inner)),
	}
	if p.Brand != "" {
		lines = append(lines, r.brand.Render(Truncate(p.Brand, inner)))
	}
	if p.Price != "" {
		lines = append(lines, r.price.Render(p.Price))
	}
	if p.ProductLink != "" {
		lines = append(lines, r.link.Render(Truncate(p.ProductLink, inner)))
	}
	return r.card.Width(w - 2).Render(strings.Join(lines, "\n"))
}

// Stats renders the session usage footer.
func (r *Renderer) Stats(st chat.UsageStats) string {
	if st.TotalCalls == 0 {
		return r.dim.Render("No calls yet")
	}
	line := fmt.Sprintf("%d calls | $%.4f total | %s (%s)",
		st.TotalCalls, st.TotalCost, st.CurrentModel, st.CurrentBackend)
	if last := st.LastCall; last != nil {
		line += fmt.Sprintf(" | last: %d in / %d out, %.2fs", last.InputTokens, last.OutputTokens, last.Time)
	}
	return r.dim.Render(Truncate(line, r.width))
}

// =============================================================================
// TEXT HELPERS
// =============================================================================

// Truncate shortens s to at most width terminal cells, marking the cut
// with an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// Wrap breaks text on word boundaries so no line exceeds width cells.
// Words wider than width are left on their own line. Existing newlines
// are kept.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var b strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		if runewidth.StringWidth(line) <= width {
			b.WriteString(line)
			continue
		}

		col := 0
		for j, word := range strings.Fields(line) {
			ww := runewidth.StringWidth(word)
			switch {
			case j == 0:
			case col+1+ww > width:
				b.WriteByte('\n')
				col = 0
			default:
				b.WriteByte(' ')
				col++
			}
			b.WriteString(word)
			col += ww
		}
	}
	return b.String()
}
