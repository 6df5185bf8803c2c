// Package render turns conversation entries into terminal text.
package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jwulff/vidchat/internal/session"
	"github.com/jwulff/vidchat/internal/ui"
)

// Glamour style names accepted by New.
const (
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
)

const indent = "  "

// Renderer formats entries for a given terminal width. Assistant answers
// are rendered as markdown.
type Renderer struct {
	style string
	width int
	md    *glamour.TermRenderer
}

// New returns a renderer using the named glamour style.
func New(style string, width int) *Renderer {
	if style == "" {
		style = StyleDark
	}
	r := &Renderer{style: style}
	r.SetWidth(width)
	return r
}

// SetWidth rebuilds the markdown renderer when the width changes.
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		width = 80
	}
	if width == r.width && r.md != nil {
		return
	}
	r.width = width

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(max(20, width-len(indent)*2)),
	)
	if err != nil {
		r.md = nil
		return
	}
	r.md = md
}

// Width returns the current wrap width.
func (r *Renderer) Width() int { return r.width }

// Conversation renders all entries separated by blank lines.
func (r *Renderer) Conversation(entries []session.Entry) string {
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		blocks = append(blocks, r.Entry(e))
	}
	return strings.Join(blocks, "\n\n")
}

// Entry renders a single entry.
func (r *Renderer) Entry(e session.Entry) string {
	ts := ui.TimestampStyle.Render(e.CreatedAt.Format("[15:04:05]"))
	textWidth := max(10, r.width-len(indent)*2)

	switch e.Kind {
	case session.KindUser:
		head := ts + " " + ui.UserLabelStyle.Render("You")
		return head + "\n" + indentLines(wrapText(e.Text, textWidth), ui.UserTextStyle)

	case session.KindAssistant:
		head := ts + " " + ui.AssistantLabelStyle.Render("Assistant")
		out := head + "\n" + r.markdown(e.Text, textWidth)
		if len(e.Media) > 0 {
			out += "\n" + r.media(e, textWidth)
		}
		return out

	case session.KindInfo:
		return indentLines(wrapText(e.Text, textWidth), ui.InfoStyle)

	case session.KindError:
		lines := wrapText(e.Text, textWidth-len("Error: "))
		lines[0] = ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(lines[0])
		for i := 1; i < len(lines); i++ {
			lines[i] = ui.ErrorTextStyle.Render(lines[i])
		}
		return indent + strings.Join(lines, "\n"+indent)
	}

	return indentLines(wrapText(e.Text, textWidth), lipgloss.NewStyle())
}

func (r *Renderer) markdown(text string, width int) string {
	if r.md != nil {
		out, err := r.md.Render(text)
		if err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return indentLines(wrapText(text, width), lipgloss.NewStyle())
}

func (r *Renderer) media(e session.Entry, width int) string {
	lines := []string{indent + ui.DimStyle.Render("Relevant frames:")}
	for _, m := range e.Media {
		desc := m.Description
		if desc == "" {
			desc = "(no description)"
		}
		wrapped := wrapText(desc, max(10, width-len(m.Timestamp)-6))
		lines = append(lines, indent+"▸ "+ui.MediaTimestampStyle.Render(m.Timestamp)+"  "+wrapped[0])
		for _, wl := range wrapped[1:] {
			lines = append(lines, indent+strings.Repeat(" ", len(m.Timestamp)+4)+wl)
		}
		if m.ImageURL != "" {
			lines = append(lines, indent+"  "+ui.MediaURLStyle.Render(TruncateToWidth(m.ImageURL, width-2)))
		}
	}
	return strings.Join(lines, "\n")
}

func indentLines(lines []string, style lipgloss.Style) string {
	for i, l := range lines {
		lines[i] = indent + style.Render(l)
	}
	return strings.Join(lines, "\n")
}

// TruncateToWidth shortens s to width visible cells with an ellipsis.
// ANSI styling in s is preserved.
func TruncateToWidth(s string, width int) string {
	if width <= 1 {
		return s
	}
	return ansi.Truncate(s, width, "…")
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
