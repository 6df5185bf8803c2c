package render

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"

	"github.com/jwulff/vidchat/internal/analysis"
	"github.com/jwulff/vidchat/internal/session"
)

var at = time.Date(2026, 10, 19, 14, 5, 9, 0, time.UTC)

func TestRenderUserEntry(t *testing.T) {
	r := New(StyleNoTTY, 80)
	out := r.Entry(session.Entry{Kind: session.KindUser, Text: "What color is the car?", CreatedAt: at})

	assert.Contains(t, out, "[14:05:09]")
	assert.Contains(t, out, "You")
	assert.Contains(t, out, "What color is the car?")
}

func TestRenderErrorEntry(t *testing.T) {
	r := New(StyleNoTTY, 80)
	out := r.Entry(session.Entry{Kind: session.KindError, Text: "model unavailable", CreatedAt: at})

	assert.Contains(t, out, "Error: ")
	assert.Contains(t, out, "model unavailable")
}

func TestRenderAssistantWithMedia(t *testing.T) {
	r := New(StyleNoTTY, 80)
	out := r.Entry(session.Entry{
		Kind: session.KindAssistant,
		Text: "Red",
		Media: []analysis.Occurrence{
			{ImageURL: "https://img/1.jpg", Description: "car parked", Timestamp: "00:03"},
			{Timestamp: "00:09"},
		},
		CreatedAt: at,
	})

	assert.Contains(t, out, "Assistant")
	assert.Contains(t, out, "Red")
	assert.Contains(t, out, "Relevant frames:")
	assert.Contains(t, out, "00:03")
	assert.Contains(t, out, "car parked")
	assert.Contains(t, out, "https://img/1.jpg")
	assert.Contains(t, out, "(no description)")
}

func TestRenderAssistantWithoutMedia(t *testing.T) {
	r := New(StyleNoTTY, 80)
	out := r.Entry(session.Entry{Kind: session.KindAssistant, Text: "Red", Media: []analysis.Occurrence{}, CreatedAt: at})

	assert.NotContains(t, out, "Relevant frames:")
}

func TestRenderConversationKeepsOrder(t *testing.T) {
	r := New(StyleNoTTY, 80)
	out := r.Conversation([]session.Entry{
		{Kind: session.KindInfo, Text: "first", CreatedAt: at},
		{Kind: session.KindUser, Text: "second", CreatedAt: at},
		{Kind: session.KindError, Text: "third", CreatedAt: at},
	})

	i1 := strings.Index(out, "first")
	i2 := strings.Index(out, "second")
	i3 := strings.Index(out, "third")
	assert.True(t, i1 >= 0 && i1 < i2 && i2 < i3, out)
}

func TestSetWidthDefaults(t *testing.T) {
	r := New("", 0)
	assert.Equal(t, 80, r.Width())
	r.SetWidth(120)
	assert.Equal(t, 120, r.Width())
}

func TestWrapText(t *testing.T) {
	lines := wrapText("the quick brown fox jumps", 10)
	assert.Equal(t, []string{"the quick", "brown fox", "jumps"}, lines)

	assert.Equal(t, []string{"a", "", "b"}, wrapText("a\n\nb", 10))
	assert.Equal(t, []string{""}, wrapText("", 10))
}

func TestTruncateToWidth(t *testing.T) {
	assert.Equal(t, "abcd…", TruncateToWidth("abcdefgh", 5))
	assert.Equal(t, "abc", TruncateToWidth("abc", 5))
}

func TestTruncateToWidthKeepsEscapesWhole(t *testing.T) {
	styled := "\x1b[1;35mVIDCHAT\x1b[0m\x1b[2m clip.mp4 (12 MB)\x1b[0m"

	out := TruncateToWidth(styled, 10)
	assert.Equal(t, 10, lipgloss.Width(out))
	assert.True(t, strings.HasPrefix(out, "\x1b[1;35mVIDCHAT\x1b[0m"), "%q", out)
	assert.NotContains(t, out, "\x1b[2\x1b", "escape sequence was split")
	assert.Equal(t, "VIDCHAT c…", ansi.Strip(out))
}
