package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/dustin/go-humanize"

	"github.com/jwulff/vidchat/internal/render"
	"github.com/jwulff/vidchat/internal/session"
	"github.com/jwulff/vidchat/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// inputMode selects what the input bar is collecting.
type inputMode int

const (
	modeAsk inputMode = iota
	modeOpen
)

const (
	promptAsk  = "Ask> "
	promptOpen = "Video> "

	placeholderAsk  = "Ask anything about the video..."
	placeholderBusy = "Analyzing..."
	placeholderOpen = "Path to a video file (Esc to cancel)"

	// header + status + 2 dividers + input + footer
	reservedLines = 6
)

// Model is the root bubbletea model for the vidchat TUI.
type Model struct {
	// Session state
	sess     *session.Session
	analyzer session.Analyzer
	ctx      context.Context
	log      *slog.Logger
	baseURL  string

	// Input bar
	input textinput.Model
	mode  inputMode
	spin  spinner.Model

	// Transcript
	transcript viewport.Model
	renderer   *render.Renderer
	follow     bool

	// UI state
	width  int
	height int

	// Status
	statusText   string
	initialVideo string
}

// Option configures a Model.
type Option func(*Model)

// WithContext sets the context handed to analyze requests.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithLogger sets the model logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

// WithBaseURL shows the service address in the header.
func WithBaseURL(u string) Option {
	return func(m *Model) { m.baseURL = u }
}

// WithMarkdownStyle selects the glamour style for answers.
func WithMarkdownStyle(style string) Option {
	return func(m *Model) { m.renderer = render.New(style, m.width) }
}

// WithInitialVideo selects path as soon as the program starts.
func WithInitialVideo(path string) Option {
	return func(m *Model) { m.initialVideo = path }
}

// New creates a Model over sess that sends questions to analyzer.
func New(sess *session.Session, analyzer session.Analyzer, opts ...Option) Model {
	in := textinput.New()
	in.Prompt = promptAsk
	in.PromptStyle = ui.InputPromptStyle
	in.Placeholder = placeholderAsk
	in.CharLimit = 0
	in.Width = 60
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ui.SpinnerStyle

	m := Model{
		sess:       sess,
		analyzer:   analyzer,
		ctx:        context.Background(),
		log:        slog.New(slog.DiscardHandler),
		input:      in,
		spin:       s,
		transcript: viewport.New(80, 20),
		renderer:   render.New(render.StyleDark, 80),
		follow:     true,
		statusText: "Press Ctrl+O to open a video",
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

// Init selects the initial video, if one was given.
func (m Model) Init() tea.Cmd {
	if m.initialVideo == "" {
		return textinput.Blink
	}
	path := m.initialVideo
	return tea.Batch(textinput.Blink, func() tea.Msg {
		return SelectVideoMsg{Path: path}
	})
}

// askCmd runs the accepted request off the update loop.
func askCmd(ctx context.Context, req *session.Request, a session.Analyzer) tea.Cmd {
	return func() tea.Msg {
		res, err := req.Run(ctx, a)
		return AnswerMsg{Request: req, Result: res, Err: err}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case SelectVideoMsg:
		m.selectVideo(msg.Path)
		return m, nil

	case AnswerMsg:
		entry := msg.Request.Finish(msg.Result, msg.Err)
		if entry.Kind == session.KindError {
			m.statusText = "Request failed"
		} else {
			m.statusText = "Answered"
		}
		m.input.Placeholder = placeholderAsk
		m.follow = true
		m.refresh()
		cmd := m.input.Focus()
		return m, cmd

	case spinner.TickMsg:
		if !m.pending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit:
		return m, tea.Quit

	case KeyOpenVideo:
		if m.pending() || m.mode == modeOpen {
			return m, nil
		}
		m.mode = modeOpen
		m.input.Prompt = promptOpen
		m.input.Placeholder = placeholderOpen
		m.input.SetValue("")
		return m, nil

	case KeyCancel:
		if m.mode == modeOpen {
			m.leaveOpenMode()
			m.selectVideo("")
		}
		return m, nil

	case KeyEnter:
		if m.mode == modeOpen {
			path := strings.TrimSpace(m.input.Value())
			m.leaveOpenMode()
			m.selectVideo(path)
			return m, nil
		}
		return m.submitAsk()

	case KeyScrollUp, KeyScrollDown, KeyLineUp, KeyLineDown:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		m.follow = m.transcript.AtBottom()
		return m, cmd

	case KeyTop:
		m.transcript.GotoTop()
		m.follow = m.transcript.AtBottom()
		return m, nil

	case KeyBottom:
		m.transcript.GotoBottom()
		m.follow = true
		return m, nil
	}

	// The input bar is disabled while a request is outstanding.
	if m.pending() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submitAsk() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	if m.pending() || strings.TrimSpace(value) == "" {
		return *m, nil
	}

	req, err := m.sess.Begin(value)
	m.input.SetValue("")
	if err != nil {
		if !errors.Is(err, session.ErrNoVideo) {
			m.log.Debug("ask rejected", "err", err)
		}
		m.statusText = "Press Ctrl+O to open a video"
		m.follow = true
		m.refresh()
		return *m, nil
	}

	m.input.Blur()
	m.input.Placeholder = placeholderBusy
	m.statusText = "Analyzing..."
	m.follow = true
	m.refresh()
	return *m, tea.Batch(askCmd(m.ctx, req, m.analyzer), m.spin.Tick)
}

func (m *Model) selectVideo(path string) {
	if err := m.sess.SelectVideo(path); err != nil {
		if errors.Is(err, session.ErrRequestInFlight) {
			return
		}
		m.log.Debug("select video", "err", err)
		m.statusText = "No usable video selected"
	} else {
		m.statusText = "Ready"
	}
	m.follow = true
	m.refresh()
}

func (m *Model) leaveOpenMode() {
	m.mode = modeAsk
	m.input.Prompt = promptAsk
	m.input.Placeholder = placeholderAsk
	m.input.SetValue("")
}

func (m Model) pending() bool {
	return m.sess.Phase() == session.AwaitingAnswer
}

func (m *Model) resize() {
	m.transcript.Width = m.width
	m.transcript.Height = max(3, m.height-m.reserved())
	m.input.Width = max(10, m.width-len(m.input.Prompt)-2)
	m.renderer.SetWidth(m.width)
	m.refresh()
}

func (m Model) reserved() int {
	if m.sess.Snapshot().LastError != "" {
		return reservedLines + 1
	}
	return reservedLines
}

// refresh re-renders the transcript from the session.
func (m *Model) refresh() {
	snap := m.sess.Snapshot()
	if len(snap.Entries) == 0 {
		m.transcript.SetContent(ui.DimStyle.Render("  Press Ctrl+O to open a video, then ask a question."))
	} else {
		m.transcript.SetContent(m.renderer.Conversation(snap.Entries))
	}
	if m.height > 0 {
		m.transcript.Height = max(3, m.height-m.reserved())
	}
	if m.follow {
		m.transcript.GotoBottom()
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	snap := m.sess.Snapshot()
	divider := ui.DividerStyle.Render(strings.Repeat("─", m.width))

	sections := []string{
		m.renderHeader(snap),
		m.renderStatusBar(snap),
		divider,
		m.transcript.View(),
		divider,
	}
	if snap.LastError != "" {
		sections = append(sections, m.renderErrorBar(snap.LastError))
	}
	sections = append(sections, m.renderInput(snap), m.renderFooter(snap))

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader(snap session.Snapshot) string {
	title := ui.TitleStyle.Render("VIDCHAT")

	var video string
	if snap.Video != nil {
		video = ui.DimStyle.Render(" — " + snap.Video.Name + " (" + humanize.Bytes(uint64(snap.Video.Size)) + ")")
	}

	var host string
	if m.baseURL != "" {
		host = ui.DimStyle.Render("  " + m.baseURL)
	}

	return render.TruncateToWidth(title+video+host, m.width)
}

func (m Model) renderStatusBar(snap session.Snapshot) string {
	var dot string
	switch {
	case snap.Pending:
		dot = ui.PendingBadgeStyle.Render(m.spin.View() + " ANALYZING")
	case snap.Video != nil:
		dot = ui.ReadyBadgeStyle.Render("● READY")
	default:
		dot = ui.StatusStyle.Render("○ NO VIDEO")
	}

	status := "  " + ui.StatusStyle.Render(m.statusText)

	var remote string
	if snap.RemoteVideoURI != "" {
		remote = "  " + ui.DimStyle.Render(snap.RemoteVideoURI)
	}

	var scroll string
	if !m.follow {
		scroll = "  " + ui.PendingBadgeStyle.Render("SCROLL")
	}

	return dot + status + remote + scroll
}

func (m Model) renderErrorBar(msg string) string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(msg)
}

func (m Model) renderInput(snap session.Snapshot) string {
	if snap.Pending {
		return m.spin.View() + " " + ui.DimStyle.Render(placeholderBusy)
	}
	return m.input.View()
}

func (m Model) renderFooter(snap session.Snapshot) string {
	var parts []string

	if m.mode == modeOpen {
		parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Open"))
		parts = append(parts, ui.FooterKeyStyle.Render("Esc")+ui.FooterDescStyle.Render(" Cancel"))
	} else if !snap.Pending {
		parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Ask"))
		parts = append(parts, ui.FooterKeyStyle.Render("Ctrl+O")+ui.FooterDescStyle.Render(" Open video"))
	}
	parts = append(parts, ui.FooterKeyStyle.Render("↑↓/PgUp/PgDn")+ui.FooterDescStyle.Render(" Scroll"))
	parts = append(parts, ui.FooterKeyStyle.Render("Ctrl+C")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}
