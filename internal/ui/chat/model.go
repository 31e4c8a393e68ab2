// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	session "github.com/rizkirmdhn1215/chatbot/internal/chat"
	"github.com/rizkirmdhn1215/chatbot/internal/toast"
	"github.com/rizkirmdhn1215/chatbot/internal/ui/styles"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds a single send.
	DefaultTimeout = 2 * time.Minute

	// Rows taken by everything except the transcript:
	// header (3) + toast (1) + input (1) + status (1) + gaps (2).
	chromeHeight = 8

	minWrapWidth = 20
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures the chat view.
type Options struct {
	// NoColor renders markdown without ANSI styling.
	NoColor bool
	// Timeout bounds a single send; zero uses DefaultTimeout.
	Timeout time.Duration
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctx      context.Context
	session  *session.Session
	notifier *toast.Notifier
	theme    *styles.Theme
	keys     KeyMap
	opts     Options

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Markdown renderer for AI replies, rebuilt on resize.
	renderer *glamour.TermRenderer
	rendered map[int]string

	width   int
	height  int
	ready   bool
	waiting bool
	toasts  []toast.Toast
}

// New creates the chat view for sess. Outcomes are reported through
// notifier and shown on the toast line.
func New(ctx context.Context, sess *session.Session, notifier *toast.Notifier, theme *styles.Theme, opts Options) Model {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.AILabel

	return Model{
		ctx:      ctx,
		session:  sess,
		notifier: notifier,
		theme:    theme,
		keys:     DefaultKeyMap(),
		opts:     opts,
		input:    input,
		spinner:  sp,
		rendered: make(map[int]string),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, toastTick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case replyMsg:
		return m.handleReply(msg), nil

	case toastTickMsg:
		m.toasts = m.activeToasts()
		return m, toastTick()

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	vpHeight := max(msg.Height-chromeHeight, 1)
	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.Width = max(msg.Width-4, 1)

	m.renderer = newRenderer(msg.Width-4, m.opts.NoColor)
	m.rendered = make(map[int]string)
	m.refresh()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Clear):
		if m.waiting {
			return m, nil
		}
		m.session.Clear()
		m.rendered = make(map[int]string)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a send for the current input. Blank input and sends while
// another is in flight are ignored.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	if m.session.UserID() == "" {
		if m.notifier != nil {
			m.notifier.Error(session.ErrNoUser.Error())
		}
		m.toasts = m.activeToasts()
		return m, nil
	}

	m.input.Reset()
	m.input.Blur()
	m.waiting = true
	return m, tea.Batch(m.sendCmd(text), m.spinner.Tick)
}

func (m Model) handleReply(msg replyMsg) Model {
	m.waiting = false
	m.input.Focus()
	m.toasts = m.activeToasts()
	if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
		log.Printf("CHAT_SEND_FAILED | user=%s err=%v", m.session.UserID(), msg.err)
	}
	m.refresh()
	return m
}

// refresh re-renders the transcript into the viewport and scrolls to the end.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) activeToasts() []toast.Toast {
	if m.notifier == nil {
		return nil
	}
	return m.notifier.Active()
}

// newRenderer builds the markdown renderer for AI replies. A nil renderer
// means replies are shown as plain text.
func newRenderer(width int, noColor bool) *glamour.TermRenderer {
	width = max(width, minWrapWidth)

	style := glamour.WithAutoStyle()
	if noColor {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		log.Printf("MARKDOWN_RENDERER_FAILED | err=%v", err)
		return nil
	}
	return r
}
