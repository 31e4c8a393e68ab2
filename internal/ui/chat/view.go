// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	session "github.com/rizkirmdhn1215/chatbot/internal/chat"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View implements tea.Model.
// Layout: header + transcript (viewport) + toast line + input + status bar.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.renderToasts(),
		m.renderInput(),
		m.renderStatusBar(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("AI Chat")
	meta := m.theme.Subtle.Render(" provider: " + m.session.Provider() + "  user: " + m.session.UserID())
	return m.theme.Header.Render(title + meta)
}

// renderTranscript renders every message of the session. AI replies are
// rendered as markdown and cached by index until the next resize or clear.
func (m *Model) renderTranscript() string {
	messages := m.session.Messages()
	if len(messages) == 0 {
		return m.theme.Subtle.Render("Start the conversation by typing a message below.")
	}

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case session.RoleUser:
			b.WriteString(m.theme.UserLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(m.theme.UserBubble.Width(m.bubbleWidth()).Render(msg.Content))
		default:
			b.WriteString(m.theme.AILabel.Render("AI"))
			b.WriteString("\n")
			b.WriteString(m.theme.AIBubble.Render(m.renderMarkdown(i, msg.Content)))
		}
	}
	return b.String()
}

func (m *Model) renderMarkdown(index int, content string) string {
	if out, ok := m.rendered[index]; ok {
		return out
	}
	out := content
	if m.renderer != nil {
		if r, err := m.renderer.Render(content); err == nil {
			out = strings.Trim(r, "\n")
		}
	}
	m.rendered[index] = out
	return out
}

func (m Model) bubbleWidth() int {
	return max(m.width-4, minWrapWidth)
}

func (m Model) renderToasts() string {
	if len(m.toasts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		parts = append(parts, m.theme.Toast(t))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderInput() string {
	if m.waiting {
		return m.spinner.View() + m.theme.Subtle.Render(" Waiting for a reply...")
	}
	return m.input.View()
}

func (m Model) renderStatusBar() string {
	return m.theme.StatusBar.Render(m.keys.ShortHelp())
}
