// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// MESSAGES
// =============================================================================

// replyMsg carries the outcome of a send back to Update.
type replyMsg struct {
	reply string
	err   error
}

// toastTickMsg triggers a refresh of the toast line.
type toastTickMsg time.Time

const toastRefresh = 250 * time.Millisecond

// =============================================================================
// COMMANDS
// =============================================================================

// sendCmd sends text through the session off the update loop.
func (m Model) sendCmd(text string) tea.Cmd {
	sess := m.session
	parent := m.ctx
	timeout := m.opts.Timeout

	return func() tea.Msg {
		if parent == nil {
			parent = context.Background()
		}
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		reply, err := sess.Send(ctx, text)
		return replyMsg{reply: reply, err: err}
	}
}

func toastTick() tea.Cmd {
	return tea.Tick(toastRefresh, func(t time.Time) tea.Msg {
		return toastTickMsg(t)
	})
}
