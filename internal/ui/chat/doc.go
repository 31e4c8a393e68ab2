// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the interactive chat view for the terminal UI.
//
// The view wraps a chat session: typed messages are sent off the update
// loop, AI replies are rendered as markdown with glamour, and toasts from
// the shared notifier are shown above the input line.
//
// # Key Types
//
//   - Model: Bubble Tea model for the chat screen
//   - KeyMap: Keyboard bindings
//
// # Usage
//
//	m := chat.New(ctx, session, notifier, styles.NewTheme(noColor), chat.Options{})
//	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
package chat
