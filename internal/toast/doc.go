// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package toast provides process-wide transient notifications.
//
// # Key Types
//
//   - Notifier: Owns visible toasts and their auto-dismiss timers
//   - Toast: A single notification (message, kind, lifetime)
//   - Kind: success, error or info
//
// # Usage
//
//	n := toast.New(toast.WithDuration(3 * time.Second))
//	defer n.Close()
//
//	id := n.Error("Failed to send message")
//	n.Dismiss(id) // optional, toasts disappear on their own
package toast
