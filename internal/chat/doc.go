// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the state of one interactive chat session.
//
// A Session keeps the transcript and sends each message through an
// executor, so the view gets a busy flag, the last error and toasts without
// tracking any of it itself.
//
// # Usage
//
//	notifier := toast.New()
//	session := chat.NewSession(client.New(cfg), notifier, userID, "huggingface")
//	reply, err := session.Send(ctx, "hello")
package chat
