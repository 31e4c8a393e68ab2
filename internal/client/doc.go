// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client talks to the chat backend over HTTP.
//
// It is used by the terminal chat view, the review listing and the train
// command. Backend failures come back as *ClientError whose Error() is the
// server's own "Error: ..." text, so it can be shown to the user as is.
//
// # Usage
//
//	c := client.New(client.Config{BaseURL: cfg.Client.ServerURL})
//	reply, err := c.Chat(ctx, server.ChatRequest{
//	    Message:  "hello",
//	    Provider: "huggingface",
//	    UserID:   userID,
//	})
package client
