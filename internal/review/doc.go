// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package review lists stored conversations and collects training examples.
//
// # Key Types
//
//   - Board: Loads conversations newest first and adds training examples
//   - Backend: The API calls the board makes; *client.Client satisfies it
//
// # Usage
//
//	board := review.NewBoard(apiClient, notifier)
//	records, err := board.Load(ctx, "")
//	fmt.Println(review.Render(theme, records, review.RenderOptions{Width: 100}))
package review
