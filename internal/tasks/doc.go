// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs best-effort background work on a bounded worker pool.
//
// The chat server uses it to persist conversations after the response has
// been written. A failed task is logged and counted, never returned to the
// caller that submitted it.
//
// # Key Types
//
//   - Task: One unit of work with status and timing
//   - Queue: Bounded buffer drained by a fixed number of workers
//   - Stats: Submitted, completed, failed and dropped counters
//
// # Usage
//
//	queue := tasks.NewQueue(256, 2, tasks.WithEventPrefix("PERSIST"))
//	defer queue.Close(ctx)
//
//	_, err := queue.Submit("persist", func(ctx context.Context) error {
//	    _, err := store.Append(ctx, rec)
//	    return err
//	})
//	if errors.Is(err, tasks.ErrQueueFull) {
//	    // the record was dropped and logged
//	}
package tasks
