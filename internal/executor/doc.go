// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package executor runs asynchronous operations on behalf of a view.
//
// # Key Types
//
//   - Executor: Busy flag, last error and one error toast per failure
//   - OperationError: Failure wrapper carrying an ErrorKind
//   - Options: OnSuccess / OnError callbacks
//
// # Usage
//
//	exec := executor.New[string](notifier)
//	reply, err := exec.Execute(ctx, func(ctx context.Context) (string, error) {
//	    return api.Chat(ctx, req)
//	}, executor.Options[string]{OnSuccess: appendReply})
package executor
