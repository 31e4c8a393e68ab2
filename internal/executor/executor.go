// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package executor runs asynchronous operations on behalf of a view and
// tracks their busy and error state.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrorKind classifies why an execution failed.
type ErrorKind int

const (
	// KindFailed means the operation returned an error.
	KindFailed ErrorKind = iota
	// KindPanicked means the operation panicked.
	KindPanicked
)

// String returns the name of the kind.
func (k ErrorKind) String() string {
	if k == KindPanicked {
		return "panicked"
	}
	return "failed"
}

// ErrUnknown is the cause recorded when an operation panics with a value
// that is not an error.
var ErrUnknown = errors.New("An error occurred")

// OperationError is the error produced by a failed execution.
type OperationError struct {
	Kind ErrorKind
	Err  error
}

// Error returns the cause's message unchanged so it can be shown to users.
func (e *OperationError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Notifier receives one error notification per failed execution.
// *toast.Notifier satisfies it.
type Notifier interface {
	Error(message string) int
}

// Options carries the per-call callbacks.
type Options[T any] struct {
	// OnSuccess runs with the result before Execute returns.
	OnSuccess func(T)
	// OnError runs with the failure before the error toast is shown.
	OnError func(error)
}

// Executor wraps an operation with busy tracking, error capture and
// notification. Overlapping calls are not serialised; they share Busy and
// LastError, so the most recent call to settle wins.
type Executor[T any] struct {
	notifier Notifier

	mu      sync.Mutex
	busy    bool
	lastErr error
}

// New creates an Executor that reports failures to notifier.
// A nil notifier disables notifications.
func New[T any](notifier Notifier) *Executor[T] {
	return &Executor[T]{notifier: notifier}
}

// Busy reports whether an execution is in flight.
func (e *Executor[T]) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// LastError returns the error of the most recent failed execution, or nil
// if the most recent execution has not failed.
func (e *Executor[T]) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Execute runs op and blocks until it settles.
//
// On success OnSuccess is invoked and the value returned. On failure the
// error is recorded, OnError is invoked, exactly one error toast is shown and
// the error is returned as *OperationError. Busy is false again on every path.
func (e *Executor[T]) Execute(ctx context.Context, op func(context.Context) (T, error), opts Options[T]) (T, error) {
	e.mu.Lock()
	e.busy = true
	e.lastErr = nil
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	value, err := e.run(ctx, op)
	if err == nil && opts.OnSuccess != nil {
		err = e.guard(func() { opts.OnSuccess(value) })
	}
	if err != nil {
		var zero T
		e.fail(err, opts.OnError)
		return zero, err
	}
	return value, nil
}

// run invokes op, converting a panic into an *OperationError.
func (e *Executor[T]) run(ctx context.Context, op func(context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()

	value, err = op(ctx)
	if err != nil {
		var opErr *OperationError
		if !errors.As(err, &opErr) {
			err = &OperationError{Kind: KindFailed, Err: err}
		}
	}
	return value, err
}

// guard runs a callback, converting a panic into an *OperationError.
func (e *Executor[T]) guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	fn()
	return nil
}

func (e *Executor[T]) fail(err error, onError func(error)) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()

	if onError != nil {
		if cbErr := e.guard(func() { onError(err) }); cbErr != nil {
			log.Printf("EXECUTOR_CALLBACK_PANIC | error=%v", cbErr)
		}
	}
	if e.notifier != nil {
		e.notifier.Error(err.Error())
	}
}

func recovered(r any) error {
	if err, ok := r.(error); ok {
		return &OperationError{Kind: KindPanicked, Err: err}
	}
	log.Printf("EXECUTOR_PANIC | value=%s", fmt.Sprint(r))
	return &OperationError{Kind: KindPanicked, Err: ErrUnknown}
}
