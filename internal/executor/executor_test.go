// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingNotifier) Error(message string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return len(r.messages)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func TestExecute_Success(t *testing.T) {
	notifier := &recordingNotifier{}
	exec := New[string](notifier)

	var busyDuring bool
	var got string
	value, err := exec.Execute(context.Background(), func(ctx context.Context) (string, error) {
		busyDuring = exec.Busy()
		return "hi there", nil
	}, Options[string]{OnSuccess: func(v string) { got = v }})

	require.NoError(t, err)
	assert.Equal(t, "hi there", value)
	assert.Equal(t, "hi there", got)
	assert.True(t, busyDuring)
	assert.False(t, exec.Busy())
	assert.NoError(t, exec.LastError())
	assert.Zero(t, notifier.count())
}

func TestExecute_FailureNotifiesOnce(t *testing.T) {
	notifier := &recordingNotifier{}
	exec := New[string](notifier)
	cause := errors.New("upstream unavailable")

	var seen error
	_, err := exec.Execute(context.Background(), func(ctx context.Context) (string, error) {
		return "", cause
	}, Options[string]{OnError: func(err error) { seen = err }})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "upstream unavailable", err.Error())

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, KindFailed, opErr.Kind)

	assert.Equal(t, err, seen)
	assert.Equal(t, err, exec.LastError())
	assert.False(t, exec.Busy())
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, "upstream unavailable", notifier.messages[0])
}

func TestExecute_PanicWithNonErrorIsCoerced(t *testing.T) {
	notifier := &recordingNotifier{}
	exec := New[int](notifier)

	_, err := exec.Execute(context.Background(), func(ctx context.Context) (int, error) {
		panic("something odd")
	}, Options[int]{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknown)
	assert.Equal(t, "An error occurred", err.Error())

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, KindPanicked, opErr.Kind)
	assert.False(t, exec.Busy())
	assert.Equal(t, 1, notifier.count())
}

func TestExecute_PanicWithErrorKeepsIt(t *testing.T) {
	exec := New[int](nil)
	cause := errors.New("typed panic")

	_, err := exec.Execute(context.Background(), func(ctx context.Context) (int, error) {
		panic(cause)
	}, Options[int]{})

	assert.ErrorIs(t, err, cause)
}

func TestExecute_OnSuccessPanicBecomesFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	exec := New[string](notifier)

	_, err := exec.Execute(context.Background(), func(ctx context.Context) (string, error) {
		return "ok", nil
	}, Options[string]{OnSuccess: func(string) { panic("render failed") }})

	require.Error(t, err)
	assert.False(t, exec.Busy())
	assert.Equal(t, 1, notifier.count())
}

func TestExecute_ResetsLastErrorOnNextCall(t *testing.T) {
	exec := New[string](nil)

	_, _ = exec.Execute(context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("first")
	}, Options[string]{})
	require.Error(t, exec.LastError())

	var during error
	_, err := exec.Execute(context.Background(), func(ctx context.Context) (string, error) {
		during = exec.LastError()
		return "second", nil
	}, Options[string]{})

	require.NoError(t, err)
	assert.NoError(t, during)
	assert.NoError(t, exec.LastError())
}

func TestExecute_ContextCancellation(t *testing.T) {
	notifier := &recordingNotifier{}
	exec := New[string](notifier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, func(ctx context.Context) (string, error) {
		return "", ctx.Err()
	}, Options[string]{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, notifier.count())
}
