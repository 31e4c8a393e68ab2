// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rizkirmdhn1215/chatbot/internal/executor"
	"github.com/rizkirmdhn1215/chatbot/internal/server"
)

type fakeSender struct {
	reply string
	err   error

	mu       sync.Mutex
	requests []server.ChatRequest
	busy     func() bool
	sawBusy  bool
}

func (f *fakeSender) Chat(ctx context.Context, req server.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.busy != nil {
		f.sawBusy = f.busy()
	}
	return f.reply, f.err
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(message string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
	return len(n.successes)
}

func (n *recordingNotifier) Error(message string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
	return len(n.errors)
}

func TestSession_Send(t *testing.T) {
	sender := &fakeSender{reply: "hi there"}
	notifier := &recordingNotifier{}
	s := NewSession(sender, notifier, "u1", "huggingface")
	sender.busy = s.Busy

	reply, err := s.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)

	require.Len(t, sender.requests, 1)
	assert.Equal(t, server.ChatRequest{Message: "hello", Provider: "huggingface", UserID: "u1"}, sender.requests[0])
	assert.True(t, sender.sawBusy)
	assert.False(t, s.Busy())

	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAI, Content: "hi there"},
	}, s.Messages())
	assert.Equal(t, []string{SentMessage}, notifier.successes)
	assert.Empty(t, notifier.errors)
}

func TestSession_SendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("Error: No response generated")}
	notifier := &recordingNotifier{}
	s := NewSession(sender, notifier, "u1", "cohere")

	_, err := s.Send(context.Background(), "hello")
	require.Error(t, err)

	var opErr *executor.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, executor.KindFailed, opErr.Kind)
	assert.Equal(t, err, s.LastError())

	assert.Equal(t, []string{"Error: No response generated", FailedMessage}, notifier.errors)
	assert.Empty(t, notifier.successes)

	// The user message stays in the transcript.
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hello"}}, s.Messages())
}

func TestSession_SendGuards(t *testing.T) {
	sender := &fakeSender{reply: "x"}
	notifier := &recordingNotifier{}
	s := NewSession(sender, notifier, "", "huggingface")

	_, err := s.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoUser)

	s.SetUser(" u2 ")
	assert.Equal(t, "u2", s.UserID())

	_, err = s.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	assert.Empty(t, sender.requests)
	assert.Empty(t, s.Messages())
	assert.Empty(t, notifier.errors)
}

func TestSession_Clear(t *testing.T) {
	s := NewSession(&fakeSender{reply: "pong"}, nil, "u1", "cohere")

	_, err := s.Send(context.Background(), "ping")
	require.NoError(t, err)
	require.Len(t, s.Messages(), 2)

	s.Clear()
	assert.Empty(t, s.Messages())
	assert.Equal(t, "cohere", s.Provider())
}
