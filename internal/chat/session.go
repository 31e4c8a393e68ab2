// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the state of one interactive chat session.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rizkirmdhn1215/chatbot/internal/executor"
	"github.com/rizkirmdhn1215/chatbot/internal/server"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// Role identifies who wrote a message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Message is one entry of the in-memory transcript.
type Message struct {
	Role    Role
	Content string
}

// =============================================================================
// SESSION
// =============================================================================

const (
	// SentMessage is toasted after a reply arrives.
	SentMessage = "Message sent successfully"

	// FailedMessage is toasted after a send fails, alongside the error itself.
	FailedMessage = "Failed to send message"
)

var (
	// ErrNoUser is returned by Send when no user id is set.
	ErrNoUser = errors.New("no user signed in")

	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// Sender delivers a chat request to the backend. *client.Client satisfies it.
type Sender interface {
	Chat(ctx context.Context, req server.ChatRequest) (string, error)
}

// Notifier shows transient messages. *toast.Notifier satisfies it.
type Notifier interface {
	Success(message string) int
	Error(message string) int
}

// Session is a chat transcript plus the executor that sends its messages.
// It is safe for use from the view loop and command goroutines at once.
type Session struct {
	sender   Sender
	notifier Notifier
	exec     *executor.Executor[string]
	provider string

	mu       sync.RWMutex
	userID   string
	messages []Message
}

// NewSession creates a session that sends through sender as userID using
// provider.
func NewSession(sender Sender, notifier Notifier, userID, provider string) *Session {
	return &Session{
		sender:   sender,
		notifier: notifier,
		exec:     executor.New[string](notifier),
		provider: provider,
		userID:   userID,
	}
}

// SetUser changes the user messages are sent as. An empty id signs out.
func (s *Session) SetUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = strings.TrimSpace(userID)
}

// UserID returns the current user id.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Provider returns the provider requests are sent to.
func (s *Session) Provider() string {
	return s.provider
}

// Send appends text to the transcript, requests a reply and appends it.
// Blank input or a missing user returns an error without contacting the
// backend. A failed request toasts twice: the error and FailedMessage.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	userID := s.UserID()
	if text == "" {
		return "", ErrEmptyMessage
	}
	if userID == "" {
		return "", ErrNoUser
	}

	s.append(Message{Role: RoleUser, Content: text})

	reply, err := s.exec.Execute(ctx, func(ctx context.Context) (string, error) {
		return s.sender.Chat(ctx, server.ChatRequest{
			Message:  text,
			Provider: s.provider,
			UserID:   userID,
		})
	}, executor.Options[string]{
		OnSuccess: func(string) {
			if s.notifier != nil {
				s.notifier.Success(SentMessage)
			}
		},
	})
	if err != nil {
		if s.notifier != nil {
			s.notifier.Error(FailedMessage)
		}
		return "", err
	}

	s.append(Message{Role: RoleAI, Content: reply})
	return reply, nil
}

func (s *Session) append(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
}

// Messages returns a copy of the transcript in chronological order.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear drops the transcript.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// Busy reports whether a send is in flight.
func (s *Session) Busy() bool {
	return s.exec.Busy()
}

// LastError returns the error of the most recent failed send.
func (s *Session) LastError() error {
	return s.exec.LastError()
}
