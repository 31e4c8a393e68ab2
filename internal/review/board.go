// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package review lists stored conversations and collects training examples.
package review

import (
	"context"
	"errors"
	"sync"

	"github.com/rizkirmdhn1215/chatbot/internal/executor"
	"github.com/rizkirmdhn1215/chatbot/internal/storage"
	"github.com/rizkirmdhn1215/chatbot/internal/util"
)

const (
	// AddedMessage is toasted after a training example is stored.
	AddedMessage = "Training data added successfully!"

	// AddFailedMessage is toasted after storing a training example fails.
	AddFailedMessage = "Error adding training data"
)

// ErrIncompleteExample is returned when the prompt or response is blank.
var ErrIncompleteExample = errors.New("both a prompt and an expected response are required")

// Backend is the part of the API client the board needs.
// *client.Client satisfies it.
type Backend interface {
	ListConversations(ctx context.Context, userID string) ([]storage.Record, error)
	AddTrainingExample(ctx context.Context, ex storage.TrainingExample) (string, error)
}

// Notifier shows transient messages. *toast.Notifier satisfies it.
type Notifier interface {
	Success(message string) int
	Error(message string) int
}

// Board holds the most recently loaded conversations.
type Board struct {
	backend  Backend
	notifier Notifier
	loader   *executor.Executor[[]storage.Record]
	adder    *executor.Executor[string]

	mu      sync.RWMutex
	records []storage.Record
}

// NewBoard creates a board backed by backend.
func NewBoard(backend Backend, notifier Notifier) *Board {
	return &Board{
		backend:  backend,
		notifier: notifier,
		loader:   executor.New[[]storage.Record](notifier),
		adder:    executor.New[string](notifier),
	}
}

// Load fetches the conversations of userID, or all of them when userID is
// empty, and keeps them newest first.
func (b *Board) Load(ctx context.Context, userID string) ([]storage.Record, error) {
	records, err := b.loader.Execute(ctx, func(ctx context.Context) ([]storage.Record, error) {
		return b.backend.ListConversations(ctx, userID)
	}, executor.Options[[]storage.Record]{})
	if err != nil {
		return nil, err
	}

	storage.SortNewestFirst(records)

	b.mu.Lock()
	b.records = records
	b.mu.Unlock()
	return records, nil
}

// Records returns the last loaded conversations.
func (b *Board) Records() []storage.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]storage.Record, len(b.records))
	copy(out, b.records)
	return out
}

// AddTrainingExample stores a prompt and its expected response and returns
// the new id. Blank fields are rejected before the backend is called.
func (b *Board) AddTrainingExample(ctx context.Context, prompt, response string) (string, error) {
	ex := storage.TrainingExample{
		UserMessage: util.NormalizeText(prompt),
		AIResponse:  util.NormalizeText(response),
	}
	if ex.UserMessage == "" || ex.AIResponse == "" {
		return "", ErrIncompleteExample
	}

	id, err := b.adder.Execute(ctx, func(ctx context.Context) (string, error) {
		return b.backend.AddTrainingExample(ctx, ex)
	}, executor.Options[string]{
		OnSuccess: func(string) {
			if b.notifier != nil {
				b.notifier.Success(AddedMessage)
			}
		},
		OnError: func(error) {
			if b.notifier != nil {
				b.notifier.Error(AddFailedMessage)
			}
		},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Busy reports whether a load or an add is in flight.
func (b *Board) Busy() bool {
	return b.loader.Busy() || b.adder.Busy()
}
