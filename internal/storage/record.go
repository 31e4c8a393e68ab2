// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// ProviderManual marks training examples entered by an administrator.
const ProviderManual = "manual"

// Record is one persisted exchange. Records are never mutated after they
// are written.
type Record struct {
	ID             string    `json:"id" db:"id"`
	UserMessage    string    `json:"userMessage" db:"user_message"`
	AIResponse     string    `json:"aiResponse" db:"ai_response"`
	Provider       string    `json:"provider" db:"provider"`
	UserID         string    `json:"userId,omitempty" db:"user_id"`
	IsTrainingData bool      `json:"isTrainingData" db:"is_training_data"`
	Timestamp      time.Time `json:"timestamp" db:"created_at"`
}

// TrainingExample is a prompt/response pair added for future training.
type TrainingExample struct {
	UserMessage string `json:"userMessage"`
	AIResponse  string `json:"aiResponse"`
}

// Store is the conversation persistence contract. Implementations give no
// ordering guarantee on query results; use SortNewestFirst.
type Store interface {
	// Append writes rec and returns its id.
	Append(ctx context.Context, rec Record) (string, error)
	// AppendTraining writes a training example and returns its id.
	AppendTraining(ctx context.Context, ex TrainingExample) (string, error)
	// QueryByUser returns the records carrying userID; never nil.
	QueryByUser(ctx context.Context, userID string) ([]Record, error)
	// QueryAll returns every record; never nil.
	QueryAll(ctx context.Context) ([]Record, error)
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

// StoreError represents a storage-related error.
// It can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrInvalidRecord is returned when a record lacks a message or response.
	ErrInvalidRecord = &StoreError{Message: "record requires a user message and an AI response"}

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = &StoreError{Message: "store is closed"}

	// ErrUnknownDriver is returned by Open for unsupported drivers.
	ErrUnknownDriver = &StoreError{Message: "unknown storage driver"}
)

// =============================================================================
// HELPERS
// =============================================================================

// prepare validates rec and fills in the id and timestamp.
func prepare(rec Record) (Record, error) {
	if strings.TrimSpace(rec.UserMessage) == "" || strings.TrimSpace(rec.AIResponse) == "" {
		return rec, ErrInvalidRecord
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}

// trainingRecord converts ex into its canonical stored form.
func trainingRecord(ex TrainingExample) Record {
	return Record{
		UserMessage:    ex.UserMessage,
		AIResponse:     ex.AIResponse,
		Provider:       ProviderManual,
		IsTrainingData: true,
	}
}

// SortNewestFirst orders records by timestamp, most recent first.
// Records with equal timestamps keep their relative order.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}

// Options selects and configures a backend for Open.
type Options struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
}

// Open connects to the configured backend and prepares its schema.
// The returned store is ready for use; failures are initialization errors.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "sqlite":
		s, err := OpenSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := OpenPostgres(ctx, opts.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
