// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// TaskStatus represents the current state of a background task.
type TaskStatus string

const (
	// TaskStatusQueued indicates the task is waiting for a worker
	TaskStatusQueued TaskStatus = "Queued"

	// TaskStatusRunning indicates a worker is executing the task
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusComplete indicates the task finished successfully
	TaskStatusComplete TaskStatus = "Complete"

	// TaskStatusFailed indicates the task returned an error or panicked
	TaskStatusFailed TaskStatus = "Failed"

	// TaskStatusDropped indicates the task never ran because the queue was full
	TaskStatusDropped TaskStatus = "Dropped"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed || s == TaskStatusDropped
}

// =============================================================================
// TASK STRUCTURE
// =============================================================================

// Func is the unit of work a task runs.
type Func func(ctx context.Context) error

// Task is a unit of background work, such as persisting one exchange.
type Task struct {
	// ID is a unique identifier for this task
	ID string

	// Name describes the work for logs
	Name string

	// Status is the current state of the task
	Status TaskStatus

	// EnqueuedAt is when the task was submitted
	EnqueuedAt time.Time

	// StartTime is when a worker picked the task up
	StartTime time.Time

	// EndTime is when the task reached a terminal state
	EndTime time.Time

	// Error is the error message if the task failed
	Error string

	fn Func
	mu sync.RWMutex
}

// NewTask creates a queued task that will run fn.
func NewTask(name string, fn Func) *Task {
	return &Task{
		ID:         uuid.New().String(),
		Name:       name,
		Status:     TaskStatusQueued,
		EnqueuedAt: time.Now(),
		fn:         fn,
	}
}

// =============================================================================
// TASK METHODS
// =============================================================================

// SetStatus updates the task status.
// Valid transitions: Queued -> Running -> Complete/Failed, Queued -> Dropped.
func (t *Task) SetStatus(status TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !isValidTransition(t.Status, status) {
		return fmt.Errorf("invalid status transition from %s to %s", t.Status, status)
	}

	now := time.Now()
	switch {
	case status == TaskStatusRunning:
		t.StartTime = now
	case status.Terminal():
		t.EndTime = now
	}
	t.Status = status
	return nil
}

func isValidTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case TaskStatusQueued:
		return to == TaskStatusRunning || to == TaskStatusDropped
	case TaskStatusRunning:
		return to == TaskStatusComplete || to == TaskStatusFailed
	default:
		return false
	}
}

// GetStatus returns the current task status.
func (t *Task) GetStatus() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// fail records err and moves the task to Failed.
func (t *Task) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Error = err.Error()
	t.Status = TaskStatusFailed
	t.EndTime = time.Now()
}

// GetError returns the error message, if any.
func (t *Task) GetError() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Error
}

// Duration returns how long the task has been running or took to run.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.StartTime.IsZero() {
		return 0
	}
	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}

// Wait returns how long the task sat in the queue before a worker took it.
func (t *Task) Wait() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.StartTime.IsZero() {
		return 0
	}
	return t.StartTime.Sub(t.EnqueuedAt)
}

// Summary returns a one-line summary of the task.
func (t *Task) Summary() string {
	status := t.GetStatus()
	summary := fmt.Sprintf("[%s] %s - %s", t.ID[:8], t.Name, status)
	if d := t.Duration(); d > 0 {
		summary += fmt.Sprintf(" (%dms)", d.Milliseconds())
	}
	return summary
}

// Clone creates a copy of the task for reading.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Task{
		ID:         t.ID,
		Name:       t.Name,
		Status:     t.Status,
		EnqueuedAt: t.EnqueuedAt,
		StartTime:  t.StartTime,
		EndTime:    t.EndTime,
		Error:      t.Error,
	}
}
