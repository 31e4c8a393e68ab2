// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs best-effort background work on a bounded worker pool.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultQueueSize is the buffer used when a non-positive size is given.
	DefaultQueueSize = 256

	// DefaultWorkers is the worker count used when a non-positive count is given.
	DefaultWorkers = 2

	// DefaultTaskTimeout bounds each task run.
	DefaultTaskTimeout = 10 * time.Second

	// DefaultMaxHistory is how many finished tasks Recent keeps.
	DefaultMaxHistory = 50
)

var (
	// ErrQueueFull is returned by Submit when the buffer has no room.
	ErrQueueFull = errors.New("task queue is full")

	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = errors.New("task queue is closed")
)

// =============================================================================
// TASK QUEUE
// =============================================================================

// Stats is a snapshot of queue counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
	Workers   int   `json:"workers"`
}

// Queue buffers tasks and runs them on a fixed pool of workers. Submit
// never blocks: when the buffer is full the task is dropped.
type Queue struct {
	pending     chan *Task
	workers     int
	taskTimeout time.Duration
	prefix      string
	maxHistory  int

	// history holds the most recently finished tasks, oldest first
	history []*Task

	// closeMu serialises Submit against Close so no send hits a closed channel
	closeMu sync.RWMutex
	closed  bool

	mu sync.Mutex
	wg sync.WaitGroup

	// runCtx is cancelled when Close gives up waiting
	runCtx    context.Context
	runCancel context.CancelFunc

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Queue.
type Option func(*Queue)

// WithTaskTimeout bounds each task run. Zero disables the bound.
func WithTaskTimeout(d time.Duration) Option {
	return func(q *Queue) { q.taskTimeout = d }
}

// WithEventPrefix sets the prefix of logged events, e.g. "PERSIST" gives
// PERSIST_OK, PERSIST_FAILED and PERSIST_DROPPED.
func WithEventPrefix(prefix string) Option {
	return func(q *Queue) { q.prefix = prefix }
}

// WithMaxHistory sets how many finished tasks Recent keeps.
func WithMaxHistory(n int) Option {
	return func(q *Queue) { q.maxHistory = n }
}

// NewQueue creates a queue with the given buffer size and worker count and
// starts its workers.
func NewQueue(size, workers int, opts ...Option) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		pending:     make(chan *Task, size),
		workers:     workers,
		taskTimeout: DefaultTaskTimeout,
		prefix:      "TASK",
		maxHistory:  DefaultMaxHistory,
		runCtx:      ctx,
		runCancel:   cancel,
	}
	for _, opt := range opts {
		opt(q)
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit enqueues fn under name and returns the task id. It returns
// ErrQueueFull when the buffer is full and ErrQueueClosed after Close.
func (q *Queue) Submit(name string, fn Func) (string, error) {
	task := NewTask(name, fn)

	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return "", ErrQueueClosed
	}

	select {
	case q.pending <- task:
		q.submitted.Add(1)
		return task.ID, nil
	default:
		_ = task.SetStatus(TaskStatusDropped)
		q.dropped.Add(1)
		q.record(task)
		log.Printf("%s_DROPPED | task=%s name=%s reason=queue_full", q.prefix, task.ID, name)
		return "", ErrQueueFull
	}
}

// =============================================================================
// WORKERS
// =============================================================================

func (q *Queue) worker() {
	defer q.wg.Done()
	for task := range q.pending {
		q.run(task)
	}
}

func (q *Queue) run(task *Task) {
	_ = task.SetStatus(TaskStatusRunning)

	ctx, cancel := q.runCtx, context.CancelFunc(func() {})
	if q.taskTimeout > 0 {
		ctx, cancel = context.WithTimeout(q.runCtx, q.taskTimeout)
	}
	defer cancel()

	err := safeCall(ctx, task.fn)
	if err != nil {
		task.fail(err)
		q.failed.Add(1)
		log.Printf("%s_FAILED | task=%s name=%s error=%v", q.prefix, task.ID, task.Name, err)
	} else {
		_ = task.SetStatus(TaskStatusComplete)
		q.completed.Add(1)
		log.Printf("%s_OK | task=%s name=%s duration_ms=%d", q.prefix, task.ID, task.Name, task.Duration().Milliseconds())
	}
	q.record(task)
}

// safeCall runs fn, converting a panic into an error.
func safeCall(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	if fn == nil {
		return errors.New("task has no function")
	}
	return fn(ctx)
}

func (q *Queue) record(task *Task) {
	if q.maxHistory <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.history = append(q.history, task)
	if over := len(q.history) - q.maxHistory; over > 0 {
		q.history = append(q.history[:0:0], q.history[over:]...)
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Close stops accepting tasks and waits for pending ones to finish. If ctx
// expires first, running tasks are cancelled and ctx.Err() is returned.
// Calling Close more than once is safe.
func (q *Queue) Close(ctx context.Context) error {
	q.closeMu.Lock()
	if !q.closed {
		q.closed = true
		close(q.pending)
	}
	q.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.runCancel()
		return nil
	case <-ctx.Done():
		q.runCancel()
		log.Printf("%s_QUEUE_ABANDONED | pending=%d", q.prefix, len(q.pending))
		return ctx.Err()
	}
}

// =============================================================================
// INSPECTION
// =============================================================================

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
		Pending:   len(q.pending),
		Workers:   q.workers,
	}
}

// Recent returns copies of the most recently finished tasks, newest first.
func (q *Queue) Recent() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Task, 0, len(q.history))
	for i := len(q.history) - 1; i >= 0; i-- {
		out = append(out, q.history[i].Clone())
	}
	return out
}

// Summary returns a formatted one-line summary of the queue.
func (q *Queue) Summary() string {
	s := q.Stats()
	return fmt.Sprintf("Pending: %d | Completed: %d | Failed: %d | Dropped: %d",
		s.Pending, s.Completed, s.Failed, s.Dropped)
}
