// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package toast provides process-wide transient notifications.
package toast

import (
	"sync"
	"time"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// Kind is the category of a notification.
type Kind int

const (
	// KindInfo is a neutral notification.
	KindInfo Kind = iota
	// KindSuccess reports a completed action.
	KindSuccess
	// KindError reports a failed action.
	KindError
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return "info"
	}
}

// DefaultDuration is how long a toast stays visible unless dismissed.
const DefaultDuration = 3 * time.Second

// Toast is a single visible notification.
type Toast struct {
	ID        int
	Message   string
	Kind      Kind
	CreatedAt time.Time
	Duration  time.Duration
}

// Remaining returns the time left before auto-dismissal.
func (t Toast) Remaining() time.Duration {
	left := t.Duration - time.Since(t.CreatedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Event is delivered to listeners when a toast appears or disappears.
type Event struct {
	Toast     Toast
	Dismissed bool
}

// =============================================================================
// NOTIFIER
// =============================================================================

// Notifier owns the set of visible toasts. Create one at startup, share it
// with every component that reports outcomes, and Close it on exit.
type Notifier struct {
	duration  time.Duration
	maxToasts int

	mu        sync.Mutex
	toasts    []Toast
	timers    map[int]*time.Timer
	nextID    int
	listeners []func(Event)
	closed    bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithDuration sets the auto-dismiss duration.
func WithDuration(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.duration = d
		}
	}
}

// WithMaxToasts caps how many toasts are visible at once; the oldest is
// dropped when the cap is exceeded.
func WithMaxToasts(max int) Option {
	return func(n *Notifier) {
		if max > 0 {
			n.maxToasts = max
		}
	}
}

// WithListener registers fn to receive show and dismiss events.
// fn is called without the Notifier lock held.
func WithListener(fn func(Event)) Option {
	return func(n *Notifier) {
		n.listeners = append(n.listeners, fn)
	}
}

// New creates a Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		duration:  DefaultDuration,
		maxToasts: 5,
		timers:    make(map[int]*time.Timer),
		nextID:    1,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Show displays message and schedules its dismissal. It returns the toast id,
// or 0 when the Notifier has been closed.
func (n *Notifier) Show(message string, kind Kind) int {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return 0
	}

	t := Toast{
		ID:        n.nextID,
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now(),
		Duration:  n.duration,
	}
	n.nextID++
	n.toasts = append(n.toasts, t)

	var evicted []Toast
	for len(n.toasts) > n.maxToasts {
		old := n.toasts[0]
		n.toasts = n.toasts[1:]
		if timer, ok := n.timers[old.ID]; ok {
			timer.Stop()
			delete(n.timers, old.ID)
		}
		evicted = append(evicted, old)
	}

	id := t.ID
	n.timers[id] = time.AfterFunc(n.duration, func() { n.Dismiss(id) })
	listeners := n.listeners
	n.mu.Unlock()

	for _, old := range evicted {
		notify(listeners, Event{Toast: old, Dismissed: true})
	}
	notify(listeners, Event{Toast: t})
	return id
}

// Success shows a success toast.
func (n *Notifier) Success(message string) int { return n.Show(message, KindSuccess) }

// Error shows an error toast.
func (n *Notifier) Error(message string) int { return n.Show(message, KindError) }

// Info shows an informational toast.
func (n *Notifier) Info(message string) int { return n.Show(message, KindInfo) }

// Dismiss removes the toast with id. Unknown ids are ignored.
func (n *Notifier) Dismiss(id int) {
	n.mu.Lock()
	var removed *Toast
	for i, t := range n.toasts {
		if t.ID == id {
			removed = &t
			n.toasts = append(n.toasts[:i], n.toasts[i+1:]...)
			break
		}
	}
	if timer, ok := n.timers[id]; ok {
		timer.Stop()
		delete(n.timers, id)
	}
	listeners := n.listeners
	n.mu.Unlock()

	if removed != nil {
		notify(listeners, Event{Toast: *removed, Dismissed: true})
	}
}

// Active returns a copy of the visible toasts, oldest first.
func (n *Notifier) Active() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()

	result := make([]Toast, len(n.toasts))
	copy(result, n.toasts)
	return result
}

// Close stops all timers and clears the visible toasts. Show is a no-op
// afterwards.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, timer := range n.timers {
		timer.Stop()
		delete(n.timers, id)
	}
	n.toasts = nil
	n.closed = true
}

func notify(listeners []func(Event), ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}
