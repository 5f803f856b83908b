package history

import (
	"sync"

	"chainaudit/pkg/models"
)

// EventLog is a bounded, append-only attack-event history. When capacity
// is reached the oldest events are evicted, keeping memory flat for
// long-lived analyzer processes.
type EventLog struct {
	mu     sync.Mutex
	events []models.AttackEvent
	max    int
}

// NewEventLog creates an event log holding at most max events.
func NewEventLog(max int) *EventLog {
	if max <= 0 {
		max = 10_000
	}
	return &EventLog{
		events: make([]models.AttackEvent, 0, 256),
		max:    max,
	}
}

// Append adds events, evicting the oldest beyond capacity. Events are
// appended only after a full scan completes, so writes never interleave.
func (l *EventLog) Append(events []models.AttackEvent) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, events...)
	if len(l.events) > l.max {
		overflow := len(l.events) - l.max
		l.events = append(l.events[:0], l.events[overflow:]...)
	}
}

// Snapshot returns a copy of the current history, oldest first.
func (l *EventLog) Snapshot() []models.AttackEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.AttackEvent(nil), l.events...)
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
