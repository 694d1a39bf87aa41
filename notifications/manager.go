// Package notifications keeps a bounded in-memory log of operational
// events — exchange blocks, shutdown phase transitions, venue errors — for
// the control panel's stats command to surface. Persistence of trades is
// explicitly out of scope (spec §1), so unlike the teacher this is a ring
// buffer with no backing store.
//
// Grounded on notifications/manager.go's Send/Info/Warning/Error surface
// and uuid-per-notification ID scheme, adapted from a SQL-backed store
// plus per-client websocket broadcast into a capacity-bounded slice fed by
// subscribing to the engine's own events.Bus.
package notifications

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexherrero/sherwood-engine/events"
)

// Level classifies a recorded notification.
type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notification is one recorded operational event.
type Notification struct {
	ID        string         `json:"id"`
	Level     Level          `json:"level"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// defaultCapacity bounds how many notifications are retained before the
// oldest are dropped.
const defaultCapacity = 500

// Log is a bounded, concurrency-safe ring of recent Notifications.
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []Notification
}

// NewLog creates an empty Log holding at most capacity entries (a
// non-positive capacity uses a sane default).
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{capacity: capacity}
}

// Record appends a notification, evicting the oldest entry if the log is
// at capacity.
func (l *Log) Record(level Level, title, message string, metadata map[string]any) Notification {
	n := Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	l.entries = append(l.entries, n)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
	l.mu.Unlock()

	return n
}

func (l *Log) Info(title, message string) { l.Record(Info, title, message, nil) }
func (l *Log) Warn(title, message string) { l.Record(Warning, title, message, nil) }
func (l *Log) Err(title, message string)  { l.Record(Error, title, message, nil) }

// Recent returns up to limit of the most recently recorded notifications,
// newest last. limit <= 0 returns every retained entry.
func (l *Log) Recent(limit int) []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit >= len(l.entries) {
		out := make([]Notification, len(l.entries))
		copy(out, l.entries)
		return out
	}
	out := make([]Notification, limit)
	copy(out, l.entries[len(l.entries)-limit:])
	return out
}

// FollowBus subscribes to bus and records every event it publishes as an
// Info-level notification, until the subscription's channel closes. Meant
// to be run in its own goroutine.
func (l *Log) FollowBus(bus *events.Bus) {
	sub := bus.Subscribe()
	for ev := range sub.C() {
		l.Record(Info, ev.Type, ev.ExchangeAccountID.String(), map[string]any{"payload": ev.Payload})
	}
}
