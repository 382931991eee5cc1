// Package events is the fire-and-forget observer list the engine publishes
// presentation, audio and haptic cues to.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Type names an engine cue
type Type string

const (
	SessionStarted     Type = "session.started"
	SessionFinished    Type = "session.finished"
	ViolationFound     Type = "violation.found"
	FalsePositive      Type = "violation.false_positive"
	StepAccepted       Type = "step.accepted"
	StepRejected       Type = "step.rejected"
	MeasurementTaken   Type = "measurement.taken"
	ActionRejected     Type = "action.rejected"
	HintUsed           Type = "hint.used"
	BadgeAwarded       Type = "badge.awarded"
	ChallengeProgress  Type = "challenge.progress"
	ChallengeCompleted Type = "challenge.completed"
	DayStarted         Type = "day.started"
	OrderAccepted      Type = "order.accepted"
	OrderCompleted     Type = "order.completed"
	DayEnded           Type = "day.ended"
	PersistFailed      Type = "persist.failed"
)

// Event is a single cue
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler receives events. Handlers run on the publisher's goroutine and
// must not block.
type Handler func(Event)

// Publisher is what producers depend on
type Publisher interface {
	Publish(e Event)
}

// Bus fans events out to subscribers
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscribe registers h and returns a func that removes it
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers e to every subscriber. A panicking handler is logged
// and skipped.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, e)
	}
}

func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "type", e.Type, "panic", r)
		}
	}()
	h(e)
}

// Len returns the number of subscribers
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(Event) {}
