package session

import (
	"sync"
	"time"

	"github.com/mind-engage/hireflow/internal/proctor"
)

type EventType string

const (
	EventLoaded    EventType = "loaded"
	EventLoadError EventType = "load_error"
	EventTick      EventType = "tick"
	EventViolation EventType = "violation"
	EventStage     EventType = "stage"
	EventSubmitted EventType = "submitted"
	EventClosed    EventType = "closed"
)

// Event is pushed to live subscribers of a session.
type Event struct {
	Type      EventType        `json:"type"`
	SessionID string           `json:"session_id"`
	Stage     Stage            `json:"stage"`
	Remaining float64          `json:"remaining_seconds,omitempty"`
	Category  proctor.Category `json:"category,omitempty"`
	Count     int              `json:"count,omitempty"`
	Warning   string           `json:"warning,omitempty"`
	Error     string           `json:"error,omitempty"`
	At        time.Time        `json:"at"`
}

const subscriberBuffer = 16

// bus fans events out to subscribers. Slow subscribers lose events rather
// than blocking the session.
type bus struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func newBus() *bus {
	return &bus{subs: make(map[chan Event]struct{})}
}

func (b *bus) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

func (b *bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *bus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
