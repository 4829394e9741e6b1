package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Listener receives events for the type it subscribed to. Listeners run on
// the publisher's goroutine; a panicking listener is recovered and logged so
// it cannot stop the monitor's tick loop.
type Listener func(e Event)

// Bus fans security events out to per-type listeners and keeps a bounded
// history for the snapshot surface.
type Bus struct {
	mu         sync.RWMutex
	listeners  map[Type]map[string]Listener
	history    []Event
	maxHistory int
	logger     *slog.Logger
}

func NewBus(maxHistory int, logger *slog.Logger) *Bus {
	if maxHistory <= 0 {
		maxHistory = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{
		listeners:  map[Type]map[string]Listener{},
		maxHistory: maxHistory,
		logger:     logger,
	}
}

// Publish builds an Event for t, records it in history, and delivers it to
// every listener registered for t.
func (b *Bus) Publish(t Type, payload any) Event {
	e := Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	b.mu.Lock()
	b.history = append(b.history, e)
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}
	targets := make([]Listener, 0, len(b.listeners[t]))
	for _, l := range b.listeners[t] {
		targets = append(targets, l)
	}
	b.mu.Unlock()

	for _, l := range targets {
		b.deliver(l, e)
	}

	return e
}

// Subscribe registers a listener for one event type and returns its
// unsubscribe function. Multiple listeners per type are allowed.
func (b *Bus) Subscribe(t Type, l Listener) func() {
	id := uuid.NewString()

	b.mu.Lock()
	if b.listeners[t] == nil {
		b.listeners[t] = map[string]Listener{}
	}
	b.listeners[t][id] = l
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners[t], id)
		b.mu.Unlock()
	}
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, len(b.history))
	copy(out, b.history)

	return out
}

func (b *Bus) deliver(l Listener, e Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			b.logger.Error("event listener panicked", "type", string(e.Type), "panic", recovered)
		}
	}()

	l(e)
}
