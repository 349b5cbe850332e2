package pipeline

import (
	"log/slog"
	"sync"
	"time"
)

// EventType identifies a pipeline lifecycle event.
type EventType string

const (
	EventJobStarted     EventType = "job_started"
	EventChunkStarted   EventType = "chunk_started"
	EventChunkCompleted EventType = "chunk_completed"
	EventChunkFailed    EventType = "chunk_failed"
	EventJobCompleted   EventType = "job_completed"
	EventJobInterrupted EventType = "job_interrupted"
	EventJobFailed      EventType = "job_failed"
)

// Event is one progress notification. ChunkIndex and TotalChunks are -1
// for job-level events that carry no chunk position.
type Event struct {
	Type          EventType `json:"type"`
	TranslationID string    `json:"translation_id"`
	ChunkIndex    int       `json:"chunk_index"`
	TotalChunks   int       `json:"total_chunks"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Listener receives events. Listeners run synchronously on the publishing
// goroutine; slow listeners slow the pipeline.
type Listener func(Event)

// Bus fans events out to listeners. A panicking listener is isolated and
// logged; it never takes down the translation loop or other listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners []subscription
	nextID    int
	logger    *slog.Logger
}

type subscription struct {
	id int
	fn Listener
}

// NewBus creates an event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a listener for all subsequent events. The returned
// function removes the listener again; calling it more than once is
// harmless.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners = append(b.listeners, subscription{id: id, fn: l})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.listeners {
			if s.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every listener in subscription order.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, s := range b.listeners {
		listeners = append(listeners, s.fn)
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		b.deliver(l, ev)
	}
}

func (b *Bus) deliver(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked",
				"event", ev.Type,
				"translation_id", ev.TranslationID,
				"panic", r)
		}
	}()
	l(ev)
}
