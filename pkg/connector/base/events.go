package base

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType identifies a connector lifecycle notification.
type EventType string

const (
	EventConnected            EventType = "connected"
	EventDisconnected         EventType = "disconnected"
	EventError                EventType = "error"
	EventHealthCheck          EventType = "health_check"
	EventRateLimited          EventType = "rate_limited"
	EventReceived             EventType = "event_received"
	EventSent                 EventType = "event_sent"
	EventReconnecting         EventType = "reconnecting"
	EventCredentialsRefreshed EventType = "credentials_refreshed"
)

// Event is a lifecycle notification published on the per-connector bus.
type Event struct {
	Type        EventType
	ConnectorID string
	Timestamp   time.Time
	Err         error
	Payload     interface{}
}

// EventHandler consumes lifecycle events. Handlers run on the bus
// supervisor goroutine; a panicking handler is logged and dropped without
// affecting other handlers or lifecycle transitions.
type EventHandler func(Event)

type subscription struct {
	id      int
	handler EventHandler
}

// EventBus is a per-connector publish/subscribe channel for lifecycle
// notifications. Emission is message-passing: events go through a bounded
// channel to a supervisor goroutine, so a slow or faulty handler never
// blocks a state transition. When the buffer is full the event is dropped
// with a log line.
type EventBus struct {
	connectorID string
	logger      *zap.Logger

	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   int
	closed   bool

	ch chan Event
	wg sync.WaitGroup
}

// NewEventBus creates an event bus with the given buffer size and starts
// its supervisor goroutine.
func NewEventBus(connectorID string, buffer int, logger *zap.Logger) *EventBus {
	if buffer <= 0 {
		buffer = 64
	}
	b := &EventBus{
		connectorID: connectorID,
		logger:      logger,
		handlers:    make(map[EventType][]subscription),
		ch:          make(chan Event, buffer),
	}

	b.wg.Add(1)
	go b.run()

	return b
}

// On registers a handler for an event type and returns a subscription ID
// usable with Off.
func (b *EventBus) On(t EventType, h EventHandler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[t] = append(b.handlers[t], subscription{id: b.nextID, handler: h})
	return b.nextID
}

// Off removes a previously registered handler.
func (b *EventBus) Off(t EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[t]
	for i, s := range subs {
		if s.id == id {
			b.handlers[t] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Emit publishes an event without blocking. Events emitted after Close or
// into a full buffer are dropped.
func (b *EventBus) Emit(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	ev.ConnectorID = b.connectorID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	select {
	case b.ch <- ev:
	default:
		b.logger.Warn("event bus buffer full, dropping event",
			zap.String("event_type", string(ev.Type)))
	}
}

// Close stops the supervisor after draining already-emitted events.
func (b *EventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()

	b.wg.Wait()
}

// run dispatches events to handlers until the channel is closed.
func (b *EventBus) run() {
	defer b.wg.Done()

	for ev := range b.ch {
		b.mu.RLock()
		subs := make([]subscription, len(b.handlers[ev.Type]))
		copy(subs, b.handlers[ev.Type])
		b.mu.RUnlock()

		for _, s := range subs {
			b.dispatch(s, ev)
		}
	}
}

// dispatch invokes one handler, containing any panic so a bad listener
// cannot break delivery to the rest.
func (b *EventBus) dispatch(s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event handler panicked, delivery dropped",
				zap.String("event_type", string(ev.Type)),
				zap.Int("subscription", s.id),
				zap.Any("panic", r))
		}
	}()
	s.handler(ev)
}
