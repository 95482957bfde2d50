package base

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEventBusDelivery(t *testing.T) {
	bus := NewEventBus("c1", 8, zap.NewNop())

	var got atomic.Int64
	bus.On(EventConnected, func(ev Event) {
		assert.Equal(t, "c1", ev.ConnectorID)
		assert.False(t, ev.Timestamp.IsZero())
		got.Add(1)
	})

	bus.Emit(Event{Type: EventConnected})
	bus.Emit(Event{Type: EventDisconnected}) // no handler registered
	bus.Close()

	assert.Equal(t, int64(1), got.Load())
}

func TestEventBusOff(t *testing.T) {
	bus := NewEventBus("c1", 8, zap.NewNop())

	var got atomic.Int64
	id := bus.On(EventError, func(Event) { got.Add(1) })
	bus.Off(EventError, id)

	bus.Emit(Event{Type: EventError})
	bus.Close()

	assert.Equal(t, int64(0), got.Load())
}

func TestEventBusPanickingHandlerIsolated(t *testing.T) {
	bus := NewEventBus("c1", 8, zap.NewNop())

	var got atomic.Int64
	bus.On(EventConnected, func(Event) { panic("bad listener") })
	bus.On(EventConnected, func(Event) { got.Add(1) })

	bus.Emit(Event{Type: EventConnected})
	bus.Emit(Event{Type: EventConnected})
	bus.Close()

	assert.Equal(t, int64(2), got.Load(), "healthy handler must keep receiving")
}

func TestEventBusEmitAfterClose(t *testing.T) {
	bus := NewEventBus("c1", 8, zap.NewNop())
	bus.Close()

	// Must not panic.
	bus.Emit(Event{Type: EventConnected})
	bus.Close()
}
