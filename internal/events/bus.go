package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Delivery is asynchronous; each subscriber sees events in publish order.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(ProcessStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ProcessStartedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessExitedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessFinalizedEvent:
		event.Publish(b.dispatcher, e)
	case OutputLineEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e ProcessExitedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ProcessStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessFinalizedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(OutputLineEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeToChannel bridges a callback subscription to a channel.
// Events are dropped when ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
