package client

import (
	"log"
	"reflect"
	"sync"
)

// Handler is a local subscriber callback for one event type. Handlers are
// invoked synchronously from the publishing goroutine in registration order.
type Handler func(event interface{})

// Bus is the client-side event dispatcher: a local pub/sub registry mapping
// event names to ordered subscriber lists. It decouples UI components from
// the transport. Publishing locally and sending to the server are distinct
// operations; the Bus only ever does the former.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty event dispatcher.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// On registers a handler for an event type. Registering the identical
// function value twice for the same type is a no-op, so repeated mount
// cycles in the UI layer do not leak subscriptions.
func (b *Bus) On(eventType string, h Handler) {
	if h == nil {
		return
	}
	ptr := reflect.ValueOf(h).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.handlers[eventType] {
		if reflect.ValueOf(existing).Pointer() == ptr {
			return
		}
	}
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Off removes a handler by function identity. Removing a handler that was
// never registered is a no-op.
func (b *Bus) Off(eventType string, h Handler) {
	if h == nil {
		return
	}
	ptr := reflect.ValueOf(h).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[eventType]
	for i, existing := range list {
		if reflect.ValueOf(existing).Pointer() == ptr {
			b.handlers[eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish synchronously invokes every handler registered for the event type,
// in registration order. A panic in one handler is recovered and logged so
// that subsequent handlers still run.
func (b *Bus) Publish(eventType string, event interface{}) {
	b.mu.RLock()
	list := make([]Handler, len(b.handlers[eventType]))
	copy(list, b.handlers[eventType])
	b.mu.RUnlock()

	for _, h := range list {
		invoke(eventType, h, event)
	}
}

// invoke runs one handler with panic isolation.
func invoke(eventType string, h Handler, event interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("client: handler panic for %q: %v", eventType, r)
		}
	}()
	h(event)
}
