package events

import (
	"reflect"
	"sync"
)

// EventHandler is a callback invoked with a published event. A non-nil error aborts the publish and is returned to
// the publisher.
type EventHandler[T any] func(T) error

// globalEventHandlers maps event type names to handlers that fire for every emitter of that type.
var globalEventHandlers map[string][]any

// globalEventHandlersLock guards globalEventHandlers against concurrent access.
var globalEventHandlersLock sync.Mutex

// SubscribeAny registers a handler that fires whenever any emitter publishes an event of the given type.
// Note: handlers registered here live for the remainder of program execution, so short-lived objects should prefer
// per-emitter Subscribe to avoid being pinned in memory.
func SubscribeAny[T any](callback EventHandler[T]) {
	eventType := reflect.TypeOf((*T)(nil)).Elem()

	globalEventHandlersLock.Lock()
	defer globalEventHandlersLock.Unlock()

	if globalEventHandlers == nil {
		globalEventHandlers = make(map[string][]any)
	}
	globalEventHandlers[eventType.String()] = append(globalEventHandlers[eventType.String()], callback)
}

// subscription pairs a handler with the identifier its unsubscribe closure removes it by.
type subscription[T any] struct {
	id      int
	handler EventHandler[T]
}

// EventEmitter publishes events of one type to its subscribed handlers and to any matching global handlers.
// The zero value is ready to use. Subscribe and Publish are safe for concurrent use.
type EventEmitter[T any] struct {
	// lock guards subscriptions.
	lock sync.Mutex

	// nextID is the identifier assigned to the next subscription.
	nextID int

	// subscriptions are the handlers invoked when an event is published to this emitter.
	subscriptions []subscription[T]
}

// Publish delivers the event to every subscribed handler in subscription order, then to the global handlers for the
// event type. The first handler error stops delivery and is returned.
func (e *EventEmitter[T]) Publish(event T) error {
	e.lock.Lock()
	handlers := make([]EventHandler[T], len(e.subscriptions))
	for i, entry := range e.subscriptions {
		handlers[i] = entry.handler
	}
	e.lock.Unlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			return err
		}
	}

	eventType := reflect.TypeOf(event)
	globalEventHandlersLock.Lock()
	callbacks := globalEventHandlers[eventType.String()]
	globalEventHandlersLock.Unlock()

	for _, callback := range callbacks {
		if err := callback.(EventHandler[T])(event); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a handler to be invoked when an event is published to this emitter. The returned closure
// removes the subscription again, for subscribers that outlive their interest in the stream.
func (e *EventEmitter[T]) Subscribe(callback EventHandler[T]) func() {
	e.lock.Lock()
	defer e.lock.Unlock()

	id := e.nextID
	e.nextID++
	e.subscriptions = append(e.subscriptions, subscription[T]{id: id, handler: callback})

	return func() {
		e.lock.Lock()
		defer e.lock.Unlock()
		for i, entry := range e.subscriptions {
			if entry.id == id {
				e.subscriptions = append(e.subscriptions[:i], e.subscriptions[i+1:]...)
				return
			}
		}
	}
}
