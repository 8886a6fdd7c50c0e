// Package event is the realtime fan-out layer for chat.
//
// Design principles:
// - Publish is fire-and-forget per destination; a slow or failed subscriber
//   never blocks or rolls back the send path that produced the event.
// - Every event carries a topic (per-channel or per-user); subscribers filter
//   by topic.
// - The emitter is in-process; the optional Redis bridge extends fan-out
//   across instances.
package event

import "sync"

// Event is the interface all event types must implement.
type Event interface {
	// EventName returns the name for this event type (e.g. "chat.message").
	EventName() string
	// EventTopic returns the destination topic (e.g. "chat/channel/42").
	EventTopic() string
}

// Listener is a callback function for handling events.
type Listener func(Event)

// Emitter manages topic subscriptions and dispatching.
type Emitter struct {
	mu           sync.RWMutex
	nextID       int
	listeners    map[string]map[int]Listener // topic -> id -> listener
	allListeners map[int]Listener            // listeners for every topic
}

// NewEmitter creates a new event emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		listeners:    make(map[string]map[int]Listener),
		allListeners: make(map[int]Listener),
	}
}

// On subscribes to a single topic. Returns an unsubscribe function.
func (e *Emitter) On(topic string, fn Listener) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	if e.listeners[topic] == nil {
		e.listeners[topic] = make(map[int]Listener)
	}
	e.listeners[topic][id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners[topic], id)
	}
}

// OnAny subscribes to all topics.
func (e *Emitter) OnAny(fn Listener) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.allListeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.allListeners, id)
	}
}

// Emit dispatches an event to the listeners of its topic plus the wildcard
// listeners. Callbacks run synchronously on the caller's goroutine; listeners
// that can block (like the WebSocket handler) hand off to a buffered channel.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	// Copy listeners to avoid holding the lock during callbacks.
	specific := make([]Listener, 0, len(e.listeners[ev.EventTopic()]))
	for _, fn := range e.listeners[ev.EventTopic()] {
		specific = append(specific, fn)
	}
	all := make([]Listener, 0, len(e.allListeners))
	for _, fn := range e.allListeners {
		all = append(all, fn)
	}
	e.mu.RUnlock()

	for _, fn := range specific {
		fn(ev)
	}
	for _, fn := range all {
		fn(ev)
	}
}

// ---- Global Emitter ----

var globalEmitter *Emitter
var globalOnce sync.Once

// Global returns the global event emitter.
func Global() *Emitter {
	globalOnce.Do(func() {
		globalEmitter = NewEmitter()
	})
	return globalEmitter
}

// Emit is a shortcut for Global().Emit(ev).
func Emit(ev Event) {
	Global().Emit(ev)
}

// On is a shortcut for Global().On(topic, fn).
func On(topic string, fn Listener) func() {
	return Global().On(topic, fn)
}
