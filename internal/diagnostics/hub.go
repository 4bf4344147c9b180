// Package diagnostics carries lifecycle events out of the hot path and into
// whatever is listening: logs, a persisted sink, tests. component.System
// publishes component mount/unmount failures; the system.* and peer.closed
// event types are declared here, but nothing in this module publishes them.
// Unlike the synchronous eventbus used for in-process named events, this
// bus has no ordering or synchronicity requirement, so it runs as an
// asynchronous actor the way a central event hub naturally does.
package diagnostics

import (
	"encoding/json"
	"time"
)

// EventType names a lifecycle occurrence worth recording.
type EventType string

const (
	EventComponentMountFailed   EventType = "component.mount_failed"
	EventComponentUnmountFailed EventType = "component.unmount_failed"
	EventSystemWillEnable       EventType = "system.will_enable"
	EventSystemEnabled          EventType = "system.enabled"
	EventSystemUnmounted        EventType = "system.unmounted"
	EventPeerClosed             EventType = "peer.closed"
)

// Event is one lifecycle occurrence.
type Event struct {
	Type      EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
	Component string    `json:"component,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// ToJSON serializes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewEvent builds an Event stamped with the current time.
func NewEvent(eventType EventType, component, message string) Event {
	return Event{Type: eventType, Time: time.Now(), Component: component, Message: message}
}

// Subscriber receives published events until closed.
type Subscriber interface {
	ID() string
	Send(event Event) error
	Close() error
	Done() <-chan struct{}
}

// Hub fans lifecycle events out to every registered Subscriber.
type Hub struct {
	subscribers map[string]Subscriber
	broadcast   chan Event
	register    chan Subscriber
	unregister  chan string
	done        chan struct{}
	stopped     chan struct{}
}

// New creates a Hub. Call Start before Publish has any effect.
func New() *Hub {
	return &Hub{
		subscribers: make(map[string]Subscriber),
		broadcast:   make(chan Event, 256),
		register:    make(chan Subscriber),
		unregister:  make(chan string),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Start begins the hub's dispatch loop in the background.
func (h *Hub) Start() {
	go h.run()
}

// Stop closes every subscriber and ends the dispatch loop.
func (h *Hub) Stop() {
	close(h.done)
	<-h.stopped
}

func (h *Hub) run() {
	defer close(h.stopped)
	for {
		select {
		case <-h.done:
			for _, sub := range h.subscribers {
				_ = sub.Close()
			}
			return

		case sub := <-h.register:
			h.subscribers[sub.ID()] = sub

		case id := <-h.unregister:
			if sub, ok := h.subscribers[id]; ok {
				_ = sub.Close()
				delete(h.subscribers, id)
			}

		case event := <-h.broadcast:
			for id, sub := range h.subscribers {
				if err := sub.Send(event); err != nil {
					go h.Unsubscribe(id)
				}
			}
		}
	}
}

// Publish sends event to every subscriber. If the broadcast buffer is full,
// the event is dropped rather than blocking the caller — a lifecycle event
// sink should never be able to stall the system it's observing.
func (h *Hub) Publish(event Event) {
	select {
	case h.broadcast <- event:
	default:
	}
}

// Subscribe registers sub to receive future events.
func (h *Hub) Subscribe(sub Subscriber) {
	select {
	case h.register <- sub:
	case <-h.done:
	}
}

// Unsubscribe removes and closes the subscriber with the given id.
func (h *Hub) Unsubscribe(id string) {
	select {
	case h.unregister <- id:
	case <-h.done:
	}
}
