// Package event implements a typed in-process event bus with named topics.
//
// Components publish values under a Topic; subscribers register a handler
// and receive a Subscription handle that can be cancelled. Delivery is
// synchronous in the publisher's goroutine.
package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Topic names a category of events on the bus.
type Topic string

const (
	// TopicStateChanged fires when the coordinator publishes a new
	// NotchState/Configuration pair.
	TopicStateChanged Topic = "state.changed"
	// TopicPhaseChanged fires when the alert scheduler changes phase or
	// updates a countdown.
	TopicPhaseChanged Topic = "phase.changed"
	// TopicWindowRefreshed fires after every successful window recreate
	// or restore, so UI components can re-synchronize.
	TopicWindowRefreshed Topic = "window.refreshed"
	// TopicSettingsChanged fires after a settings category has been
	// reloaded and applied.
	TopicSettingsChanged Topic = "settings.changed"
)

// Event is a published value with its topic and publication time.
type Event struct {
	Topic   Topic
	Payload any
	Time    time.Time
}

// Handler receives published events for one subscription.
type Handler func(Event)

// Bus routes published events to subscribers by topic.
type Bus struct {
	mu     sync.RWMutex
	logger *slog.Logger
	subs   map[Topic]map[string]Handler
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[Topic]map[string]Handler),
	}
}

// Subscription identifies one registered handler. Cancel removes it.
type Subscription struct {
	id    string
	topic Topic
	bus   *Bus
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string { return s.id }

// Topic returns the topic this subscription listens on.
func (s *Subscription) Topic() Topic { return s.topic }

// Cancel removes the subscription from the bus. Idempotent.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if handlers, ok := s.bus.subs[s.topic]; ok {
		delete(handlers, s.id)
		if len(handlers) == 0 {
			delete(s.bus.subs, s.topic)
		}
	}
	s.bus = nil
}

// Subscribe registers handler for topic and returns a cancellable handle.
func (b *Bus) Subscribe(topic Topic, handler Handler) *Subscription {
	sub := &Subscription{
		id:    ulid.Make().String(),
		topic: topic,
		bus:   b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]Handler)
	}
	b.subs[topic][sub.id] = handler
	return sub
}

// Publish delivers payload to every subscriber of topic, synchronously.
func (b *Bus) Publish(topic Topic, payload any) {
	ev := Event{Topic: topic, Payload: payload, Time: time.Now()}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// SubscriberCount returns the number of active subscriptions for topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
