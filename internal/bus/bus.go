// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"

	"github.com/rs/zerolog"
)

// EventType identifies different event types
type EventType string

// Event types for Jarvis Bridge
const (
	// Voice service events
	EventTypeVoiceStatus        EventType = "voice.status"
	EventTypeVoiceReady         EventType = "voice.ready"
	EventTypeTranscription      EventType = "voice.transcription"
	EventTypeConversationTurn   EventType = "voice.conversation_turn"
	EventTypeInstruction        EventType = "voice.instruction"
	EventTypeJarvisSpeaking     EventType = "voice.jarvis_speaking"
	EventTypeVoiceError         EventType = "voice.error"
	EventTypeVoiceCrashed       EventType = "voice.crashed"
	EventTypeVoiceMuted         EventType = "voice.muted"
	EventTypeVoiceUnmuted       EventType = "voice.unmuted"

	// Analysis events
	EventTypeAnalysisCompleted EventType = "analysis.completed"
	EventTypeToolNeeded        EventType = "analysis.tool_needed"

	// Agent delivery events
	EventTypeAgentInvoked      EventType = "agent.invoked"
	EventTypeAgentInvokeFailed EventType = "agent.invoke_failed"
	EventTypeTaskCompleted     EventType = "agent.task_completed"
)

// Event represents a bus event
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

type subscriber struct {
	id      uint64
	handler Handler
}

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	bus       *EventBus
	eventType EventType
	id        uint64
}

// Unsubscribe removes the handler from the bus.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.remove(s.eventType, s.id)
	s.bus = nil
}

// EventBus is a simple pub/sub event bus. Handlers for a topic run
// synchronously in registration order; a panicking handler never prevents
// the remaining handlers from running.
type EventBus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventType][]subscriber
	logger   zerolog.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger zerolog.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]subscriber),
		logger:   logger.With().Str("component", "bus").Logger(),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: b.nextID, handler: handler})
	return &Subscription{bus: b, eventType: eventType, id: b.nextID}
}

// SubscribeMultiple adds a handler for multiple event types
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) []*Subscription {
	subs := make([]*Subscription, 0, len(eventTypes))
	for _, et := range eventTypes {
		subs = append(subs, b.Subscribe(et, handler))
	}
	return subs
}

// Publish delivers an event to all subscribed handlers, synchronously, in
// registration order.
func (b *EventBus) Publish(event Event) {
	for _, sub := range b.snapshot(event.Type) {
		b.invoke(sub.handler, event)
	}
}

// PublishAsync delivers the event from a new goroutine so the producer never
// blocks on slow handlers. Ordering across separate PublishAsync calls is not
// guaranteed.
func (b *EventBus) PublishAsync(event Event) {
	go b.Publish(event)
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]subscriber)
}

func (b *EventBus) snapshot(eventType EventType) []subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := make([]subscriber, len(b.handlers[eventType]))
	copy(subs, b.handlers[eventType])
	return subs
}

func (b *EventBus) invoke(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event", string(event.Type)).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	h(event)
}

func (b *EventBus) remove(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}
