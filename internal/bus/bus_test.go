package bus

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestEventBus_PublishInRegistrationOrder(t *testing.T) {
	b := NewEventBus(zerolog.Nop())

	var order []int
	b.Subscribe(EventTypeTranscription, func(Event) { order = append(order, 1) })
	b.Subscribe(EventTypeTranscription, func(Event) { order = append(order, 2) })
	b.Subscribe(EventTypeTranscription, func(Event) { order = append(order, 3) })

	b.Publish(Event{Type: EventTypeTranscription})

	if len(order) != 3 {
		t.Fatalf("expected 3 handler calls, got %d", len(order))
	}
	for i, v := range order {
		if v != i+1 {
			t.Errorf("expected handler %d at position %d, got %d", i+1, i, v)
		}
	}
}

func TestEventBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	b := NewEventBus(zerolog.Nop())

	called := false
	b.Subscribe(EventTypeVoiceError, func(Event) { panic("boom") })
	b.Subscribe(EventTypeVoiceError, func(Event) { called = true })

	b.Publish(Event{Type: EventTypeVoiceError})

	if !called {
		t.Error("expected second handler to run after first panicked")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	b := NewEventBus(zerolog.Nop())

	count := 0
	sub := b.Subscribe(EventTypeToolNeeded, func(Event) { count++ })
	b.Publish(Event{Type: EventTypeToolNeeded})

	sub.Unsubscribe()
	b.Publish(Event{Type: EventTypeToolNeeded})

	if count != 1 {
		t.Errorf("expected 1 call after unsubscribe, got %d", count)
	}

	// Double unsubscribe is a no-op
	sub.Unsubscribe()
}

func TestEventBus_UnsubscribePreservesOthers(t *testing.T) {
	b := NewEventBus(zerolog.Nop())

	var got []string
	s1 := b.Subscribe(EventTypeTaskCompleted, func(Event) { got = append(got, "a") })
	b.Subscribe(EventTypeTaskCompleted, func(Event) { got = append(got, "b") })

	s1.Unsubscribe()
	b.Publish(Event{Type: EventTypeTaskCompleted})

	if len(got) != 1 || got[0] != "b" {
		t.Errorf("expected only remaining handler to run, got %v", got)
	}
}

func TestEventBus_PublishCarriesData(t *testing.T) {
	b := NewEventBus(zerolog.Nop())

	var text string
	b.Subscribe(EventTypeTranscription, func(e Event) {
		text, _ = e.Data["text"].(string)
	})

	b.Publish(Event{Type: EventTypeTranscription, Data: map[string]any{"text": "hello"}})

	if text != "hello" {
		t.Errorf("expected payload to reach handler, got %q", text)
	}
}

func TestEventBus_Clear(t *testing.T) {
	b := NewEventBus(zerolog.Nop())

	count := 0
	b.Subscribe(EventTypeVoiceReady, func(Event) { count++ })
	b.Clear()
	b.Publish(Event{Type: EventTypeVoiceReady})

	if count != 0 {
		t.Errorf("expected no calls after Clear, got %d", count)
	}
}
