package automation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/jarvisbridge/internal/bus"
)

// Invocation is one pending instruction delivery.
type Invocation struct {
	ID          string
	Instruction string
}

// Queue serializes invocations: the clipboard and input focus are shared OS
// resources, so at most one delivery sequence may be outstanding. Pending
// invocations wait in arrival order; when the queue is full new ones are
// rejected rather than dropped silently.
type Queue struct {
	bridge *Bridge
	bus    *bus.EventBus
	logger zerolog.Logger

	mu      sync.Mutex
	pending chan Invocation
	started bool
	done    chan struct{}
}

// NewQueue creates a stopped queue over the bridge.
func NewQueue(bridge *Bridge, eventBus *bus.EventBus, size int, logger zerolog.Logger) *Queue {
	if size <= 0 {
		size = 8
	}
	return &Queue{
		bridge:  bridge,
		bus:     eventBus,
		logger:  logger.With().Str("component", "automation-queue").Logger(),
		pending: make(chan Invocation, size),
	}
}

// Start launches the single worker goroutine.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	q.done = make(chan struct{})

	go q.run(ctx)
}

// Stop closes the queue and waits for already-queued invocations to drain.
// There is no cancellation primitive mid-sequence: the in-flight delivery
// always runs to completion or failure.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	close(q.pending)
	done := q.done
	q.mu.Unlock()

	<-done
}

// Enqueue submits an instruction for delivery and returns its invocation ID.
func (q *Queue) Enqueue(instruction string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return "", fmt.Errorf("invocation queue not running")
	}

	inv := Invocation{ID: uuid.NewString(), Instruction: instruction}
	select {
	case q.pending <- inv:
		q.logger.Debug().Str("id", inv.ID).Msg("invocation queued")
		return inv.ID, nil
	default:
		return "", fmt.Errorf("invocation queue full")
	}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	for inv := range q.pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result := q.bridge.Deliver(ctx, inv.Instruction)
		if result.OK {
			q.bus.Publish(bus.Event{
				Type: bus.EventTypeAgentInvoked,
				Data: map[string]any{
					"id":       inv.ID,
					"warnings": result.Warnings,
				},
			})
			continue
		}

		q.logger.Error().Err(result.Err).Str("id", inv.ID).Msg("invocation failed")
		q.bus.Publish(bus.Event{
			Type: bus.EventTypeAgentInvokeFailed,
			Data: map[string]any{
				"id":    inv.ID,
				"error": fmt.Sprint(result.Err),
			},
		})
	}
}
