package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/jarvisbridge/internal/bus"
	"github.com/normanking/jarvisbridge/internal/config"
)

// fakeDriver records the step sequence and fails configurable steps.
type fakeDriver struct {
	mu          sync.Mutex
	steps       []string
	pasted      []string
	focusFails  map[string]bool // by title substring
	openFails   bool
	pasteFails  bool
	submitFails bool
}

func (d *fakeDriver) record(step string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.steps = append(d.steps, step)
}

func (d *fakeDriver) Steps() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.steps))
	copy(out, d.steps)
	return out
}

func (d *fakeDriver) FocusWindow(_ context.Context, title string) error {
	d.record("focus:" + title)
	if d.focusFails[title] {
		return errors.New("window not found")
	}
	return nil
}

func (d *fakeDriver) OpenInputSurface(context.Context) error {
	d.record("open")
	if d.openFails {
		return errors.New("open failed")
	}
	return nil
}

func (d *fakeDriver) SetClipboardAndPaste(_ context.Context, text string) error {
	d.record("paste")
	d.mu.Lock()
	d.pasted = append(d.pasted, text)
	d.mu.Unlock()
	if d.pasteFails {
		return errors.New("paste failed")
	}
	return nil
}

func (d *fakeDriver) PressSubmit(context.Context) error {
	d.record("submit")
	if d.submitFails {
		return errors.New("submit failed")
	}
	return nil
}

func (d *fakeDriver) PressKey(_ context.Context, key string) error {
	d.record("key:" + key)
	return nil
}

func (d *fakeDriver) IsAvailable() bool { return true }

func newTestBridge(d *fakeDriver) *Bridge {
	b := NewBridge(d, config.AutomationConfig{
		PreferredTitle: "Cursor",
		FallbackTitle:  "Visual Studio Code",
		SettleDelay:    time.Millisecond,
	}, zerolog.Nop())
	b.sleep = func(time.Duration) {}
	return b
}

func TestBridge_Deliver_HappyPathSequence(t *testing.T) {
	d := &fakeDriver{}
	b := newTestBridge(d)

	result := b.Deliver(context.Background(), "add a login button")

	require.True(t, result.OK)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, []string{"focus:Cursor", "open", "paste", "submit"}, d.Steps())
}

func TestBridge_Deliver_FallsBackToPrimaryWindow(t *testing.T) {
	d := &fakeDriver{focusFails: map[string]bool{"Cursor": true}}
	b := newTestBridge(d)

	result := b.Deliver(context.Background(), "do the thing")

	require.True(t, result.OK)
	assert.Empty(t, result.Warnings, "silent fallback must not surface a warning")
	assert.Equal(t, []string{"focus:Cursor", "focus:Visual Studio Code", "open", "paste", "submit"}, d.Steps())
}

func TestBridge_Deliver_TotalFocusFailureIsWarningOnly(t *testing.T) {
	d := &fakeDriver{focusFails: map[string]bool{"Cursor": true, "Visual Studio Code": true}}
	b := newTestBridge(d)

	result := b.Deliver(context.Background(), "do the thing")

	require.True(t, result.OK, "delivery proceeds even when focus fails entirely")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "focus failed")
}

func TestBridge_Deliver_SanitizesBeforePaste(t *testing.T) {
	d := &fakeDriver{}
	b := newTestBridge(d)

	b.Deliver(context.Background(), "Add a “login” button — now…")

	require.Len(t, d.pasted, 1)
	assert.Equal(t, `Add a "login" button - now...`, d.pasted[0])
}

func TestBridge_Deliver_PasteFailureIsTotalFailure(t *testing.T) {
	d := &fakeDriver{pasteFails: true}
	b := newTestBridge(d)

	result := b.Deliver(context.Background(), "do it")

	assert.False(t, result.OK)
	require.Error(t, result.Err)
	// The sequence still ran to completion best-effort
	assert.Equal(t, []string{"focus:Cursor", "open", "paste", "submit"}, d.Steps())
}

func TestBridge_Deliver_OpenFailureIsWarningWhenPasteSucceeds(t *testing.T) {
	d := &fakeDriver{openFails: true}
	b := newTestBridge(d)

	result := b.Deliver(context.Background(), "do it")

	assert.True(t, result.OK)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "open input surface failed")
}

func TestQueue_SerializesInvocations(t *testing.T) {
	d := &fakeDriver{}
	b := newTestBridge(d)
	eventBus := bus.NewEventBus(zerolog.Nop())

	invoked := make(chan string, 4)
	eventBus.Subscribe(bus.EventTypeAgentInvoked, func(e bus.Event) {
		id, _ := e.Data["id"].(string)
		invoked <- id
	})

	q := NewQueue(b, eventBus, 4, zerolog.Nop())
	q.Start(context.Background())
	defer q.Stop()

	id1, err := q.Enqueue("first instruction")
	require.NoError(t, err)
	id2, err := q.Enqueue("second instruction")
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case id := <-invoked:
			got = append(got, id)
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for invocations")
		}
	}
	assert.Equal(t, []string{id1, id2}, got, "invocations complete in arrival order")

	// Both sequences ran, strictly one after the other
	steps := d.Steps()
	require.Len(t, steps, 8)
	assert.Equal(t, "focus:Cursor", steps[0])
	assert.Equal(t, "submit", steps[3])
	assert.Equal(t, "focus:Cursor", steps[4])
	assert.Equal(t, "submit", steps[7])
}

func TestQueue_FailedDeliveryPublishesFailure(t *testing.T) {
	d := &fakeDriver{pasteFails: true}
	b := newTestBridge(d)
	eventBus := bus.NewEventBus(zerolog.Nop())

	failed := make(chan struct{}, 1)
	eventBus.Subscribe(bus.EventTypeAgentInvokeFailed, func(bus.Event) { failed <- struct{}{} })

	q := NewQueue(b, eventBus, 4, zerolog.Nop())
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue("doomed")
	require.NoError(t, err)

	select {
	case <-failed:
	case <-time.After(3 * time.Second):
		t.Fatal("expected invoke_failed event")
	}
}

func TestQueue_EnqueueRequiresRunning(t *testing.T) {
	q := NewQueue(newTestBridge(&fakeDriver{}), bus.NewEventBus(zerolog.Nop()), 4, zerolog.Nop())

	_, err := q.Enqueue("too early")
	assert.Error(t, err)
}

func TestQueue_RejectsWhenFull(t *testing.T) {
	d := &fakeDriver{}
	b := newTestBridge(d)
	// Block the worker so the queue backs up
	b.sleep = func(time.Duration) { time.Sleep(50 * time.Millisecond) }

	q := NewQueue(b, bus.NewEventBus(zerolog.Nop()), 1, zerolog.Nop())
	q.Start(context.Background())
	defer q.Stop()

	// First fills the worker, second fills the buffer, third must be rejected
	_, err := q.Enqueue("a")
	require.NoError(t, err)
	_, err = q.Enqueue("b")
	if err == nil {
		_, err = q.Enqueue("c")
	}
	assert.Error(t, err, "expected queue-full rejection")
}
