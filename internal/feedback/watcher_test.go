package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSummary(t *testing.T, path, timestamp string) {
	t.Helper()
	payload := map[string]any{
		"tldr":      "task finished",
		"changes":   []string{"did a thing"},
		"timestamp": timestamp,
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func startWatcher(t *testing.T, path string) (*Watcher, chan *Summary) {
	t.Helper()
	w := NewWatcher(path, 50*time.Millisecond, zerolog.Nop())

	delivered := make(chan *Summary, 10)
	w.OnSummary(func(s *Summary) { delivered <- s })

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w, delivered
}

func waitForSummary(t *testing.T, ch chan *Summary) *Summary {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for summary delivery")
		return nil
	}
}

func TestWatcher_DetectsFileCreatedAfterStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jarvis_summary.json")

	_, delivered := startWatcher(t, path)

	writeSummary(t, path, "2026-08-25T10:00:00")

	s := waitForSummary(t, delivered)
	assert.Equal(t, "task finished", s.TLDR)
	assert.Equal(t, "2026-08-25T10:00:00", s.Timestamp)
}

func TestWatcher_DetectsChangesToExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jarvis_summary.json")
	writeSummary(t, path, "2026-08-25T09:00:00")

	_, delivered := startWatcher(t, path)

	writeSummary(t, path, "2026-08-25T09:05:00")

	s := waitForSummary(t, delivered)
	assert.Equal(t, "2026-08-25T09:05:00", s.Timestamp)
}

func TestWatcher_DeduplicatesByTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jarvis_summary.json")

	_, delivered := startWatcher(t, path)

	writeSummary(t, path, "2026-08-25T10:00:00")
	first := waitForSummary(t, delivered)
	require.Equal(t, "2026-08-25T10:00:00", first.Timestamp)

	// Rewriting the same logical payload must not deliver again
	writeSummary(t, path, "2026-08-25T10:00:00")
	select {
	case s := <-delivered:
		t.Fatalf("duplicate timestamp delivered: %+v", s)
	case <-time.After(500 * time.Millisecond):
	}

	// A new timestamp is delivered
	writeSummary(t, path, "2026-08-25T10:01:00")
	second := waitForSummary(t, delivered)
	assert.Equal(t, "2026-08-25T10:01:00", second.Timestamp)
}

func TestWatcher_SurvivesMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jarvis_summary.json")

	_, delivered := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("{partial write"), 0644))
	select {
	case s := <-delivered:
		t.Fatalf("malformed payload delivered: %+v", s)
	case <-time.After(300 * time.Millisecond):
	}

	// A later valid write still gets through
	writeSummary(t, path, "2026-08-25T11:00:00")
	s := waitForSummary(t, delivered)
	assert.Equal(t, "2026-08-25T11:00:00", s.Timestamp)
}

func TestWatcher_DebouncesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jarvis_summary.json")

	_, delivered := startWatcher(t, path)

	// Burst of writes ending in one final payload
	for i := 0; i < 5; i++ {
		writeSummary(t, path, fmt.Sprintf("2026-08-25T10:00:0%d", i))
		time.Sleep(5 * time.Millisecond)
	}

	s := waitForSummary(t, delivered)
	assert.Equal(t, "2026-08-25T10:00:04", s.Timestamp, "debounce should coalesce to the final write")

	select {
	case extra := <-delivered:
		t.Fatalf("expected a single coalesced delivery, also got %+v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_AcceptsFencedSummaryInFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jarvis_summary.json")

	_, delivered := startWatcher(t, path)

	// An agent wrote its whole reply into the file instead of bare JSON
	reply := "Done with the task!\n\n```json\n" +
		`{"tldr": "wired the summary", "timestamp": "2026-08-25T13:00:00"}` +
		"\n```\n"
	require.NoError(t, os.WriteFile(path, []byte(reply), 0644))

	s := waitForSummary(t, delivered)
	assert.Equal(t, "wired the summary", s.TLDR)
	assert.Equal(t, "2026-08-25T13:00:00", s.Timestamp)
}

func TestWatcher_ContextCancelStopsObservation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jarvis_summary.json")

	w := NewWatcher(path, 50*time.Millisecond, zerolog.Nop())
	delivered := make(chan *Summary, 10)
	w.OnSummary(func(s *Summary) { delivered <- s })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	cancel()
	time.Sleep(100 * time.Millisecond)

	writeSummary(t, path, "2026-08-25T14:00:00")
	select {
	case s := <-delivered:
		t.Fatalf("delivery after cancellation: %+v", s)
	case <-time.After(300 * time.Millisecond):
	}

	// Stop after cancellation must not hang
	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop hung after context cancellation")
	}
}

func TestWatcher_DeliverFallbackSharesDedupState(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "s.json"), 50*time.Millisecond, zerolog.Nop())

	var got []*Summary
	w.OnSummary(func(s *Summary) { got = append(got, s) })

	s := &Summary{TLDR: "done", Timestamp: "2026-08-25T12:00:00"}
	assert.True(t, w.Deliver(s))
	assert.False(t, w.Deliver(s), "identical timestamp must be discarded")
	assert.Len(t, got, 1)
}
