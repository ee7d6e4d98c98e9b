package feedback

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Handler receives each newly delivered summary.
type Handler func(*Summary)

// Watcher observes the well-known summary file for completion payloads
// written by the external agent. The file itself is owned by the agent; the
// watcher only reads it.
//
// If the file does not exist yet, the watcher monitors the parent directory
// for a create event naming that exact file, then switches to watching the
// file directly. Change events are debounced to ride out partial writes, and
// a parsed summary is delivered only when its timestamp differs from the
// previously delivered one.
type Watcher struct {
	path        string
	debounceDur time.Duration
	logger      zerolog.Logger

	mu            sync.Mutex
	fsw           *fsnotify.Watcher
	handlers      []Handler
	lastTimestamp string
	watchingFile  bool
	started       bool
	done          chan struct{}
}

// NewWatcher creates a stopped watcher for the given summary file path.
func NewWatcher(path string, debounceDur time.Duration, logger zerolog.Logger) *Watcher {
	if debounceDur <= 0 {
		debounceDur = 300 * time.Millisecond
	}
	return &Watcher{
		path:        path,
		debounceDur: debounceDur,
		logger:      logger.With().Str("component", "feedback").Logger(),
	}
}

// OnSummary registers a handler for delivered summaries. Handlers must be
// registered before Start.
func (w *Watcher) OnSummary(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Start begins watching. Safe to call when the summary file does not exist.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	w.started = true
	w.done = make(chan struct{})

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.logger.Warn().Err(err).Str("dir", dir).Msg("could not create watch directory")
	}

	if _, err := os.Stat(w.path); err == nil {
		w.watchingFile = true
		if err := fsw.Add(w.path); err != nil {
			w.logger.Warn().Err(err).Msg("direct file watch failed, falling back to directory")
			w.watchingFile = false
		}
	}
	if !w.watchingFile {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			w.started = false
			return err
		}
	}

	go w.run(ctx)

	w.logger.Info().Str("path", w.path).Bool("direct", w.watchingFile).Msg("watching for completion summaries")
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	fsw := w.fsw
	done := w.done
	w.mu.Unlock()

	fsw.Close()
	<-done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	debounced := debounce.New(w.debounceDur)

	for {
		select {
		case <-ctx.Done():
			// Close is idempotent; Stop may run later.
			w.fsw.Close()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}

			// Upgrade from directory watch to direct file watch once the
			// file exists.
			w.mu.Lock()
			if !w.watchingFile && event.Op.Has(fsnotify.Create) {
				if err := w.fsw.Add(w.path); err == nil {
					w.watchingFile = true
				}
			}
			w.mu.Unlock()

			debounced(w.readAndDeliver)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

// relevant reports whether the event names the summary file and describes a
// write or create.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.path)
}

// readAndDeliver parses the file and hands the summary to subscribers unless
// its timestamp matches the last delivered one. Read and parse failures are
// logged; the watcher keeps running.
func (w *Watcher) readAndDeliver() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("could not read summary file")
		return
	}

	summary, err := ParseSummary(data)
	if err != nil {
		// Some agents write their whole reply instead of bare JSON; accept a
		// fenced summary block inside it.
		summary, err = ParseFromText(string(data))
	}
	if err != nil {
		w.logger.Warn().Err(err).Msg("could not parse summary file")
		return
	}

	if w.Deliver(summary) {
		w.logger.Info().Str("tldr", summary.TLDR).Msg("completion summary delivered")
	} else {
		w.logger.Debug().Str("timestamp", summary.Timestamp).Msg("duplicate summary discarded")
	}
}

// Deliver pushes a summary through the timestamp dedup gate to all handlers.
// Reports whether the summary was new.
func (w *Watcher) Deliver(summary *Summary) bool {
	w.mu.Lock()
	if summary.Timestamp == w.lastTimestamp {
		w.mu.Unlock()
		return false
	}
	w.lastTimestamp = summary.Timestamp
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, h := range handlers {
		h(summary)
	}
	return true
}
