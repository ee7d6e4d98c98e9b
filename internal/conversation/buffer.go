// Package conversation provides the rolling conversation context used by
// background intent analysis.
package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Intent is the classified purpose of a turn.
type Intent string

const (
	IntentThinking     Intent = "thinking"
	IntentActionable   Intent = "actionable"
	IntentConfirmation Intent = "confirmation"
)

// Turn is one utterance recorded in the buffer. Immutable once created.
type Turn struct {
	Timestamp time.Time `json:"timestamp"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Intent    Intent    `json:"intent,omitempty"`
}

// Config bounds the buffer.
type Config struct {
	// MaxTurns is the maximum number of turns to retain (default: 10)
	MaxTurns int
	// MaxAge is the retention window measured against the latest insert (default: 5 minutes)
	MaxAge time.Duration
}

// DefaultConfig returns sensible defaults for the conversation buffer.
func DefaultConfig() Config {
	return Config{
		MaxTurns: 10,
		MaxAge:   5 * time.Minute,
	}
}

// Buffer is a bounded, time-windowed ordered log of conversation turns.
// Two eviction rules hold after every insert: entries older than MaxAge are
// discarded, then only the most recent MaxTurns entries are retained.
type Buffer struct {
	mu     sync.RWMutex
	turns  []Turn
	config Config
	now    func() time.Time
}

// NewBuffer creates a Buffer with the given config.
func NewBuffer(config Config) *Buffer {
	if config.MaxTurns <= 0 {
		config.MaxTurns = 10
	}
	if config.MaxAge <= 0 {
		config.MaxAge = 5 * time.Minute
	}

	return &Buffer{
		turns:  make([]Turn, 0, config.MaxTurns),
		config: config,
		now:    time.Now,
	}
}

// AddTurn appends a turn and applies both eviction rules.
func (b *Buffer) AddTurn(speaker Speaker, text string) {
	b.AddTurnWithIntent(speaker, text, "")
}

// AddTurnWithIntent appends a turn tagged with its classified intent.
func (b *Buffer) AddTurnWithIntent(speaker Speaker, text string, intent Intent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.turns = append(b.turns, Turn{
		Timestamp: b.now(),
		Speaker:   speaker,
		Text:      text,
		Intent:    intent,
	})
	b.evictLocked()
}

// Recent returns the last n turns in insertion order, fewer if the buffer
// holds less. Never fails.
func (b *Buffer) Recent(n int) []Turn {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || len(b.turns) == 0 {
		return nil
	}
	start := len(b.turns) - n
	if start < 0 {
		start = 0
	}

	out := make([]Turn, len(b.turns)-start)
	copy(out, b.turns[start:])
	return out
}

// ContextString formats the last n turns for an analysis prompt.
func (b *Buffer) ContextString(n int) string {
	turns := b.Recent(n)
	if len(turns) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Recent conversation:\n")
	for _, t := range turns {
		label := "User"
		if t.Speaker == SpeakerAssistant {
			label = "Assistant"
		}
		text := t.Text
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, text)
	}
	return sb.String()
}

// Len returns the number of retained turns.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.turns)
}

// Clear empties the buffer immediately. Used on explicit session reset.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = make([]Turn, 0, b.config.MaxTurns)
}

// Config returns the buffer configuration.
func (b *Buffer) Config() Config {
	return b.config
}

// evictLocked applies age-based eviction then the count cap. Caller holds the lock.
func (b *Buffer) evictLocked() {
	cutoff := b.now().Add(-b.config.MaxAge)
	kept := b.turns[:0]
	for _, t := range b.turns {
		if !t.Timestamp.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	b.turns = kept

	if len(b.turns) > b.config.MaxTurns {
		b.turns = b.turns[len(b.turns)-b.config.MaxTurns:]
	}
}
