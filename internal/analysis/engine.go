// Package analysis decides in the background whether recent conversation
// constitutes an actionable request for the coding agent.
package analysis

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/jarvisbridge/internal/bus"
	"github.com/normanking/jarvisbridge/internal/conversation"
)

// RequestIntent is the classified purpose of an actionable request.
type RequestIntent string

const (
	IntentFixBug       RequestIntent = "fix_bug"
	IntentAddFeature   RequestIntent = "add_feature"
	IntentRefactor     RequestIntent = "refactor"
	IntentConversation RequestIntent = "conversation"
	IntentUnknown      RequestIntent = "unknown"
)

var knownRequestIntents = map[RequestIntent]bool{
	IntentFixBug:       true,
	IntentAddFeature:   true,
	IntentRefactor:     true,
	IntentConversation: true,
	IntentUnknown:      true,
}

// Result is the outcome of one analysis pass. Consumed immediately; never
// persisted.
type Result struct {
	ToolNeeded       bool          `json:"toolNeeded"`
	Intent           RequestIntent `json:"intent"`
	Confidence       float64       `json:"confidence"`
	Summary          string        `json:"summary,omitempty"`
	ExtractedRequest string        `json:"extractedRequest,omitempty"`
}

// degradedResult is returned whenever the inference endpoint is unreachable
// or its output cannot be parsed.
func degradedResult() Result {
	return Result{ToolNeeded: false, Intent: IntentUnknown, Confidence: 0.3}
}

// Generator is the inference operation the engine depends on.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions mirrors the llm client's tuning knobs so the engine does
// not import the transport package directly.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// Config tunes the engine.
type Config struct {
	ContextTurns int           // Turns of context per pass (default: 5)
	Timeout      time.Duration // Upper bound on one inference call (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ContextTurns: 5,
		Timeout:      30 * time.Second,
	}
}

// Engine runs at most one background analysis pass at a time. A trigger that
// arrives while a pass is in flight is skipped entirely, never queued.
type Engine struct {
	llm    Generator
	buffer *conversation.Buffer
	bus    *bus.EventBus
	logger zerolog.Logger
	cfg    Config

	inFlight atomic.Bool
}

// NewEngine creates an analysis engine.
func NewEngine(llm Generator, buffer *conversation.Buffer, eventBus *bus.EventBus, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Engine{
		llm:    llm,
		buffer: buffer,
		bus:    eventBus,
		logger: logger.With().Str("component", "analysis").Logger(),
		cfg:    cfg,
	}
}

const classificationPrompt = `You are an intent classifier for a voice coding assistant.
Given the recent conversation, decide whether the user is asking the coding
agent to take action on the codebase.

Respond with ONLY a JSON object, no prose:
{"toolNeeded": bool, "intent": "fix_bug"|"add_feature"|"refactor"|"conversation"|"unknown", "confidence": 0.0-1.0, "summary": "one sentence", "extractedRequest": "the instruction to send, if any"}

Conversation:
`

// OnTurn triggers a background analysis pass for a new conversation turn.
// Returns true if a pass was started, false if one was already in flight.
func (e *Engine) OnTurn() bool {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Debug().Msg("analysis already in flight, skipping trigger")
		return false
	}

	go func() {
		defer e.inFlight.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
		defer cancel()

		result := e.Analyze(ctx)
		e.publish(result)
	}()

	return true
}

// Analyze runs one pass over the recent context. It never returns an error:
// inference failures degrade to a low-confidence non-actionable result.
func (e *Engine) Analyze(ctx context.Context) Result {
	contextStr := e.buffer.ContextString(e.cfg.ContextTurns)
	if contextStr == "" {
		return degradedResult()
	}

	raw, err := e.llm.Generate(ctx, classificationPrompt+contextStr, GenerateOptions{
		Temperature: 0.2,
		MaxTokens:   300,
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("inference failed, degrading")
		return degradedResult()
	}

	result, ok := parseResult(raw)
	if !ok {
		e.logger.Warn().Str("raw", truncate(raw, 200)).Msg("unparsable analysis output, degrading")
		return degradedResult()
	}
	return result
}

// publish raises the completion event, and the tool-invocation event when the
// pass found an actionable request. The engine only signals intent; it never
// invokes the tool bridge directly.
func (e *Engine) publish(result Result) {
	e.bus.Publish(bus.Event{
		Type: bus.EventTypeAnalysisCompleted,
		Data: map[string]any{
			"toolNeeded": result.ToolNeeded,
			"intent":     string(result.Intent),
			"confidence": result.Confidence,
		},
	})

	if !result.ToolNeeded {
		return
	}

	request := result.ExtractedRequest
	if request == "" {
		request = result.Summary
	}
	if request == "" {
		return
	}

	e.bus.Publish(bus.Event{
		Type: bus.EventTypeToolNeeded,
		Data: map[string]any{
			"request": request,
			"intent":  string(result.Intent),
		},
	})
}

// parseResult extracts a Result from model output, tolerating fenced code
// blocks and surrounding prose.
func parseResult(raw string) (Result, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}, false
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Result{}, false
	}

	var result Result
	if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err != nil {
		return Result{}, false
	}

	if !knownRequestIntents[result.Intent] {
		result.Intent = IntentUnknown
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return result, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
