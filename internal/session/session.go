// Package session wires the orchestration components into one conversation
// session with an explicit lifecycle.
package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/normanking/jarvisbridge/internal/analysis"
	"github.com/normanking/jarvisbridge/internal/automation"
	"github.com/normanking/jarvisbridge/internal/bus"
	"github.com/normanking/jarvisbridge/internal/config"
	"github.com/normanking/jarvisbridge/internal/conversation"
	"github.com/normanking/jarvisbridge/internal/feedback"
	"github.com/normanking/jarvisbridge/internal/llm"
	"github.com/normanking/jarvisbridge/internal/voice"
)

// Session owns every component of one conversation loop: the event bus, the
// conversation buffer, the voice subprocess bridge, the analysis engine, the
// automation queue, and the completion watcher. All cross-component state
// lives here rather than in package globals.
type Session struct {
	cfg    *config.Config
	logger zerolog.Logger

	Bus     *bus.EventBus
	Buffer  *conversation.Buffer
	Filter  *conversation.TranscriptFilter
	Voice   *voice.Service
	Engine  *analysis.Engine
	Queue   *automation.Queue
	Watcher *feedback.Watcher

	subs   []*bus.Subscription
	cancel context.CancelFunc
}

// New assembles a session from configuration. The automation driver is
// injected so callers (and tests) control how OS input injection happens.
func New(cfg *config.Config, driver automation.Driver, logger zerolog.Logger) *Session {
	eventBus := bus.NewEventBus(logger)

	buffer := conversation.NewBuffer(conversation.Config{
		MaxTurns: cfg.Analysis.MaxTurns,
		MaxAge:   cfg.Analysis.MaxTurnAge,
	})

	llmClient := llm.NewClient(&llm.ClientConfig{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	engine := analysis.NewEngine(generatorAdapter{llmClient}, buffer, eventBus, analysis.Config{
		ContextTurns: cfg.Analysis.ContextTurns,
		Timeout:      cfg.LLM.Timeout,
	}, logger)

	bridge := automation.NewBridge(driver, cfg.Automation, logger)
	queue := automation.NewQueue(bridge, eventBus, cfg.Automation.QueueSize, logger)

	watcher := feedback.NewWatcher(cfg.Feedback.SummaryPath, cfg.Feedback.Debounce, logger)

	voiceSvc := voice.NewService(cfg.Voice, cfg.LLM.BaseURL, eventBus, logger)

	return &Session{
		cfg:     cfg,
		logger:  logger.With().Str("component", "session").Logger(),
		Bus:     eventBus,
		Buffer:  buffer,
		Filter:  conversation.NewTranscriptFilter(nil),
		Voice:   voiceSvc,
		Engine:  engine,
		Queue:   queue,
		Watcher: watcher,
	}
}

// generatorAdapter bridges the llm client into the engine's Generator port.
type generatorAdapter struct {
	c *llm.Client
}

func (g generatorAdapter) Generate(ctx context.Context, prompt string, opts analysis.GenerateOptions) (string, error) {
	return g.c.Generate(ctx, prompt, llm.GenerateOptions{
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
}

// Start wires the event flow and brings every component up. The voice
// subprocess failing to spawn is fatal to the session; everything else
// degrades.
func (s *Session) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wire()

	s.Queue.Start(ctx)
	if err := s.Watcher.Start(ctx); err != nil {
		// The conversation still works without completion announcements.
		s.logger.Warn().Err(err).Msg("completion watcher failed to start")
	}

	if err := s.Voice.Start(); err != nil {
		return fmt.Errorf("voice session unavailable: %w", err)
	}
	if err := s.Voice.WaitUntilReady(s.cfg.Voice.StartupTimeout); err != nil {
		s.Voice.Stop()
		return fmt.Errorf("voice session unavailable: %w", err)
	}

	s.logger.Info().Msg("session started")
	return nil
}

// wire subscribes the cross-component event handlers.
func (s *Session) wire() {
	// Full conversational turn: record both halves, then trigger one
	// background analysis pass.
	s.subs = append(s.subs, s.Bus.Subscribe(bus.EventTypeConversationTurn, func(e bus.Event) {
		userText, _ := e.Data["user_text"].(string)
		jarvisText, _ := e.Data["jarvis_response"].(string)
		if cleaned, ok := s.Filter.Clean(userText); ok {
			cls := analysis.Classify(cleaned)
			s.Buffer.AddTurnWithIntent(conversation.SpeakerUser, cleaned, cls.Intent)
		}
		if jarvisText != "" {
			s.Buffer.AddTurn(conversation.SpeakerAssistant, jarvisText)
		}
		s.Engine.OnTurn()
	}))

	// The subprocess itself decided an instruction is warranted: deliver it
	// without a second classification pass.
	s.subs = append(s.subs, s.Bus.Subscribe(bus.EventTypeInstruction, func(e bus.Event) {
		instruction, _ := e.Data["instruction"].(string)
		s.enqueue(instruction)
	}))

	// Background analysis found an actionable request.
	s.subs = append(s.subs, s.Bus.Subscribe(bus.EventTypeToolNeeded, func(e bus.Event) {
		request, _ := e.Data["request"].(string)
		s.enqueue(request)
	}))

	// Delivery failed outright: tell the user, keep the conversation going.
	s.subs = append(s.subs, s.Bus.Subscribe(bus.EventTypeAgentInvokeFailed, func(e bus.Event) {
		if err := s.Voice.SendCommand(&voice.Command{
			Command: voice.CommandAnnounce,
			Text:    "I couldn't deliver that instruction to the code agent.",
		}); err != nil {
			s.logger.Warn().Err(err).Msg("could not announce delivery failure")
		}
	}))

	s.subs = append(s.subs, s.Bus.Subscribe(bus.EventTypeVoiceCrashed, func(e bus.Event) {
		s.logger.Error().Interface("error", e.Data["error"]).Msg("voice service crashed; voice interaction unavailable")
	}))

	// Agent completion: republish on the bus and vocalize the summary.
	s.Watcher.OnSummary(func(sum *feedback.Summary) {
		s.Bus.Publish(bus.Event{
			Type: bus.EventTypeTaskCompleted,
			Data: map[string]any{"tldr": sum.TLDR, "timestamp": sum.Timestamp},
		})
		s.announce(sum)
	})
}

func (s *Session) enqueue(instruction string) {
	if instruction == "" {
		return
	}
	id, err := s.Queue.Enqueue(instruction)
	if err != nil {
		s.logger.Error().Err(err).Msg("could not queue instruction")
		return
	}
	s.logger.Info().Str("id", id).Str("instruction", instruction).Msg("instruction queued for delivery")
}

// announce pushes a completion summary back into the voice subprocess so it
// is spoken to the user.
func (s *Session) announce(sum *feedback.Summary) {
	if err := s.Voice.AnnounceSummary(sum); err != nil {
		s.logger.Warn().Err(err).Msg("could not announce completion")
	}
}

// Mute pauses the microphone.
func (s *Session) Mute() error {
	return s.Voice.SendCommand(&voice.Command{Command: voice.CommandMute})
}

// Unmute resumes the microphone.
func (s *Session) Unmute() error {
	return s.Voice.SendCommand(&voice.Command{Command: voice.CommandUnmute})
}

// ChangeVoice switches the TTS voice.
func (s *Session) ChangeVoice(voiceID string) error {
	return s.Voice.SendCommand(&voice.Command{Command: voice.CommandChangeVoice, Voice: voiceID})
}

// ResetContext clears the conversation on both sides of the process
// boundary.
func (s *Session) ResetContext() error {
	s.Buffer.Clear()
	return s.Voice.SendCommand(&voice.Command{Command: voice.CommandResetContext})
}

// Stop tears the session down: voice subprocess first so no new turns
// arrive, then the queue and watcher.
func (s *Session) Stop() {
	s.Voice.Stop()
	s.Queue.Stop()
	s.Watcher.Stop()

	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil

	if s.cancel != nil {
		s.cancel()
	}

	s.logger.Info().Msg("session stopped")
}
