package voice

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/jarvisbridge/internal/bus"
	"github.com/normanking/jarvisbridge/internal/config"
	"github.com/normanking/jarvisbridge/internal/feedback"
)

// State is the bridge lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// SpawnError indicates the subprocess could not be started. Fatal to the
// voice session; surfaced to the user.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn voice service %q: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Listener receives every parsed inbound message.
type Listener func(*Message)

// Service owns exactly one long-running voice subprocess and translates its
// line-delimited output into bus events. Commands written to stdin are
// fire-and-forget.
type Service struct {
	cfg       config.VoiceConfig
	ollamaURL string
	bus       *bus.EventBus
	logger    zerolog.Logger

	mu         sync.Mutex
	state      State
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stopping   bool
	listeners  []Listener
	done       chan struct{}
	ready      chan struct{}
	readerDone chan struct{}
	readyOnce  sync.Once
}

// NewService creates an idle voice service bridge.
func NewService(cfg config.VoiceConfig, ollamaURL string, eventBus *bus.EventBus, logger zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		ollamaURL: ollamaURL,
		bus:       eventBus,
		logger:    logger.With().Str("component", "voice").Logger(),
		state:     StateIdle,
	}
}

// AddListener registers a listener for every parsed inbound message.
// Listeners must be registered before Start.
func (s *Service) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start spawns the subprocess with the injected environment and begins
// reading its output stream. Returns a SpawnError if the interpreter or
// script path is invalid.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return fmt.Errorf("voice service already running")
	}

	if _, err := os.Stat(s.cfg.ScriptPath); err != nil {
		return &SpawnError{Path: s.cfg.ScriptPath, Err: err}
	}

	cmd := exec.Command(s.cfg.PythonPath, s.cfg.ScriptPath)
	cmd.Env = append(os.Environ(),
		"WHISPER_MODEL="+s.cfg.WhisperModel,
		"SILENCE_TIMEOUT="+strconv.FormatFloat(s.cfg.SilenceTimeout, 'f', -1, 64),
		"OLLAMA_URL="+s.ollamaURL,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &SpawnError{Path: s.cfg.ScriptPath, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Path: s.cfg.ScriptPath, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Path: s.cfg.ScriptPath, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return &SpawnError{Path: s.cfg.PythonPath, Err: err}
	}

	s.cmd = cmd
	s.stdin = stdin
	s.state = StateRunning
	s.stopping = false
	s.done = make(chan struct{})
	s.ready = make(chan struct{})
	s.readerDone = make(chan struct{})
	s.readyOnce = sync.Once{}

	go s.readOutput(stdout)
	go s.drainStderr(stderr)
	go s.waitForExit()

	s.logger.Info().
		Str("script", s.cfg.ScriptPath).
		Str("model", s.cfg.WhisperModel).
		Msg("voice service started")

	return nil
}

// WaitUntilReady blocks until the subprocess reports ready, it exits, or the
// timeout elapses. Model loading dominates startup, so the bound is generous.
func (s *Service) WaitUntilReady(timeout time.Duration) error {
	s.mu.Lock()
	ready := s.ready
	done := s.done
	s.mu.Unlock()

	if ready == nil {
		return fmt.Errorf("voice service not started")
	}

	select {
	case <-ready:
		return nil
	case <-done:
		return fmt.Errorf("voice service exited before becoming ready")
	case <-time.After(timeout):
		return fmt.Errorf("voice service not ready after %v", timeout)
	}
}

// SendCommand serializes the command to one JSON line on the subprocess's
// stdin. No acknowledgment is awaited.
func (s *Service) SendCommand(cmd *Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || s.stdin == nil {
		return fmt.Errorf("voice service not running")
	}

	data, err := cmd.Encode()
	if err != nil {
		return err
	}
	if _, err := s.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

// AnnounceSummary speaks a completion summary through the subprocess. The
// composed readout rides along with the structured fields so the service can
// choose either form.
func (s *Service) AnnounceSummary(sum *feedback.Summary) error {
	return s.SendCommand(&Command{
		Command:       CommandAnnounce,
		Text:          feedback.ComposeAnnouncement(sum),
		Changes:       sum.Changes,
		Notes:         sum.Notes,
		Risks:         sum.Risks,
		NextQuestions: sum.NextQuestions,
	})
}

// Stop sends a shutdown command, waits a bounded grace period, then forcibly
// terminates the process. Always leaves the bridge Stopped.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.state = StateStopped
		s.mu.Unlock()
		return
	}
	s.stopping = true
	cmd := s.cmd
	done := s.done
	s.mu.Unlock()

	// Best effort graceful shutdown
	_ = s.SendCommand(&Command{Command: CommandShutdown})

	grace := s.cfg.StopGrace
	if grace <= 0 {
		grace = 3 * time.Second
	}

	select {
	case <-done:
	case <-time.After(grace):
		s.logger.Warn().Msg("voice service did not exit in time, killing")
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	s.logger.Info().Msg("voice service stopped")
}

func (s *Service) readOutput(stdout io.Reader) {
	defer close(s.readerDone)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := ParseMessage(line)
		if err != nil {
			// One malformed line is never fatal to the bridge.
			s.logger.Warn().Err(err).Str("line", truncate(string(line), 200)).Msg("dropping unparsable line")
			continue
		}

		s.dispatch(msg)
	}
}

func (s *Service) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		s.logger.Debug().Str("stderr", scanner.Text()).Msg("voice service stderr")
	}
}

// waitForExit reaps the subprocess. An exit that was not announced — neither
// requested via Stop nor preceded by shutdown_complete — is a crash: reported
// as an event, not re-spawned.
func (s *Service) waitForExit() {
	// Drain stdout to EOF before reaping so the final protocol lines — in
	// particular shutdown_complete — are dispatched before the exit is
	// classified.
	<-s.readerDone
	err := s.cmd.Wait()

	s.mu.Lock()
	stopping := s.stopping
	if stopping {
		s.state = StateStopped
	} else {
		s.state = StateIdle
	}
	close(s.done)
	s.mu.Unlock()

	if stopping {
		return
	}

	s.logger.Error().Err(err).Msg("voice service exited unexpectedly")
	s.bus.Publish(bus.Event{
		Type: bus.EventTypeVoiceCrashed,
		Data: map[string]any{"error": fmt.Sprint(err)},
	})
}

func (s *Service) dispatch(msg *Message) {
	s.mu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(msg)
	}

	switch msg.Type {
	case MessageTypeReady:
		s.readyOnce.Do(func() { close(s.ready) })
		s.bus.Publish(bus.Event{Type: bus.EventTypeVoiceReady})
	case MessageTypeStatus:
		s.bus.Publish(bus.Event{Type: bus.EventTypeVoiceStatus, Data: map[string]any{"message": msg.ErrMessage}})
	case MessageTypeTranscription:
		s.bus.Publish(bus.Event{Type: bus.EventTypeTranscription, Data: map[string]any{"text": msg.Text}})
	case MessageTypeJarvisSpeaking:
		s.bus.Publish(bus.Event{Type: bus.EventTypeJarvisSpeaking, Data: map[string]any{"text": msg.Text}})
	case MessageTypeConversationTurn:
		s.bus.Publish(bus.Event{Type: bus.EventTypeConversationTurn, Data: map[string]any{
			"user_text":       msg.UserText,
			"jarvis_response": msg.JarvisResponse,
		}})
	case MessageTypeInstruction:
		s.bus.Publish(bus.Event{Type: bus.EventTypeInstruction, Data: map[string]any{"instruction": msg.Instruction}})
	case MessageTypeShutdownComplete:
		// The service ends itself when the user says goodbye. The exit that
		// follows is a normal stop, not a crash.
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()
		s.logger.Info().Msg("voice service announced shutdown")
	case MessageTypeMuted:
		s.bus.Publish(bus.Event{Type: bus.EventTypeVoiceMuted})
	case MessageTypeUnmuted:
		s.bus.Publish(bus.Event{Type: bus.EventTypeVoiceUnmuted})
	case MessageTypeError:
		s.logger.Error().Str("message", msg.ErrMessage).Msg("voice service error")
		s.bus.Publish(bus.Event{Type: bus.EventTypeVoiceError, Data: map[string]any{"message": msg.ErrMessage}})
	case MessageTypeDebug:
		s.logger.Debug().Str("message", msg.ErrMessage).Msg("voice service debug")
	case MessageTypeUnknown:
		s.logger.Debug().Str("type", msg.RawType).Msg("unhandled message type")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
