// Package voice owns the long-running voice service subprocess and the
// line-delimited JSON protocol spoken over its stdin/stdout.
package voice

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates inbound messages (subprocess -> orchestrator).
type MessageType string

const (
	MessageTypeStatus             MessageType = "status"
	MessageTypeInitialized        MessageType = "initialized"
	MessageTypeReady              MessageType = "ready"
	MessageTypeUserSpeaking       MessageType = "user_speaking"
	MessageTypeHotwordDetected    MessageType = "hotword_detected"
	MessageTypeListening          MessageType = "listening"
	MessageTypeTranscription      MessageType = "transcription"
	MessageTypeJarvisSpeaking     MessageType = "jarvis_speaking"
	MessageTypeConversationTurn   MessageType = "conversation_turn"
	MessageTypeInstruction        MessageType = "instruction_detected"
	MessageTypeSilence            MessageType = "silence"
	MessageTypeMuted              MessageType = "muted"
	MessageTypeUnmuted            MessageType = "unmuted"
	MessageTypeError              MessageType = "error"
	MessageTypeDebug              MessageType = "debug"
	MessageTypeAudioStreamStarted MessageType = "audio_stream_started"
	MessageTypeShutdownComplete   MessageType = "shutdown_complete"

	// MessageTypeUnknown is the fallback for unrecognized discriminants.
	// RawType preserves what the subprocess actually sent.
	MessageTypeUnknown MessageType = "unknown"
)

var knownMessageTypes = map[MessageType]bool{
	MessageTypeStatus:             true,
	MessageTypeInitialized:        true,
	MessageTypeReady:              true,
	MessageTypeUserSpeaking:       true,
	MessageTypeHotwordDetected:    true,
	MessageTypeListening:          true,
	MessageTypeTranscription:      true,
	MessageTypeJarvisSpeaking:     true,
	MessageTypeConversationTurn:   true,
	MessageTypeInstruction:        true,
	MessageTypeSilence:            true,
	MessageTypeMuted:              true,
	MessageTypeUnmuted:            true,
	MessageTypeError:              true,
	MessageTypeDebug:              true,
	MessageTypeAudioStreamStarted: true,
	MessageTypeShutdownComplete:   true,
}

// Message is one inbound protocol line. Payload fields are optional and
// populated according to the type discriminant.
type Message struct {
	Type    MessageType `json:"type"`
	RawType string      `json:"-"`

	Text           string `json:"text,omitempty"`
	UserText       string `json:"user_text,omitempty"`
	JarvisResponse string `json:"jarvis_response,omitempty"`
	Instruction    string `json:"instruction,omitempty"`
	ErrMessage     string `json:"message,omitempty"`
}

// ParseMessage decodes one protocol line. A malformed line returns an error
// (the caller logs and drops it); an unrecognized type yields the Unknown
// variant with RawType retaining the original discriminant.
func ParseMessage(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("malformed protocol line: %w", err)
	}

	msg.RawType = string(msg.Type)
	if !knownMessageTypes[msg.Type] {
		msg.Type = MessageTypeUnknown
	}
	return &msg, nil
}

// CommandType discriminates outbound commands (orchestrator -> subprocess).
type CommandType string

const (
	CommandMute         CommandType = "mute"
	CommandUnmute       CommandType = "unmute"
	CommandShutdown     CommandType = "shutdown"
	CommandResetContext CommandType = "reset_context"
	CommandChangeVoice  CommandType = "change_voice"
	CommandAnnounce     CommandType = "announce"
)

// Command is one outbound protocol line. Field names match the voice
// service's stdin contract.
type Command struct {
	Command CommandType `json:"command"`

	Text          string   `json:"text,omitempty"`
	Voice         string   `json:"voice,omitempty"`
	Changes       []string `json:"changes,omitempty"`
	Notes         []string `json:"notes,omitempty"`
	Risks         []string `json:"risks,omitempty"`
	NextQuestions []string `json:"next_questions,omitempty"`
}

// Encode serializes the command as a single newline-terminated JSON line.
func (c *Command) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	return append(data, '\n'), nil
}
