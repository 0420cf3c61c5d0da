package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/audio"
	"github.com/satriahrh/lingua/internal/listening"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningStop  MessageType = "listening_stop"
	MessageTypeListeningState MessageType = "listening_state"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypeError          MessageType = "error"
)

const (
	defaultSampleRate = 16000
	minSampleRate     = 8000
	maxSampleRate     = 48000
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// ListeningStartMessage opens a hands-free listening session. Binary frames
// that follow carry PCM16LE mono audio at SampleRate.
type ListeningStartMessage struct {
	BaseMessage
	Language          string `json:"language"`
	Difficulty        string `json:"difficulty"`
	Scenario          string `json:"scenario"`
	TeachingIntensity string `json:"teaching_intensity"`
	SessionID         string `json:"session_id"`
	InputLanguage     string `json:"input_language"`
	SampleRate        int    `json:"sample_rate"`
	Continuous        bool   `json:"continuous"`
	// Synthesize defaults to true when omitted.
	Synthesize       *bool   `json:"synthesize,omitempty"`
	Voice            string  `json:"voice"`
	SilenceThreshold float64 `json:"silence_threshold"`
	SilenceMs        int     `json:"silence_ms"`
	MaxMs            int     `json:"max_ms"`
	ResumeMs         int     `json:"resume_ms"`
}

// ListeningConfig converts the message into machine settings; zero values
// fall back to the given defaults. A default max duration is also the
// ceiling for max_ms.
func (m *ListeningStartMessage) ListeningConfig(defaults listening.Config) listening.Config {
	cfg := defaults
	cfg.Continuous = m.Continuous
	if m.SilenceThreshold > 0 {
		cfg.SilenceThreshold = m.SilenceThreshold
	}
	if m.SilenceMs > 0 {
		cfg.SilenceDuration = time.Duration(m.SilenceMs) * time.Millisecond
	}
	if m.MaxMs > 0 {
		limit := time.Duration(m.MaxMs) * time.Millisecond
		if defaults.MaxDuration <= 0 || limit < defaults.MaxDuration {
			cfg.MaxDuration = limit
		}
	}
	if m.ResumeMs > 0 {
		cfg.ResumeDelay = time.Duration(m.ResumeMs) * time.Millisecond
	}
	return cfg
}

// WantsSynthesis reports whether replies should be voiced.
func (m *ListeningStartMessage) WantsSynthesis() bool {
	return m.Synthesize == nil || *m.Synthesize
}

// ListeningStateMessage reports a recorder state change
type ListeningStateMessage struct {
	BaseMessage
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
}

// ErrorMessage carries the same fields as a stream error event
type ErrorMessage struct {
	BaseMessage
	Error string      `json:"error"`
	Kind  domain.Kind `json:"kind"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming text frame
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening_start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningStop, MessageTypePing:
		return &base, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateListeningStart checks ranges and fills the default sample rate
func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.SampleRate == 0 {
		msg.SampleRate = defaultSampleRate
	}
	if msg.SampleRate < minSampleRate || msg.SampleRate > maxSampleRate {
		return fmt.Errorf("sample_rate must be between %d and %d", minSampleRate, maxSampleRate)
	}
	if msg.SilenceThreshold < 0 || msg.SilenceThreshold > 1 {
		return fmt.Errorf("silence_threshold must be between 0 and 1")
	}
	if msg.SilenceMs < 0 || msg.MaxMs < 0 || msg.ResumeMs < 0 {
		return fmt.Errorf("silence_ms, max_ms and resume_ms must not be negative")
	}
	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(err error) *ErrorMessage {
	kind := domain.KindOf(err)
	if kind == "" {
		kind = domain.KindInvalidRequest
	}
	return &ErrorMessage{
		BaseMessage: BaseMessage{Type: MessageTypeError, Timestamp: timestamp()},
		Error:       domain.MessageOf(err),
		Kind:        kind,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage() *PongMessage {
	return &PongMessage{BaseMessage: BaseMessage{Type: MessageTypePong, Timestamp: timestamp()}}
}

// CreateStateMessage reports the destination state of a transition
func CreateStateMessage(tr listening.Transition, sessionID string) *ListeningStateMessage {
	return &ListeningStateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeListeningState, Timestamp: timestamp()},
		State:       tr.To.String(),
		Reason:      string(tr.Reason),
		SessionID:   sessionID,
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// AudioConfig describes the clips recorded in this session
func (msg *ListeningStartMessage) AudioConfig() repositories.AudioConfig {
	return repositories.AudioConfig{
		ContentType: audio.ContentTypeWAV,
		Filename:    "listening.wav",
		Language:    msg.InputLanguage,
		SampleRate:  msg.SampleRate,
	}
}
