package stt

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/audio"
)

// MockSpeechToText returns canned transcriptions without a recognition engine
type MockSpeechToText struct {
	logger *zap.Logger
	text   string

	mu    sync.Mutex
	calls int
}

// NewMockSpeechToText creates a mock. A non-empty text is returned for every
// clip; otherwise the transcription depends on the clip size.
func NewMockSpeechToText(text string, logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{text: text, logger: logger}
}

func (m *MockSpeechToText) Name() string {
	return "mock"
}

func (m *MockSpeechToText) Ready(ctx context.Context) error {
	return nil
}

// Calls returns how many clips were transcribed.
func (m *MockSpeechToText) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockSpeechToText) Transcribe(ctx context.Context, data []byte, config repositories.AudioConfig) (*repositories.Transcription, error) {
	m.logger.Info("Processing speech-to-text",
		zap.Int("audioSize", len(data)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("contentType", config.ContentType))

	if len(data) == 0 {
		return nil, domain.InvalidRequest("no audio data received")
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NewError(domain.KindTranscriptionFailure, "transcription cancelled", err)
	}

	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	text := m.text
	if text == "" {
		switch {
		case len(data) > 10000:
			text = "Hola, ¿cómo estás? Quiero practicar mi español hoy."
		case len(data) > 5000:
			text = "Muchas gracias por tu ayuda."
		case len(data) > 1000:
			text = "¡Hola!"
		default:
			text = "Hola"
		}
	}

	language := entities.NormalizeLanguage(config.Language)
	if language == "" {
		language = "es"
	}
	result := &repositories.Transcription{
		Text:                text,
		Language:            language,
		LanguageProbability: 1,
	}
	if d, err := audio.Duration(data); err == nil {
		result.Duration = d.Seconds()
	}
	result.Segments = []repositories.Segment{{Start: 0, End: result.Duration, Text: text}}

	return result, nil
}
