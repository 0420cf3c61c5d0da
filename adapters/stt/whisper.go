package stt

import (
	"bytes"
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/lingua/adapters/failure"
	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

const (
	defaultWhisperBaseURL = "http://localhost:8080/v1"
	defaultWhisperModel   = "whisper-1"
	defaultFilename       = "audio.wav"
)

// WhisperConfig points at a whisper server exposing the OpenAI
// /audio/transcriptions endpoint (faster-whisper-server, whisper.cpp, LocalAI).
type WhisperConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// WhisperSpeechToText implements SpeechToText over the OpenAI transcription API
type WhisperSpeechToText struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewWhisperSpeechToText(config WhisperConfig, logger *zap.Logger) *WhisperSpeechToText {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultWhisperBaseURL
		logger.Info("Using default STT base URL", zap.String("baseURL", baseURL))
	}
	model := config.Model
	if model == "" {
		model = defaultWhisperModel
		logger.Info("Using default STT model", zap.String("model", model))
	}
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "local"
	}

	oaConfig := openai.DefaultConfig(apiKey)
	oaConfig.BaseURL = baseURL

	return &WhisperSpeechToText{
		client: openai.NewClientWithConfig(oaConfig),
		model:  model,
		logger: logger,
	}
}

func (w *WhisperSpeechToText) Name() string {
	return "whisper:" + w.model
}

// Ready succeeds as long as the server answers; not every whisper server
// implements the models listing.
func (w *WhisperSpeechToText) Ready(ctx context.Context) error {
	_, err := w.client.ListModels(ctx)
	if err != nil && failure.IsUnreachable(err) {
		return domain.NewError(domain.KindModelUnavailable, "speech-to-text server unreachable", err)
	}
	return nil
}

func (w *WhisperSpeechToText) Transcribe(ctx context.Context, data []byte, config repositories.AudioConfig) (*repositories.Transcription, error) {
	if len(data) == 0 {
		return nil, domain.InvalidRequest("no audio data received")
	}

	filename := config.Filename
	if filename == "" {
		filename = defaultFilename
	}
	language := entities.NormalizeLanguage(config.Language)

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   bytes.NewReader(data),
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		w.logger.Error("Whisper transcription failed", zap.String("model", w.model), zap.Error(err))
		return nil, failure.Classify(err, domain.KindTranscriptionFailure, "transcription failed")
	}

	result := &repositories.Transcription{
		Text:     strings.TrimSpace(resp.Text),
		Language: entities.NormalizeLanguage(resp.Language),
		Duration: resp.Duration,
	}
	if result.Language == "" {
		result.Language = language
	}
	// A forced language is certain; the API does not report detection confidence.
	if language != "" {
		result.LanguageProbability = 1
	}
	for _, s := range resp.Segments {
		result.Segments = append(result.Segments, repositories.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}

	w.logger.Info("Transcription complete",
		zap.Int("audioSize", len(data)),
		zap.String("language", result.Language),
		zap.Float64("duration", result.Duration),
		zap.Int("segments", len(result.Segments)))

	return result, nil
}
