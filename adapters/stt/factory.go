package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/config"
)

// New builds the SpeechToText selected by STT_PROVIDER.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.SpeechToText, error) {
	logger = logger.With(zap.String("component", "stt"), zap.String("provider", string(cfg.STTProvider)))

	switch cfg.STTProvider {
	case config.STTProviderWhisper:
		return NewWhisperSpeechToText(WhisperConfig{
			BaseURL: cfg.STTBaseURL,
			APIKey:  cfg.STTAPIKey,
			Model:   cfg.STTModel,
		}, logger), nil
	case config.STTProviderGoogle:
		return NewGoogleSpeechToText(ctx, logger)
	case config.STTProviderMock:
		return NewMockSpeechToText(cfg.STTMockText, logger), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STTProvider)
	}
}
