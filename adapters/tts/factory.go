package tts

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/config"
)

// New builds the TextToSpeech selected by TTS_PROVIDER.
func New(cfg *config.Config, logger *zap.Logger) (repositories.TextToSpeech, error) {
	logger = logger.With(zap.String("component", "tts"), zap.String("provider", string(cfg.TTSProvider)))

	switch cfg.TTSProvider {
	case config.TTSProviderPiper:
		piper, err := NewPiperTTS(PiperConfig{
			Binary:   cfg.PiperBinary,
			ModelDir: cfg.TTSModelDir,
			Voice:    cfg.TTSVoice,
		}, logger)
		if err != nil {
			return nil, err
		}
		if voices, err := piper.InstalledVoices(); err == nil {
			logger.Info("Piper voices installed", zap.Int("count", len(voices)), zap.Strings("voices", voices))
		}
		return piper, nil
	case config.TTSProviderElevenLabs:
		return NewElevenLabsTTS(ElevenLabsConfig{
			APIKey:     cfg.ElevenLabsAPIKey,
			APIBaseURL: cfg.ElevenLabsBaseURL,
			VoiceID:    cfg.ElevenLabsVoiceID,
			ModelID:    cfg.ElevenLabsModelID,
			Stability:  cfg.ElevenLabsStability,
		}, logger)
	case config.TTSProviderTone:
		return NewToneTTS(logger), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", cfg.TTSProvider)
	}
}
