package tts

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/audio"
)

const (
	toneSampleRate = 22050
	toneFrequency  = 440.0
	toneAmplitude  = 0.15
	tonePerChar    = 80 * time.Millisecond
	toneMinimum    = 500 * time.Millisecond
)

// ToneTTS renders a sine tone roughly as long as the text would take to
// speak. It stands in for a real engine during development.
type ToneTTS struct {
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*ToneTTS)(nil)

func NewToneTTS(logger *zap.Logger) *ToneTTS {
	return &ToneTTS{logger: logger}
}

func (t *ToneTTS) Name() string {
	return "tone"
}

func (t *ToneTTS) Ready(ctx context.Context) error {
	return nil
}

func (t *ToneTTS) Synthesize(ctx context.Context, text string, opts repositories.SynthesisOptions) (*repositories.SpeechAudio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.InvalidRequest("text cannot be empty")
	}

	scale := opts.LengthScale
	if scale <= 0 {
		scale = 1
	}
	duration := time.Duration(float64(utf8.RuneCountInString(text)) * float64(tonePerChar) * scale)
	if duration < toneMinimum {
		duration = toneMinimum
	}

	clip := audio.Tone(toneFrequency, toneAmplitude, duration, toneSampleRate)
	t.logger.Debug("Generated tone audio", zap.Duration("duration", clip.Duration()))

	voice := opts.Voice
	if voice == "" {
		voice = "tone"
	}
	return &repositories.SpeechAudio{
		Audio:       clip.Encode(),
		ContentType: audio.ContentTypeWAV,
		SampleRate:  toneSampleRate,
		Voice:       voice,
		Duration:    clip.Duration(),
	}, nil
}
