package repositories

import (
	"context"
	"time"
)

// TextToSpeech abstracts speech synthesis services
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string, opts SynthesisOptions) (*SpeechAudio, error)
	Ready(ctx context.Context) error
	Name() string
}

// SynthesisOptions select the voice and prosody of one utterance
type SynthesisOptions struct {
	Voice    string
	Language string
	// LengthScale > 1 slows speech down; 0 keeps the engine default.
	LengthScale float64
	NoiseScale  float64
	NoiseW      float64
}

// SpeechAudio is a synthesized utterance
type SpeechAudio struct {
	Audio       []byte
	ContentType string
	SampleRate  int
	Voice       string
	Duration    time.Duration
}
