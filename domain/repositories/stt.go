package repositories

import "context"

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Transcribe converts one finished audio clip to text
	Transcribe(ctx context.Context, audio []byte, config AudioConfig) (*Transcription, error)
	Ready(ctx context.Context) error
	Name() string
}

// AudioConfig describes an uploaded clip
type AudioConfig struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
	// Language is an optional recognition hint; empty means auto-detect.
	Language   string `json:"language"`
	SampleRate int    `json:"sample_rate"`
}

// Transcription is the recognition result for a clip
type Transcription struct {
	Text                string    `json:"text"`
	Language            string    `json:"language"`
	LanguageProbability float64   `json:"language_probability"`
	Segments            []Segment `json:"segments"`
	Duration            float64   `json:"duration"`
}

// Segment is a timed span of recognised speech, in seconds
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
