package api

import (
	"time"

	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

// TextConversationRequest is the body of /text and /text-stream
type TextConversationRequest struct {
	Message           string          `json:"message"`
	Language          string          `json:"language"`
	Difficulty        string          `json:"difficulty"`
	Scenario          string          `json:"scenario"`
	TeachingIntensity string          `json:"teaching_intensity"`
	SessionID         string          `json:"session_id"`
	History           []entities.Turn `json:"history"`
}

// ConversationResponse is returned by /text and /speak
type ConversationResponse struct {
	Response         string           `json:"response"`
	Language         string           `json:"language"`
	SessionID        string           `json:"session_id"`
	DetectedLanguage string           `json:"detected_language,omitempty"`
	TranscribedText  string           `json:"transcribed_text,omitempty"`
	Audio            *AudioResponse   `json:"audio,omitempty"`
	TimingsMs        map[string]int64 `json:"timings_ms,omitempty"`
}

// AudioResponse carries synthesized speech inline (base64 in JSON)
type AudioResponse struct {
	ContentType     string  `json:"content_type"`
	SampleRate      int     `json:"sample_rate"`
	Voice           string  `json:"voice"`
	DurationSeconds float64 `json:"duration_seconds"`
	Data            []byte  `json:"data"`
}

// TranscriptionResponse is returned by /transcribe
type TranscriptionResponse struct {
	Text                string                 `json:"text"`
	Language            string                 `json:"language"`
	DetectedLanguage    string                 `json:"detected_language"`
	LanguageProbability float64                `json:"language_probability"`
	Segments            []repositories.Segment `json:"segments"`
	Duration            float64                `json:"duration"`
}

// SessionResponse is the stored history of one session
type SessionResponse struct {
	SessionID string          `json:"session_id"`
	Messages  []entities.Turn `json:"messages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type SessionClearedResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

type VoicesResponse struct {
	Voices map[string][]string `json:"voices"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ModelsResponse reports which model runtimes answer their readiness probe
type ModelsResponse struct {
	Status    string            `json:"status"`
	Models    map[string]string `json:"models"`
	Providers map[string]string `json:"providers"`
}

type LanguageInfo struct {
	Name      string   `json:"name"`
	TTSVoices []string `json:"tts_voices"`
}

type LanguagesResponse struct {
	Languages map[string]LanguageInfo `json:"languages"`
	Count     int                     `json:"count"`
}

type ScenariosResponse struct {
	Scenarios map[string]string `json:"scenarios"`
	Count     int               `json:"count"`
}

type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Health  string `json:"health"`
	Listen  string `json:"listen"`
}

// TokenRequest represents the request payload for access token exchange
type TokenRequest struct {
	AccessKey string `json:"access_key"`
}

// TokenResponse represents the response payload for access token exchange
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
