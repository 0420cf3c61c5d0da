package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/satriahrh/lingua/domain/entities"
)

type LLMProvider string

const (
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderRules  LLMProvider = "rules"
)

type STTProvider string

const (
	STTProviderWhisper STTProvider = "whisper"
	STTProviderGoogle  STTProvider = "google"
	STTProviderMock    STTProvider = "mock"
)

type TTSProvider string

const (
	TTSProviderPiper      TTSProvider = "piper"
	TTSProviderElevenLabs TTSProvider = "elevenlabs"
	TTSProviderTone       TTSProvider = "tone"
)

type SessionStore string

const (
	SessionStoreMemory   SessionStore = "memory"
	SessionStoreRedis    SessionStore = "redis"
	SessionStoreMongo    SessionStore = "mongo"
	SessionStorePostgres SessionStore = "postgres"
)

type Config struct {
	// Server
	Host           string        `env:"HOST" envDefault:"0.0.0.0"`
	Port           int           `env:"PORT" envDefault:"8000"`
	CORSOrigins    []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	StaticDir      string        `env:"STATIC_DIR"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"0"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"2m"`

	// Conversation
	SupportedLanguages []string `env:"SUPPORTED_LANGUAGES" envSeparator:","`
	MaxAudioLength     int      `env:"MAX_AUDIO_LENGTH" envDefault:"30"`
	MaxUploadBytes     int64    `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	MaxContextLength   int      `env:"MAX_CONTEXT_LENGTH" envDefault:"10"`

	// Sessions
	SessionStore           SessionStore  `env:"SESSION_STORE" envDefault:"memory"`
	SessionHistoryLimit    int           `env:"SESSION_HISTORY_LIMIT" envDefault:"20"`
	SessionTTL             time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCleanupSchedule string        `env:"SESSION_CLEANUP_SCHEDULE" envDefault:"@every 30m"`
	RedisURL               string        `env:"REDIS_URL"`
	MongoURI               string        `env:"MONGODB_URI"`
	MongoDatabase          string        `env:"MONGODB_DATABASE" envDefault:"lingua"`
	DatabaseURL            string        `env:"DATABASE_URL"`

	// LLM
	LLMProvider    LLMProvider   `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMBaseURL     string        `env:"LLM_BASE_URL" envDefault:"http://localhost:11434/v1"`
	LLMAPIKey      string        `env:"LLM_API_KEY"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"llama3.2:3b"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"256"`
	LLMTemperature float32       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMTopP        float32       `env:"LLM_TOP_P" envDefault:"0.9"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	GeminiAPIKey   string        `env:"GEMINI_API_KEY"`
	GeminiModel    string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	// STT
	STTProvider STTProvider `env:"STT_PROVIDER" envDefault:"whisper"`
	STTBaseURL  string      `env:"STT_BASE_URL" envDefault:"http://localhost:8080/v1"`
	STTModel    string      `env:"STT_MODEL" envDefault:"whisper-1"`
	STTAPIKey   string      `env:"STT_API_KEY"`
	STTMockText string      `env:"STT_MOCK_TEXT" envDefault:"hola"`

	// TTS
	TTSProvider         TTSProvider `env:"TTS_PROVIDER" envDefault:"piper"`
	PiperBinary         string      `env:"PIPER_BINARY" envDefault:"piper"`
	TTSModelDir         string      `env:"TTS_MODEL_DIR" envDefault:"models/piper"`
	TTSVoice            string      `env:"TTS_VOICE"`
	ElevenLabsAPIKey    string      `env:"ELEVEN_LABS_API_KEY"`
	ElevenLabsVoiceID   string      `env:"ELEVEN_LABS_VOICE_ID"`
	ElevenLabsModelID   string      `env:"ELEVEN_LABS_MODEL_ID"`
	ElevenLabsBaseURL   string      `env:"ELEVEN_LABS_BASE_URL"`
	ElevenLabsStability float64     `env:"ELEVEN_LABS_STABILITY" envDefault:"0.5"`

	// Auth
	AuthSecret    string        `env:"AUTH_SECRET"`
	AuthAccessKey string        `env:"AUTH_ACCESS_KEY"`
	AuthTokenTTL  time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
}

// Load reads an optional .env file and parses the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return parse(env.Options{})
}

// FromMap parses configuration from vars only, ignoring the process environment.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.SupportedLanguages) == 0 {
		for _, l := range entities.Languages() {
			cfg.SupportedLanguages = append(cfg.SupportedLanguages, l.Code)
		}
	}
	for i, code := range cfg.SupportedLanguages {
		cfg.SupportedLanguages[i] = strings.ToLower(strings.TrimSpace(code))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enums and ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	if c.MaxAudioLength <= 0 {
		errs = append(errs, errors.New("MAX_AUDIO_LENGTH must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.MaxContextLength < 0 {
		errs = append(errs, errors.New("MAX_CONTEXT_LENGTH must not be negative"))
	}
	if c.SessionHistoryLimit < 0 {
		errs = append(errs, errors.New("SESSION_HISTORY_LIMIT must not be negative"))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("SESSION_TTL must not be negative"))
	}
	for _, code := range c.SupportedLanguages {
		if !entities.IsKnownLanguage(code) {
			errs = append(errs, fmt.Errorf("SUPPORTED_LANGUAGES: unknown language %q", code))
		}
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis session store"))
		}
	case SessionStoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo session store"))
		}
	case SessionStorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres session store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore))
	}

	switch c.LLMProvider {
	case LLMProviderOpenAI:
		if c.LLMBaseURL == "" {
			errs = append(errs, errors.New("LLM_BASE_URL is required for the openai provider"))
		}
	case LLMProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case LLMProviderRules:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.LLMMaxTokens <= 0 {
		errs = append(errs, errors.New("LLM_MAX_TOKENS must be positive"))
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE out of range: %v", c.LLMTemperature))
	}
	if c.LLMTopP <= 0 || c.LLMTopP > 1 {
		errs = append(errs, fmt.Errorf("LLM_TOP_P out of range: %v", c.LLMTopP))
	}

	switch c.STTProvider {
	case STTProviderWhisper:
		if c.STTBaseURL == "" {
			errs = append(errs, errors.New("STT_BASE_URL is required for the whisper provider"))
		}
	case STTProviderGoogle, STTProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown STT_PROVIDER %q", c.STTProvider))
	}

	switch c.TTSProvider {
	case TTSProviderPiper:
		if c.TTSModelDir == "" {
			errs = append(errs, errors.New("TTS_MODEL_DIR is required for the piper provider"))
		}
	case TTSProviderElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			errs = append(errs, errors.New("ELEVEN_LABS_API_KEY is required for the elevenlabs provider"))
		}
	case TTSProviderTone:
	default:
		errs = append(errs, fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider))
	}

	if c.AuthSecret != "" && c.AuthAccessKey == "" {
		errs = append(errs, errors.New("AUTH_ACCESS_KEY is required when AUTH_SECRET is set"))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must not be negative"))
	}

	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthEnabled reports whether the API requires access tokens.
func (c *Config) AuthEnabled() bool {
	return c.AuthSecret != ""
}

// MaxAudioDuration is MAX_AUDIO_LENGTH as a duration.
func (c *Config) MaxAudioDuration() time.Duration {
	return time.Duration(c.MaxAudioLength) * time.Second
}
