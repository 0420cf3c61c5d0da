package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}

	if cfg.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Port)
	}
	if cfg.Addr() != "0.0.0.0:8000" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if cfg.MaxContextLength != 10 {
		t.Errorf("MaxContextLength = %d, want 10", cfg.MaxContextLength)
	}
	if cfg.SessionHistoryLimit != 20 {
		t.Errorf("SessionHistoryLimit = %d, want 20", cfg.SessionHistoryLimit)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.LLMMaxTokens != 256 || cfg.LLMTemperature != 0.7 || cfg.LLMTopP != 0.9 {
		t.Errorf("generation defaults = %d %v %v", cfg.LLMMaxTokens, cfg.LLMTemperature, cfg.LLMTopP)
	}
	if len(cfg.SupportedLanguages) != 18 {
		t.Errorf("SupportedLanguages = %d entries, want 18", len(cfg.SupportedLanguages))
	}
	if cfg.MaxAudioDuration() != 30*time.Second {
		t.Errorf("MaxAudioDuration = %v", cfg.MaxAudioDuration())
	}
	if cfg.AuthEnabled() {
		t.Error("auth should be disabled by default")
	}
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"PORT":                "9000",
		"SUPPORTED_LANGUAGES": "ES, fr",
		"CORS_ORIGINS":        "http://a.test,http://b.test",
		"SESSION_STORE":       "redis",
		"REDIS_URL":           "redis://localhost:6379/0",
		"LLM_PROVIDER":        "rules",
		"TTS_PROVIDER":        "tone",
		"STT_PROVIDER":        "mock",
		"SESSION_TTL":         "90m",
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if got := strings.Join(cfg.SupportedLanguages, ","); got != "es,fr" {
		t.Errorf("SupportedLanguages = %q", got)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.SessionStore != SessionStoreRedis || cfg.LLMProvider != LLMProviderRules {
		t.Errorf("providers = %s %s", cfg.SessionStore, cfg.LLMProvider)
	}
	if cfg.SessionTTL != 90*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
}

func TestFromMap_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"PORT": "70000"}, "PORT"},
		{"unparseable port", map[string]string{"PORT": "abc"}, "parse"},
		{"unknown language", map[string]string{"SUPPORTED_LANGUAGES": "en,xx"}, "xx"},
		{"unknown store", map[string]string{"SESSION_STORE": "sqlite"}, "SESSION_STORE"},
		{"redis without url", map[string]string{"SESSION_STORE": "redis"}, "REDIS_URL"},
		{"mongo without uri", map[string]string{"SESSION_STORE": "mongo"}, "MONGODB_URI"},
		{"postgres without url", map[string]string{"SESSION_STORE": "postgres"}, "DATABASE_URL"},
		{"gemini without key", map[string]string{"LLM_PROVIDER": "gemini"}, "GEMINI_API_KEY"},
		{"unknown llm", map[string]string{"LLM_PROVIDER": "gpt"}, "LLM_PROVIDER"},
		{"top_p zero", map[string]string{"LLM_TOP_P": "0"}, "LLM_TOP_P"},
		{"unknown stt", map[string]string{"STT_PROVIDER": "vosk"}, "STT_PROVIDER"},
		{"elevenlabs without key", map[string]string{"TTS_PROVIDER": "elevenlabs"}, "ELEVEN_LABS_API_KEY"},
		{"secret without key", map[string]string{"AUTH_SECRET": "s"}, "AUTH_ACCESS_KEY"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"negative history", map[string]string{"SESSION_HISTORY_LIMIT": "-1"}, "SESSION_HISTORY_LIMIT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromMap(tc.vars)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
