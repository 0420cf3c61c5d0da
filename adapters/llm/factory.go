package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/config"
)

// New builds the LanguageModel selected by LLM_PROVIDER.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.LanguageModel, error) {
	logger = logger.With(zap.String("component", "llm"), zap.String("provider", string(cfg.LLMProvider)))

	switch cfg.LLMProvider {
	case config.LLMProviderOpenAI:
		return NewOpenAILLM(OpenAIConfig{
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		}, logger)
	case config.LLMProviderGemini:
		return NewGeminiLLM(ctx, GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.LLMTimeout,
		}, logger)
	case config.LLMProviderRules:
		return NewRuleLLM(logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}
