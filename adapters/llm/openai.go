package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/lingua/adapters/failure"
	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/repositories"
)

const (
	defaultOpenAIBaseURL = "http://localhost:11434/v1"
	defaultOpenAIModel   = "llama3.2:3b"
	defaultTimeout       = 60 * time.Second
)

// OpenAIConfig configures a runtime speaking the OpenAI chat API, such as
// Ollama, llama.cpp server or vLLM.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ValidateOpenAIConfig validates the OpenAIConfig
func ValidateOpenAIConfig(config OpenAIConfig) error {
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %v", config.Timeout)
	}
	return nil
}

// OpenAILLM implements LanguageModel against an OpenAI-compatible endpoint
type OpenAILLM struct {
	client  *openai.Client
	model   string
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewOpenAILLM creates a client; it does not contact the runtime.
func NewOpenAILLM(config OpenAIConfig, logger *zap.Logger) (*OpenAILLM, error) {
	if err := ValidateOpenAIConfig(config); err != nil {
		return nil, err
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
		logger.Info("Using default LLM base URL", zap.String("baseURL", baseURL))
	}
	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
		logger.Info("Using default LLM model", zap.String("model", model))
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	// Local runtimes ignore the key but the client insists on one.
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "local"
	}
	oaConfig := openai.DefaultConfig(apiKey)
	oaConfig.BaseURL = baseURL

	return &OpenAILLM{
		client:  openai.NewClientWithConfig(oaConfig),
		model:   model,
		baseURL: baseURL,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (o *OpenAILLM) Name() string {
	return "openai:" + o.model
}

// Ready lists the runtime's models and checks ours is served.
func (o *OpenAILLM) Ready(ctx context.Context) error {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return failure.Classify(err, domain.KindModelUnavailable, "language model runtime unreachable")
	}
	for _, m := range list.Models {
		if m.ID == o.model {
			return nil
		}
	}
	return domain.NewError(domain.KindModelUnavailable, fmt.Sprintf("model %s is not served at %s", o.model, o.baseURL), nil)
}

// StreamChat opens a streaming chat completion.
func (o *OpenAILLM) StreamChat(ctx context.Context, messages []repositories.ChatMessage, opts repositories.GenerationOptions) (repositories.CompletionStream, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Stream:      true,
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		cancel()
		o.logger.Error("Failed to open completion stream", zap.String("model", o.model), zap.Error(err))
		return nil, failure.Classify(err, domain.KindGenerationFailure, "failed to start generation")
	}

	return &openAIStream{stream: stream, cancel: cancel}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
	cancel context.CancelFunc
}

// Recv skips role-only and empty deltas so every returned string is non-empty.
func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", failure.Classify(err, domain.KindGenerationFailure, "generation interrupted")
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
		if resp.Choices[0].FinishReason != "" {
			return "", io.EOF
		}
	}
}

func (s *openAIStream) Close() error {
	defer s.cancel()
	return s.stream.Close()
}

func toOpenAIMessages(messages []repositories.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case repositories.SystemRole:
			role = openai.ChatMessageRoleSystem
		case repositories.AssistantRole:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
