package llm

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/lingua/adapters/failure"
	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/repositories"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini adapter
type GeminiConfig struct {
	APIKey  string
	Model   string
	TopK    float32
	Timeout time.Duration
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %v", config.Timeout)
	}
	return nil
}

// GeminiLLM implements LanguageModel using Google's Gemini API
type GeminiLLM struct {
	client  *genai.Client
	logger  *zap.Logger
	model   string
	topK    float32
	timeout time.Duration
}

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
		logger.Info("Using default timeout", zap.Duration("timeout", timeout))
	}

	return &GeminiLLM{
		client:  client,
		logger:  logger,
		model:   model,
		topK:    config.TopK,
		timeout: timeout,
	}, nil
}

func (g *GeminiLLM) Name() string {
	return "gemini:" + g.model
}

func (g *GeminiLLM) Ready(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return domain.NewError(domain.KindModelUnavailable, "gemini model unavailable", err)
	}
	return nil
}

// StreamChat starts a streamed generation. System messages become the
// system instruction; the rest is sent as conversation contents.
func (g *GeminiLLM) StreamChat(ctx context.Context, messages []repositories.ChatMessage, opts repositories.GenerationOptions) (repositories.CompletionStream, error) {
	system, contents := toGeminiContents(messages)
	if len(contents) == 0 {
		return nil, domain.InvalidRequest("no conversation content to send")
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if opts.Temperature > 0 {
		config.Temperature = genai.Ptr(opts.Temperature)
	}
	if opts.TopP > 0 {
		config.TopP = genai.Ptr(opts.TopP)
	}
	if g.topK > 0 {
		config.TopK = genai.Ptr(g.topK)
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	next, stop := iter.Pull2(g.client.Models.GenerateContentStream(ctx, g.model, contents, config))

	g.logger.Debug("Gemini stream opened",
		zap.String("model", g.model),
		zap.Int("contents", len(contents)))

	return &geminiStream{next: next, stop: stop, cancel: cancel}, nil
}

type geminiStream struct {
	next   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()
	cancel context.CancelFunc
}

func (s *geminiStream) Recv() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", failure.Classify(err, domain.KindGenerationFailure, "gemini generation failed")
		}
		if text := resp.Text(); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error {
	s.stop()
	s.cancel()
	return nil
}

// toGeminiContents splits out system messages and maps roles to Gemini's user/model.
func toGeminiContents(messages []repositories.ChatMessage) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case repositories.SystemRole:
			system = append(system, msg.Content)
		case repositories.AssistantRole:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	return strings.Join(system, "\n\n"), contents
}
