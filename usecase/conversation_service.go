package usecase

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

// ConversationConfig holds generation settings shared by every turn
type ConversationConfig struct {
	// ContextLength is how many past turns are sent to the model; 0 sends all.
	ContextLength int
	Generation    repositories.GenerationOptions
}

// ConversationService orchestrates text turns: prompt, generation and history
type ConversationService struct {
	llm      repositories.LanguageModel
	sessions repositories.SessionRepository
	config   ConversationConfig
	logger   *zap.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(
	llm repositories.LanguageModel,
	sessions repositories.SessionRepository,
	config ConversationConfig,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		llm:      llm,
		sessions: sessions,
		config:   config,
		logger:   logger,
	}
}

// TextRequest is one typed user message
type TextRequest struct {
	Message   string
	Settings  TurnSettings
	SessionID string
	// History is the client's snapshot; when empty the stored session is used.
	History []entities.Turn
}

// Reply is the outcome of a completed text turn
type Reply struct {
	Text      string `json:"response"`
	Language  string `json:"language"`
	SessionID string `json:"session_id"`
}

// Respond runs a text turn to completion.
func (s *ConversationService) Respond(ctx context.Context, req TextRequest) (*Reply, error) {
	return s.run(ctx, req, nil)
}

// Stream runs a text turn and relays it as events: a generating status,
// the chunks in generation order, then complete or error. The channel is
// closed after the terminal event; cancelling ctx stops generation.
func (s *ConversationService) Stream(ctx context.Context, req TextRequest) <-chan domain.Event {
	return relay(ctx, s.logger, func(emit emitFunc) (domain.Event, error) {
		reply, err := s.run(ctx, req, emit)
		if err != nil {
			return domain.Event{}, err
		}
		return domain.CompleteEvent(domain.Completion{
			FullResponse: reply.Text,
			Language:     reply.Language,
			SessionID:    reply.SessionID,
		}), nil
	})
}

func (s *ConversationService) run(ctx context.Context, req TextRequest, emit emitFunc) (*Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.InvalidRequest("message cannot be empty")
	}
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return nil, err
	}

	history := req.History
	if len(history) == 0 {
		if history, err = s.history(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Processing text turn",
		zap.String("session_id", sessionID),
		zap.String("language", req.Settings.Language),
		zap.String("scenario", req.Settings.Scenario),
		zap.Int("history", len(history)))

	messages := BuildMessages(req.Settings, history, s.config.ContextLength, message)
	text, err := s.generate(ctx, messages, emit)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, sessionID,
		entities.NewTurn(entities.RoleUser, message, req.Settings.Language),
		entities.NewTurn(entities.RoleAssistant, text, req.Settings.Language),
	); err != nil {
		return nil, err
	}

	return &Reply{Text: text, Language: req.Settings.Language, SessionID: sessionID}, nil
}

// history returns the stored turns of a session, empty when it does not exist.
func (s *ConversationService) history(ctx context.Context, sessionID string) ([]entities.Turn, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if domain.KindOf(err) == domain.KindSessionNotFound {
			return nil, nil
		}
		return nil, err
	}
	return session.Turns, nil
}

// generate pulls the reply from the model. The context is checked before
// every pull so a departed client stops generation. Partial text is
// discarded on failure.
func (s *ConversationService) generate(ctx context.Context, messages []repositories.ChatMessage, emit emitFunc) (string, error) {
	if emit != nil {
		if err := emit(domain.StatusEvent(domain.StatusGenerating)); err != nil {
			return "", err
		}
	}

	stream, err := s.llm.StreamChat(ctx, messages, s.config.Generation)
	if err != nil {
		return "", domain.Classify(err, domain.KindGenerationFailure, "failed to start generation")
	}
	defer stream.Close()

	var full strings.Builder
	chunks := 0
	for {
		if err := ctx.Err(); err != nil {
			return "", domain.NewError(domain.KindGenerationFailure, "generation cancelled", err)
		}
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("Generation failed mid-stream",
				zap.String("model", s.llm.Name()),
				zap.Int("chunks", chunks),
				zap.Error(err))
			return "", domain.Classify(err, domain.KindGenerationFailure, "generation failed")
		}
		if chunk == "" {
			continue
		}
		chunks++
		full.WriteString(chunk)
		if emit != nil {
			if err := emit(domain.ChunkEvent(chunk)); err != nil {
				return "", err
			}
		}
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", domain.NewError(domain.KindGenerationFailure, "model returned an empty reply", nil)
	}
	s.logger.Debug("Generation completed", zap.String("model", s.llm.Name()), zap.Int("chunks", chunks))
	return text, nil
}

// commit appends the user and assistant turns together.
func (s *ConversationService) commit(ctx context.Context, sessionID string, user, assistant entities.Turn) error {
	if _, err := s.sessions.Append(ctx, sessionID, user, assistant); err != nil {
		s.logger.Error("Failed to save turn", zap.String("session_id", sessionID), zap.Error(err))
		return domain.Classify(err, domain.KindGenerationFailure, "failed to save conversation history")
	}
	return nil
}

func normalizeSessionID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return entities.DefaultSessionID, nil
	}
	if err := entities.ValidateSessionID(id); err != nil {
		return "", domain.InvalidRequest("%v", err)
	}
	return id, nil
}
