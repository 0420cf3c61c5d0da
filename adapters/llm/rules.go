package llm

import (
	"context"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain/repositories"
)

type rule struct {
	keyword string
	reply   string
}

// Checked in order; the first keyword found in the last user message wins.
var rules = []rule{
	{"hello", "¡Hola! Hello! I'm here to help you practice languages."},
	{"how are you", "I'm doing well, thank you! ¿Cómo estás?"},
	{"goodbye", "¡Adiós! Goodbye! See you next time!"},
	{"help", "I can help you practice conversational phrases in various languages. Try greeting me or asking a question!"},
}

const defaultRuleReply = "I'm here to help you practice! (Note: no language model runtime is configured, replies are canned.)"

// RuleLLM is an offline LanguageModel answering with canned replies. It is
// used when no runtime is available and in tests.
type RuleLLM struct {
	logger *zap.Logger
}

// NewRuleLLM creates the rule-based model.
func NewRuleLLM(logger *zap.Logger) *RuleLLM {
	return &RuleLLM{logger: logger}
}

func (r *RuleLLM) Name() string {
	return "rules"
}

func (r *RuleLLM) Ready(ctx context.Context) error {
	return nil
}

// StreamChat streams the canned reply one word at a time.
func (r *RuleLLM) StreamChat(ctx context.Context, messages []repositories.ChatMessage, opts repositories.GenerationOptions) (repositories.CompletionStream, error) {
	reply := RuleReply(messages)
	r.logger.Debug("Rule-based reply", zap.Int("length", len(reply)))
	return NewSliceStream(strings.SplitAfter(reply, " ")...), nil
}

// RuleReply picks the canned reply for the most recent user message.
func RuleReply(messages []repositories.ChatMessage) string {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == repositories.UserRole {
			last = strings.ToLower(messages[i].Content)
			break
		}
	}
	for _, r := range rules {
		if strings.Contains(last, r.keyword) {
			return r.reply
		}
	}
	return defaultRuleReply
}

// SliceStream is a CompletionStream over fixed chunks.
type SliceStream struct {
	mu     sync.Mutex
	chunks []string
	pos    int
	closed bool
}

// NewSliceStream returns a stream yielding chunks in order.
func NewSliceStream(chunks ...string) *SliceStream {
	return &SliceStream{chunks: chunks}
}

func (s *SliceStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.closed && s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		if c != "" {
			return c, nil
		}
	}
	return "", io.EOF
}

func (s *SliceStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
