package repositories

import "context"

// LanguageModel abstracts a chat-completion runtime
type LanguageModel interface {
	// StreamChat starts a generation and returns a pull-based stream of text deltas.
	StreamChat(ctx context.Context, messages []ChatMessage, opts GenerationOptions) (CompletionStream, error)
	// Ready reports whether the runtime can serve requests.
	Ready(ctx context.Context) error
	Name() string
}

// CompletionStream yields generated text one delta per Recv call.
// Recv returns io.EOF once generation has finished.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// GenerationOptions are the sampling settings for one generation
type GenerationOptions struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// ChatMessage represents a single message in a conversation
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role defines the type of message sender
type Role string

const (
	SystemRole    Role = "system"
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)
