package entities

import (
	"errors"
	"strings"
	"time"
)

// DefaultSessionTTL is how long an idle session is kept before it expires.
const DefaultSessionTTL = 24 * time.Hour

// DefaultSessionID is used when a client does not name its session.
const DefaultSessionID = "default"

// Role represents the author of a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in a conversation
type Turn struct {
	Role      Role      `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Language  string    `json:"language,omitempty" bson:"language,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// NewTurn creates a turn stamped with the current time.
func NewTurn(role Role, content, language string) Turn {
	return Turn{
		Role:      role,
		Content:   content,
		Language:  language,
		Timestamp: time.Now().UTC(),
	}
}

// Session is the ordered turn history of one conversation
type Session struct {
	ID        string    `json:"session_id" bson:"_id"`
	Turns     []Turn    `json:"messages" bson:"turns"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// NewSession creates an empty session expiring ttl from now.
func NewSession(id string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Session{
		ID:        id,
		Turns:     make([]Turn, 0),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// AddTurns appends turns in order. When limit is positive only the most
// recent limit turns are kept.
func (s *Session) AddTurns(limit int, turns ...Turn) {
	s.Turns = append(s.Turns, turns...)
	s.Turns = TrimTurns(s.Turns, limit)
}

// Touch marks activity at now and pushes expiry ttl into the future.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl)
}

// IsExpired reports whether the session has passed its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Recent returns a copy of the last n turns, or all of them when n <= 0.
func (s *Session) Recent(n int) []Turn {
	return RecentTurns(s.Turns, n)
}

// Snapshot returns a deep copy safe to hand out of a store.
func (s *Session) Snapshot() *Session {
	cp := *s
	cp.Turns = make([]Turn, len(s.Turns))
	copy(cp.Turns, s.Turns)
	return &cp
}

// Validate validates the session data
func (s *Session) Validate() error {
	if err := ValidateSessionID(s.ID); err != nil {
		return err
	}
	for _, t := range s.Turns {
		if !t.Role.Valid() {
			return errors.New("invalid turn role: " + string(t.Role))
		}
	}
	return nil
}

// ValidateSessionID rejects ids that cannot be used as store keys.
func ValidateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is required")
	}
	if len(id) > 128 {
		return errors.New("session id is too long")
	}
	if strings.ContainsAny(id, "/\\ \t\n") {
		return errors.New("session id contains invalid characters")
	}
	return nil
}

// TrimTurns keeps the last limit turns; limit <= 0 keeps everything.
func TrimTurns(turns []Turn, limit int) []Turn {
	if limit > 0 && len(turns) > limit {
		trimmed := make([]Turn, limit)
		copy(trimmed, turns[len(turns)-limit:])
		return trimmed
	}
	return turns
}

// RecentTurns returns a copy of the last n turns, or all when n <= 0.
func RecentTurns(turns []Turn, n int) []Turn {
	start := 0
	if n > 0 && len(turns) > n {
		start = len(turns) - n
	}
	out := make([]Turn, len(turns)-start)
	copy(out, turns[start:])
	return out
}
