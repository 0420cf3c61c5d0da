package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/lingua/domain/entities"
)

// SessionRepository stores conversation histories keyed by session id
type SessionRepository interface {
	// Get returns a copy of the session, or a session_not_found error when it
	// does not exist or has expired.
	Get(ctx context.Context, id string) (*entities.Session, error)
	// Append adds turns in order, creating the session on first use.
	Append(ctx context.Context, id string, turns ...entities.Turn) (*entities.Session, error)
	// Clear removes the session. Clearing an unknown session is not an error.
	Clear(ctx context.Context, id string) error
	// ExpireSessions removes sessions that expired before now and returns how many.
	ExpireSessions(ctx context.Context, now time.Time) (int, error)
}

// SessionOptions are shared by every SessionRepository implementation
type SessionOptions struct {
	TTL          time.Duration
	HistoryLimit int
}
