package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

// SessionRepository keeps sessions in process memory. Histories do not
// survive a restart.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entities.Session
	opts     repositories.SessionOptions
	now      func() time.Time
	logger   *zap.Logger
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates an empty in-memory repository
func NewSessionRepository(opts repositories.SessionOptions, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*entities.Session),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// WithClock replaces the time source, for tests.
func (r *SessionRepository) WithClock(now func() time.Time) *SessionRepository {
	r.now = now
	return r
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*entities.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok || s.IsExpired(r.now()) {
		return nil, domain.SessionNotFound(id)
	}
	return s.Snapshot(), nil
}

func (r *SessionRepository) Append(ctx context.Context, id string, turns ...entities.Turn) (*entities.Session, error) {
	if err := entities.ValidateSessionID(id); err != nil {
		return nil, domain.InvalidRequest("%v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s, ok := r.sessions[id]
	if !ok || s.IsExpired(now) {
		s = entities.NewSession(id, r.opts.TTL)
		s.CreatedAt = now
		r.sessions[id] = s
		r.logger.Debug("Session created", zap.String("session_id", id))
	}
	s.AddTurns(r.opts.HistoryLimit, turns...)
	s.Touch(now, r.opts.TTL)

	return s.Snapshot(), nil
}

func (r *SessionRepository) Clear(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		r.logger.Info("Session cleared", zap.String("session_id", id))
	}
	return nil
}

func (r *SessionRepository) ExpireSessions(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.IsExpired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired ones included.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
