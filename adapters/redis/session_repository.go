package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

const keyPrefix = "lingua:session:"

// SessionRepository stores each session as a list of JSON turns plus a
// metadata hash. Both keys carry the session TTL, so Redis does the expiry.
type SessionRepository struct {
	client *redis.Client
	opts   repositories.SessionOptions
	logger *zap.Logger
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(client *redis.Client, opts repositories.SessionOptions, logger *zap.Logger) *SessionRepository {
	if opts.TTL <= 0 {
		opts.TTL = entities.DefaultSessionTTL
	}
	return &SessionRepository{client: client, opts: opts, logger: logger}
}

func turnsKey(id string) string { return keyPrefix + id + ":turns" }
func metaKey(id string) string  { return keyPrefix + id + ":meta" }

func (r *SessionRepository) Get(ctx context.Context, id string) (*entities.Session, error) {
	var meta *redis.MapStringStringCmd
	var turns *redis.StringSliceCmd
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		meta = p.HGetAll(ctx, metaKey(id))
		turns = p.LRange(ctx, turnsKey(id), 0, -1)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to read session", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	if len(meta.Val()) == 0 {
		return nil, domain.SessionNotFound(id)
	}
	return r.decode(id, meta.Val(), turns.Val())
}

// Append pushes the turns, trims to the history limit and refreshes the TTL
// in one MULTI/EXEC block.
func (r *SessionRepository) Append(ctx context.Context, id string, turns ...entities.Turn) (*entities.Session, error) {
	if err := entities.ValidateSessionID(id); err != nil {
		return nil, domain.InvalidRequest("%v", err)
	}

	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("failed to encode turn: %w", err)
		}
		values = append(values, b)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var meta *redis.MapStringStringCmd
	var stored *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(values) > 0 {
			p.RPush(ctx, turnsKey(id), values...)
		}
		if r.opts.HistoryLimit > 0 {
			p.LTrim(ctx, turnsKey(id), int64(-r.opts.HistoryLimit), -1)
		}
		p.HSetNX(ctx, metaKey(id), "created_at", now)
		p.HSet(ctx, metaKey(id), "updated_at", now)
		p.Expire(ctx, turnsKey(id), r.opts.TTL)
		p.Expire(ctx, metaKey(id), r.opts.TTL)
		meta = p.HGetAll(ctx, metaKey(id))
		stored = p.LRange(ctx, turnsKey(id), 0, -1)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to append turns", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to append to session %s: %w", id, err)
	}

	return r.decode(id, meta.Val(), stored.Val())
}

func (r *SessionRepository) Clear(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, turnsKey(id), metaKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", id, err)
	}
	r.logger.Info("Session cleared", zap.String("session_id", id))
	return nil
}

// ExpireSessions is a no-op: keys expire on their own.
func (r *SessionRepository) ExpireSessions(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (r *SessionRepository) decode(id string, meta map[string]string, raw []string) (*entities.Session, error) {
	s := &entities.Session{ID: id, Turns: make([]entities.Turn, 0, len(raw))}
	for _, item := range raw {
		var t entities.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("corrupt turn in session %s: %w", id, err)
		}
		s.Turns = append(s.Turns, t)
	}

	var errs []error
	var err error
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, meta["created_at"]); err != nil {
		errs = append(errs, err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, meta["updated_at"]); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("corrupt metadata in session %s: %w", id, errors.Join(errs...))
	}
	s.ExpiresAt = s.UpdatedAt.Add(r.opts.TTL)
	return s, nil
}
