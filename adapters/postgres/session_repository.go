package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

// SessionRepository stores sessions in two tables: one row per session and
// one row per turn, ordered by a serial sequence.
type SessionRepository struct {
	pool   *pgxpool.Pool
	opts   repositories.SessionOptions
	logger *zap.Logger
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(pool *pgxpool.Pool, opts repositories.SessionOptions, logger *zap.Logger) *SessionRepository {
	if opts.TTL <= 0 {
		opts.TTL = entities.DefaultSessionTTL
	}
	return &SessionRepository{pool: pool, opts: opts, logger: logger}
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*entities.Session, error) {
	session := &entities.Session{ID: id}
	err := r.pool.QueryRow(ctx, `
		SELECT created_at, updated_at, expires_at
		FROM sessions
		WHERE id = $1 AND expires_at > $2
	`, id, time.Now().UTC()).Scan(&session.CreatedAt, &session.UpdatedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.SessionNotFound(id)
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	turns, err := loadTurns(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	session.Turns = turns
	return session, nil
}

// Append runs in one transaction. The upsert locks the session row, which
// serializes concurrent appends to the same session.
func (r *SessionRepository) Append(ctx context.Context, id string, turns ...entities.Turn) (*entities.Session, error) {
	if err := entities.ValidateSessionID(id); err != nil {
		return nil, domain.InvalidRequest("%v", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1 AND expires_at <= $2`, id, now); err != nil {
		return nil, fmt.Errorf("failed to drop expired session %s: %w", id, err)
	}

	session := &entities.Session{ID: id}
	err = tx.QueryRow(ctx, `
		INSERT INTO sessions (id, created_at, updated_at, expires_at)
		VALUES ($1, $2, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at
		RETURNING created_at, updated_at, expires_at
	`, id, now, now.Add(r.opts.TTL)).Scan(&session.CreatedAt, &session.UpdatedAt, &session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session %s: %w", id, err)
	}

	if len(turns) > 0 {
		batch := &pgx.Batch{}
		for _, t := range turns {
			batch.Queue(`
				INSERT INTO session_turns (session_id, role, content, language, created_at)
				VALUES ($1, $2, $3, $4, $5)
			`, id, string(t.Role), t.Content, t.Language, t.Timestamp.UTC())
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to insert turns for %s: %w", id, err)
		}
	}

	if r.opts.HistoryLimit > 0 {
		_, err := tx.Exec(ctx, `
			DELETE FROM session_turns
			WHERE session_id = $1 AND seq NOT IN (
				SELECT seq FROM session_turns
				WHERE session_id = $1
				ORDER BY seq DESC
				LIMIT $2
			)
		`, id, r.opts.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to trim session %s: %w", id, err)
		}
	}

	session.Turns, err = loadTurns(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit append to %s: %w", id, err)
	}

	r.logger.Debug("Turns appended",
		zap.String("session_id", id),
		zap.Int("added", len(turns)),
		zap.Int("total", len(session.Turns)))
	return session, nil
}

func (r *SessionRepository) Clear(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to clear session %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		r.logger.Info("Session deleted", zap.String("session_id", id))
	}
	return nil
}

func (r *SessionRepository) ExpireSessions(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadTurns(ctx context.Context, q querier, id string) ([]entities.Turn, error) {
	rows, err := q.Query(ctx, `
		SELECT role, content, language, created_at
		FROM session_turns
		WHERE session_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns for %s: %w", id, err)
	}
	defer rows.Close()

	turns := make([]entities.Turn, 0)
	for rows.Next() {
		var (
			t    entities.Turn
			role string
		)
		if err := rows.Scan(&role, &t.Content, &t.Language, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = entities.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns for %s: %w", id, err)
	}
	return turns, nil
}
