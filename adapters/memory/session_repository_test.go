package memory

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/adapters/storetest"
	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

func TestSessionRepository_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, opts repositories.SessionOptions) repositories.SessionRepository {
		return NewSessionRepository(opts, zap.NewNop())
	})
}

func TestSessionRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := NewSessionRepository(repositories.SessionOptions{TTL: time.Hour}, zap.NewNop()).
		WithClock(func() time.Time { return now })

	repo.Append(ctx, "old", entities.NewTurn(entities.RoleUser, "hola", "es"))
	now = now.Add(30 * time.Minute)
	repo.Append(ctx, "fresh", entities.NewTurn(entities.RoleUser, "hello", "en"))

	now = now.Add(45 * time.Minute)
	if _, err := repo.Get(ctx, "old"); domain.KindOf(err) != domain.KindSessionNotFound {
		t.Errorf("expired session still readable: %v", err)
	}
	if _, err := repo.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh session: %v", err)
	}

	removed, err := repo.ExpireSessions(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 || repo.Len() != 1 {
		t.Errorf("removed %d, %d left", removed, repo.Len())
	}
}

func TestSessionRepository_AppendRevivesExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := NewSessionRepository(repositories.SessionOptions{TTL: time.Minute}, zap.NewNop()).
		WithClock(func() time.Time { return now })

	repo.Append(ctx, "s", entities.NewTurn(entities.RoleUser, "uno", "es"))
	now = now.Add(2 * time.Minute)

	s, err := repo.Append(ctx, "s", entities.NewTurn(entities.RoleUser, "dos", "es"))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Turns) != 1 || s.Turns[0].Content != "dos" {
		t.Errorf("expired history leaked into new session: %+v", s.Turns)
	}
}

func TestSessionRepository_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(repositories.SessionOptions{}, zap.NewNop())
	repo.Append(ctx, "s", entities.NewTurn(entities.RoleUser, "hola", "es"))

	s, _ := repo.Get(ctx, "s")
	s.Turns[0].Content = "changed"

	again, _ := repo.Get(ctx, "s")
	if again.Turns[0].Content != "hola" {
		t.Error("Get exposed internal state")
	}
}
