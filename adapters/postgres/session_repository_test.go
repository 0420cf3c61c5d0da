package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/lingua/adapters/storetest"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

// Requires a disposable database; skipped unless DATABASE_URL is set.
func TestSessionRepository_Integration(t *testing.T) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("Skipping PostgreSQL integration test - DATABASE_URL not set")
	}

	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	pool, err := NewPool(ctx, databaseURL, logger)
	if err != nil {
		t.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pool.Close()

	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// twice: the schema must be re-appliable
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	storetest.Run(t, func(t *testing.T, opts repositories.SessionOptions) repositories.SessionRepository {
		return NewSessionRepository(pool, opts, logger)
	})

	t.Run("ExpireSessionsCascades", func(t *testing.T) {
		repo := NewSessionRepository(pool, repositories.SessionOptions{TTL: time.Minute}, logger)
		id := "pg-expire-" + time.Now().Format("150405.000000")
		if _, err := repo.Append(ctx, id,
			entities.NewTurn(entities.RoleUser, "hola", "es"),
			entities.NewTurn(entities.RoleAssistant, "¡Hola!", "es"),
		); err != nil {
			t.Fatal(err)
		}

		removed, err := repo.ExpireSessions(ctx, time.Now().Add(2*time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if removed < 1 {
			t.Errorf("removed = %d, want at least 1", removed)
		}

		var orphans int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM session_turns WHERE session_id = $1`, id).Scan(&orphans); err != nil {
			t.Fatal(err)
		}
		if orphans != 0 {
			t.Errorf("%d turns left after their session expired", orphans)
		}
	})
}
