package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/adapters/storetest"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

// TestSessionRepository_Integration tests the MongoDB session repository
// This test requires a running MongoDB instance (skipped if MONGODB_URI is not set)
func TestSessionRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	client, err := NewClient(ctx, mongoURI, "lingua_test", logger)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(ctx)
	defer client.Database.Drop(ctx)

	storetest.Run(t, func(t *testing.T, opts repositories.SessionOptions) repositories.SessionRepository {
		repo := NewSessionRepository(client.Database, opts, logger)
		if err := repo.EnsureIndexes(ctx); err != nil {
			t.Fatalf("EnsureIndexes: %v", err)
		}
		return repo
	})

	t.Run("ExpireSessions", func(t *testing.T) {
		repo := NewSessionRepository(client.Database, repositories.SessionOptions{TTL: time.Minute}, logger)
		id := "expire-" + time.Now().Format("150405.000000")
		if _, err := repo.Append(ctx, id, entities.NewTurn(entities.RoleUser, "hola", "es")); err != nil {
			t.Fatal(err)
		}

		removed, err := repo.ExpireSessions(ctx, time.Now().Add(2*time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if removed < 1 {
			t.Errorf("removed = %d, want at least 1", removed)
		}
		if _, err := repo.Get(ctx, id); err == nil {
			t.Error("session readable after expiry sweep")
		}
	})
}
