package redis

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

// Requires a running Redis (skipped if REDIS_URL is not set)
func TestSessionRepository_Integration(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("Skipping Redis integration test - REDIS_URL not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, redisURL, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer client.Close()

	storetest.Run(t, func(t *testing.T, opts repositories.SessionOptions) repositories.SessionRepository {
		return NewSessionRepository(client, opts, zaptest.NewLogger(t))
	})

	t.Run("KeysCarryTTL", func(t *testing.T) {
		repo := NewSessionRepository(client, repositories.SessionOptions{TTL: time.Minute}, zaptest.NewLogger(t))
		id := "ttl-" + time.Now().Format("150405.000000")
		defer repo.Clear(ctx, id)

		if _, err := repo.Append(ctx, id, entities.NewTurn(entities.RoleUser, "hola", "es")); err != nil {
			t.Fatal(err)
		}
		ttl, err := client.TTL(ctx, turnsKey(id)).Result()
		if err != nil {
			t.Fatal(err)
		}
		if ttl <= 0 || ttl > time.Minute {
			t.Errorf("TTL = %v", ttl)
		}
	})
}
