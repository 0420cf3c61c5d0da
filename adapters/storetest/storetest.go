// Package storetest holds behaviour tests shared by every SessionRepository.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

// Factory builds a fresh repository with the given options.
type Factory func(t *testing.T, opts repositories.SessionOptions) repositories.SessionRepository

// Run exercises the SessionRepository contract.
func Run(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	t.Run("GetUnknown", func(t *testing.T) {
		repo := newRepo(t, repositories.SessionOptions{})
		_, err := repo.Get(ctx, freshID())
		if domain.KindOf(err) != domain.KindSessionNotFound {
			t.Fatalf("Get unknown session err = %v, want session_not_found", err)
		}
	})

	t.Run("AppendCreatesAndOrders", func(t *testing.T) {
		repo := newRepo(t, repositories.SessionOptions{})
		id := freshID()

		if _, err := repo.Append(ctx, id, turn(entities.RoleUser, "hola"), turn(entities.RoleAssistant, "¡Hola!")); err != nil {
			t.Fatalf("Append: %v", err)
		}
		s, err := repo.Append(ctx, id, turn(entities.RoleUser, "¿qué tal?"), turn(entities.RoleAssistant, "Bien."))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if len(s.Turns) != 4 {
			t.Fatalf("Append returned %d turns, want 4", len(s.Turns))
		}

		got, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		want := []string{"hola", "¡Hola!", "¿qué tal?", "Bien."}
		if len(got.Turns) != len(want) {
			t.Fatalf("Get returned %d turns, want %d", len(got.Turns), len(want))
		}
		for i, w := range want {
			if got.Turns[i].Content != w {
				t.Errorf("turn %d = %q, want %q", i, got.Turns[i].Content, w)
			}
		}
		if got.Turns[0].Role != entities.RoleUser || got.Turns[1].Role != entities.RoleAssistant {
			t.Errorf("roles = %s, %s", got.Turns[0].Role, got.Turns[1].Role)
		}
		if got.ID != id {
			t.Errorf("ID = %q, want %q", got.ID, id)
		}
	})

	t.Run("HistoryLimit", func(t *testing.T) {
		repo := newRepo(t, repositories.SessionOptions{HistoryLimit: 4})
		id := freshID()
		for i := 0; i < 5; i++ {
			if _, err := repo.Append(ctx, id, turn(entities.RoleUser, fmt.Sprintf("q%d", i)), turn(entities.RoleAssistant, fmt.Sprintf("a%d", i))); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
		got, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got.Turns) != 4 || got.Turns[0].Content != "q3" || got.Turns[3].Content != "a4" {
			t.Errorf("turns after limit = %+v", got.Turns)
		}
	})

	t.Run("ClearIsIdempotent", func(t *testing.T) {
		repo := newRepo(t, repositories.SessionOptions{})
		id := freshID()
		repo.Append(ctx, id, turn(entities.RoleUser, "hola"))

		if err := repo.Clear(ctx, id); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if _, err := repo.Get(ctx, id); domain.KindOf(err) != domain.KindSessionNotFound {
			t.Errorf("Get after Clear err = %v", err)
		}
		if err := repo.Clear(ctx, id); err != nil {
			t.Errorf("second Clear: %v", err)
		}

		s, err := repo.Append(ctx, id, turn(entities.RoleUser, "otra vez"))
		if err != nil {
			t.Fatalf("Append after Clear: %v", err)
		}
		if len(s.Turns) != 1 {
			t.Errorf("cleared session kept %d turns", len(s.Turns)-1)
		}
	})

	t.Run("SessionsAreIsolated", func(t *testing.T) {
		repo := newRepo(t, repositories.SessionOptions{})
		a, b := freshID(), freshID()
		repo.Append(ctx, a, turn(entities.RoleUser, "a"))
		repo.Append(ctx, b, turn(entities.RoleUser, "b1"), turn(entities.RoleAssistant, "b2"))

		got, err := repo.Get(ctx, a)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Turns) != 1 {
			t.Errorf("session a has %d turns", len(got.Turns))
		}
	})

	t.Run("InvalidID", func(t *testing.T) {
		repo := newRepo(t, repositories.SessionOptions{})
		if _, err := repo.Append(ctx, "", turn(entities.RoleUser, "x")); domain.KindOf(err) != domain.KindInvalidRequest {
			t.Errorf("Append with empty id err = %v", err)
		}
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		repo := newRepo(t, repositories.SessionOptions{})
		id := freshID()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				repo.Append(ctx, id, turn(entities.RoleUser, fmt.Sprintf("u%d", i)), turn(entities.RoleAssistant, fmt.Sprintf("a%d", i)))
			}(i)
		}
		wg.Wait()

		got, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Turns) != 16 {
			t.Fatalf("got %d turns, want 16", len(got.Turns))
		}
		// each Append keeps its pair adjacent
		for i := 0; i < len(got.Turns); i += 2 {
			u, a := got.Turns[i].Content, got.Turns[i+1].Content
			if u[0] != 'u' || a[0] != 'a' || u[1:] != a[1:] {
				t.Errorf("pair %d split: %q %q", i/2, u, a)
			}
		}
	})
}

func freshID() string {
	return "test-" + uuid.NewString()
}

func turn(role entities.Role, content string) entities.Turn {
	t := entities.NewTurn(role, content, "es")
	t.Timestamp = t.Timestamp.Truncate(time.Millisecond)
	return t
}
