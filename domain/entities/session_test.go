package entities

import (
	"testing"
	"time"
)

func TestSessionCreation(t *testing.T) {
	session := NewSession("abc", 0)

	if session.ID != "abc" {
		t.Errorf("Expected session ID abc, got %s", session.ID)
	}

	if len(session.Turns) != 0 {
		t.Errorf("Expected empty history, got %d turns", len(session.Turns))
	}

	if got := session.ExpiresAt.Sub(session.CreatedAt); got != DefaultSessionTTL {
		t.Errorf("Expected default TTL %v, got %v", DefaultSessionTTL, got)
	}
}

func TestAddTurns(t *testing.T) {
	session := NewSession("abc", time.Hour)

	session.AddTurns(0, NewTurn(RoleUser, "Hola", "es"), NewTurn(RoleAssistant, "¡Hola! ¿Qué tal?", "es"))

	if len(session.Turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(session.Turns))
	}
	if session.Turns[0].Role != RoleUser || session.Turns[1].Role != RoleAssistant {
		t.Errorf("Turn order not preserved: %+v", session.Turns)
	}
}

func TestAddTurnsWithLimit(t *testing.T) {
	session := NewSession("abc", time.Hour)

	for i := 0; i < 6; i++ {
		session.AddTurns(4, NewTurn(RoleUser, string(rune('a'+i)), "en"))
	}

	if len(session.Turns) != 4 {
		t.Fatalf("Expected 4 turns, got %d", len(session.Turns))
	}
	if session.Turns[0].Content != "c" || session.Turns[3].Content != "f" {
		t.Errorf("Expected the most recent turns to be kept, got %+v", session.Turns)
	}
}

func TestSessionExpiration(t *testing.T) {
	session := NewSession("abc", time.Hour)
	now := time.Now()

	if session.IsExpired(now) {
		t.Error("Session should not be expired initially")
	}

	if !session.IsExpired(now.Add(2 * time.Hour)) {
		t.Error("Session should be expired after its TTL")
	}

	session.Touch(now.Add(2*time.Hour), time.Hour)
	if session.IsExpired(now.Add(2 * time.Hour)) {
		t.Error("Touch should extend expiry")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	session := NewSession("abc", time.Hour)
	session.AddTurns(0, NewTurn(RoleUser, "hello", "en"))

	snap := session.Snapshot()
	snap.Turns[0].Content = "mutated"
	snap.Turns = append(snap.Turns, NewTurn(RoleAssistant, "x", "en"))

	if session.Turns[0].Content != "hello" || len(session.Turns) != 1 {
		t.Error("Snapshot must not share memory with the session")
	}
}

func TestRecent(t *testing.T) {
	session := NewSession("abc", time.Hour)
	for i := 0; i < 5; i++ {
		session.AddTurns(0, NewTurn(RoleUser, string(rune('a'+i)), "en"))
	}

	recent := session.Recent(2)
	if len(recent) != 2 || recent[0].Content != "d" {
		t.Errorf("Recent(2) = %+v", recent)
	}
	if len(session.Recent(0)) != 5 {
		t.Error("Recent(0) should return every turn")
	}
}

func TestSessionValidation(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"default", false},
		{"3f0c7b8e-1f7e-4a57-9a53-7c1b2d9a0e11", false},
		{"", true},
		{"   ", true},
		{"a/b", true},
		{"has space", true},
	}

	for _, tt := range tests {
		s := NewSession(tt.id, time.Hour)
		if err := s.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}

	s := NewSession("ok", time.Hour)
	s.Turns = append(s.Turns, Turn{Role: "doll", Content: "x"})
	if err := s.Validate(); err == nil {
		t.Error("Session with unknown role should have validation error")
	}
}
