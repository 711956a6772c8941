package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"scheme-admin/internal/models"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	if got := store.Token(); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	if err := store.Save(Session{Token: "tok", User: models.User{Email: "a@b.c"}}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	reopened := NewFileStore(path)
	s, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if s.Token != "tok" || s.User.Email != "a@b.c" {
		t.Fatalf("unexpected session: %+v", s)
	}

	if err := reopened.Clear(); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if reopened.Token() != "" {
		t.Fatalf("expected token cleared")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed, got %v", err)
	}
}

func TestFileStoreRejectsEmptyToken(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "s.json"))
	if err := store.Save(Session{}); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory("env-token")
	if m.Token() != "env-token" {
		t.Fatalf("unexpected token %q", m.Token())
	}
	_ = m.Clear()
	if _, err := m.Load(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
