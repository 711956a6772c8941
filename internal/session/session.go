package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"scheme-admin/internal/models"
)

// Session is what a successful login leaves behind on the client.
type Session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Store persists the current session. Token returns "" when logged out.
type Store interface {
	Token() string
	Load() (Session, error)
	Save(s Session) error
	Clear() error
}

var ErrNoSession = errors.New("no session")

// FileStore keeps the session as JSON in a 0600 file.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	cur    Session
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is ~/.scheme-admin/session.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".scheme-admin", "session.json")
	}
	return filepath.Join(home, ".scheme-admin", "session.json")
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Token() string {
	s, err := f.Load()
	if err != nil {
		return ""
	}
	return s.Token
}

func (f *FileStore) Load() (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		if f.cur.Token == "" {
			return Session{}, ErrNoSession
		}
		return f.cur, nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.loaded = true
			f.cur = Session{}
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	f.loaded = true
	f.cur = s
	if strings.TrimSpace(s.Token) == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (f *FileStore) Save(s Session) error {
	if strings.TrimSpace(s.Token) == "" {
		return errors.New("save session: empty token")
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(f.path, raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	f.loaded = true
	f.cur = s
	return nil
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = true
	f.cur = Session{}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Memory holds a session in process only; used for env-injected tokens and tests.
type Memory struct {
	mu  sync.RWMutex
	cur Session
}

func NewMemory(token string) *Memory {
	return &Memory{cur: Session{Token: token}}
}

func (m *Memory) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur.Token
}

func (m *Memory) Load() (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur.Token == "" {
		return Session{}, ErrNoSession
	}
	return m.cur, nil
}

func (m *Memory) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = s
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = Session{}
	return nil
}
