// ABOUTME: Token storage for the toolbench client
// ABOUTME: Two string slots (access/refresh) behind an interface, with file and memory backends

package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Token slot names. These double as the persisted JSON keys.
const (
	AccessToken  = "access_token"
	RefreshToken = "refresh_token"
)

// TokenStore holds the two credential slots. No expiry is tracked here;
// a stale token is only discovered by a failing request.
type TokenStore interface {
	// Get returns the stored value for the slot, and whether it is set.
	Get(kind string) (string, bool)
	// Set persists a value for the slot.
	Set(kind, value string) error
	// Clear removes both tokens.
	Clear() error
}

// MemoryStore is an in-process TokenStore, used in tests and short-lived tools.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(kind string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[kind]
	return v, ok && v != ""
}

func (s *MemoryStore) Set(kind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[kind] = value
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	return nil
}

// FileStore persists tokens as a small JSON document on disk, created 0600.
type FileStore struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// NewFileStore loads (or initializes) a token store at the given path.
// A missing or unreadable file starts empty; it is created on first Set.
func NewFileStore(path string) *FileStore {
	values := make(map[string]string)
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &values)
	}
	return &FileStore{path: path, values: values}
}

// DefaultTokenPath returns the standard token file location.
// Priority: TOOLBENCH_TOKEN_FILE > $XDG_CONFIG_HOME/toolbench/tokens.json
// > ~/.config/toolbench/tokens.json.
func DefaultTokenPath() (string, error) {
	if p := os.Getenv("TOOLBENCH_TOKEN_FILE"); p != "" {
		return p, nil
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "toolbench", "tokens.json"), nil
}

func (s *FileStore) Get(kind string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[kind]
	return v, ok && v != ""
}

func (s *FileStore) Set(kind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[kind] = value
	return s.persistLocked()
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}
	return s.persistLocked()
}

func (s *FileStore) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
