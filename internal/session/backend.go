package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Backend persists the bearer token between runs.
//
// Load returns "" with a nil error when no token is stored.
type Backend interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// fileRecord is the on-disk session document.
type fileRecord struct {
	AccessToken string    `json:"access_token"`
	SavedAt     time.Time `json:"saved_at"`
}

// FileBackend stores the token in a 0600 JSON file.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the session file location.
func (b *FileBackend) Path() string {
	return b.path
}

// Load implements Backend.
func (b *FileBackend) Load() (string, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session file: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("corrupt session file %s: %w", b.path, err)
	}
	return rec.AccessToken, nil
}

// Save implements Backend. The file is replaced atomically.
func (b *FileBackend) Save(token string) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.Marshal(fileRecord{AccessToken: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set session file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear implements Backend.
func (b *FileBackend) Clear() error {
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// MemoryBackend keeps the token in memory.
type MemoryBackend struct {
	mu    sync.Mutex
	token string
	// Err, when set, is returned by every operation.
	Err error
}

// NewMemoryBackend returns a backend pre-loaded with token.
func NewMemoryBackend(token string) *MemoryBackend {
	return &MemoryBackend{token: token}
}

// Load implements Backend.
func (b *MemoryBackend) Load() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token, b.Err
}

// Save implements Backend.
func (b *MemoryBackend) Save(token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.token = token
	return nil
}

// Clear implements Backend.
func (b *MemoryBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.token = ""
	return nil
}
