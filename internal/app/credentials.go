package app

import (
	"sync"

	"github.com/vovakirdan/wirechat-client/internal/config"
)

// CredentialStore keeps the token a session authenticates with.
type CredentialStore interface {
	Load() (username, token string)
	Save(username, token string) error
	Clear() error
}

// MemoryCredentials is a process-local CredentialStore.
type MemoryCredentials struct {
	mu       sync.RWMutex
	username string
	token    string
}

// NewMemoryCredentials returns a store primed with username and token, either of which may be empty.
func NewMemoryCredentials(username, token string) *MemoryCredentials {
	return &MemoryCredentials{username: username, token: token}
}

func (m *MemoryCredentials) Load() (string, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.username, m.token
}

func (m *MemoryCredentials) Save(username, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username, m.token = username, token
	return nil
}

// Clear forgets the token but keeps the username for the next login prompt.
func (m *MemoryCredentials) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// FileCredentials persists the token into the YAML config file so the next run can skip login.
type FileCredentials struct {
	mem  *MemoryCredentials
	path string
}

// NewFileCredentials wraps the config file at path, primed with the values already loaded from it.
func NewFileCredentials(path, username, token string) *FileCredentials {
	return &FileCredentials{mem: NewMemoryCredentials(username, token), path: path}
}

func (f *FileCredentials) Load() (string, string) {
	return f.mem.Load()
}

func (f *FileCredentials) Save(username, token string) error {
	if err := config.SaveCredentials(f.path, username, token); err != nil {
		return err
	}
	return f.mem.Save(username, token)
}

func (f *FileCredentials) Clear() error {
	username, _ := f.mem.Load()
	if err := config.SaveCredentials(f.path, username, ""); err != nil {
		return err
	}
	return f.mem.Clear()
}
