package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileStore persists the current actor id across restarts. Nothing else
// about a session is persisted.
type FileStore struct {
	path string
}

type fileState struct {
	ActorID string `yaml:"actor_id"`
}

// NewFileStore stores the session file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the session file path.
func (f *FileStore) Path() string { return f.path }

// CurrentActorID returns the saved actor id, or "" when none is saved.
func (f *FileStore) CurrentActorID() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}

	var st fileState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return "", fmt.Errorf("parse session: %w", err)
	}
	return st.ActorID, nil
}

// SetCurrentActorID saves the actor id, creating parent directories.
func (f *FileStore) SetCurrentActorID(id string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := yaml.Marshal(fileState{ActorID: id})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes the saved actor.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
