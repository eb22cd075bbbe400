// Package localstore persists private per-profile data on local disk.
package localstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Prefix namespaces every key this package writes.
const Prefix = "moodify:"

const fileName = "localstore.json"

// ErrNotFound is returned for keys that hold no value.
var ErrNotFound = errors.New("localstore: key doesn't exist")

// Store is a synchronous key-value store scoped to one profile directory.
// All keys share a single JSON file, so entries written by other programs
// under a different prefix are kept intact.
type Store struct {
	data   map[string]json.RawMessage
	logger *slog.Logger
	path   string
	mu     sync.RWMutex
}

// New opens the store in dir. An empty dir keeps everything in memory.
func New(dir string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		data:   make(map[string]json.RawMessage),
		logger: logger,
	}
	if dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create local storage directory: %w", err)
	}
	s.path = filepath.Join(dir, fileName)

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read local storage: %w", err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		// Treat a corrupt file like an empty profile; the next Set rewrites it.
		logger.Warn("Local storage file is corrupt, starting empty", "path", s.path, "error", err)
		s.data = make(map[string]json.RawMessage)
	}
	return s, nil
}

// Get returns the raw JSON stored under key.
func (s *Store) Get(key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.data[Prefix+key]
	if !ok || len(raw) == 0 {
		return nil, ErrNotFound
	}
	return bytes.Clone(raw), nil
}

// Set stores value under key as JSON.
// If the file cannot be written the previous value is restored.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := Prefix + key
	prev, had := s.data[k]
	s.data[k] = raw

	if err := s.saveLocked(); err != nil {
		if had {
			s.data[k] = prev
		} else {
			delete(s.data, k)
		}
		return err
	}

	s.logger.Debug("Local value saved", "key", key, "bytes", len(raw))
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := Prefix + key
	prev, had := s.data[k]
	if !had {
		return nil
	}
	delete(s.data, k)

	if err := s.saveLocked(); err != nil {
		s.data[k] = prev
		return err
	}
	return nil
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal local storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "localstore-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write to local storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close local storage: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace local storage: %w", err)
	}
	return nil
}
