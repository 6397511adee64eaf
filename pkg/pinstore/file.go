// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileMode keeps the pin file private to its owner.
const fileMode = 0o600

// FileStore persists the pin configuration as YAML. Every mutation is written
// to disk before it becomes visible to readers. It is safe for concurrent use
// within one process.
type FileStore struct {
	snapshot
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// OpenFile loads the store at path. A missing file is an empty configuration
// and is created on the first mutation.
func OpenFile(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &FileStore{
		path:   path,
		logger: logger.With("component", "pinstore", "path", path),
	}

	settings, err := readSettings(path)
	if err != nil {
		return nil, err
	}
	s.publish(settings)
	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// SetPin validates pin and persists its canonical form.
func (s *FileStore) SetPin(pin string) error {
	canonical, err := normalizePin(pin)
	if err != nil {
		return err
	}
	return s.update(func(next *Settings) { next.Pin = &canonical })
}

// ClearPin removes the configured pin.
func (s *FileStore) ClearPin() error {
	return s.update(func(next *Settings) { next.Pin = nil })
}

// SetURL persists the server URL.
func (s *FileStore) SetURL(rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	return s.update(func(next *Settings) { next.URL = rawURL })
}

// Reset clears both URL and pin.
func (s *FileStore) Reset() error {
	return s.update(func(next *Settings) { *next = Settings{} })
}

func (s *FileStore) update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.load().clone()
	fn(&next)

	if err := writeSettings(s.path, next); err != nil {
		return err
	}
	s.publish(next)
	s.logger.Debug("pin settings saved", "url", next.URL, "pinned", next.Pin != nil)
	return nil
}

func readSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return settings, nil
}

// writeSettings replaces path atomically via a temporary file in the same
// directory.
func writeSettings(path string, settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".keypin-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	return nil
}
