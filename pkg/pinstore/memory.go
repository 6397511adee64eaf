// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinstore

import "sync"

// MemoryStore is an in-process pin store. It is safe for concurrent use.
type MemoryStore struct {
	snapshot
	mu sync.Mutex
}

// NewMemoryStore returns a store seeded with initial.
func NewMemoryStore(initial Settings) *MemoryStore {
	s := &MemoryStore{}
	s.publish(initial.clone())
	return s
}

// SetPin validates pin and stores its canonical form.
func (s *MemoryStore) SetPin(pin string) error {
	canonical, err := normalizePin(pin)
	if err != nil {
		return err
	}
	s.update(func(next *Settings) { next.Pin = &canonical })
	return nil
}

// ClearPin removes the configured pin.
func (s *MemoryStore) ClearPin() {
	s.update(func(next *Settings) { next.Pin = nil })
}

// SetURL stores the server URL.
func (s *MemoryStore) SetURL(rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	s.update(func(next *Settings) { next.URL = rawURL })
	return nil
}

// Reset clears both URL and pin.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(Settings{})
}

func (s *MemoryStore) update(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.load().clone()
	fn(&next)
	s.publish(next)
}
