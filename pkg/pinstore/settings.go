// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package pinstore holds the pin configuration consulted by keypin
// verifiers: the target server URL and its trusted public key pin. Readers
// always observe a complete, immutable snapshot, so a pin replaced while a
// handshake is in flight never yields a torn read.
package pinstore

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
)

// Settings is one immutable snapshot of the pin configuration.
type Settings struct {
	// URL is the server the pin belongs to.
	URL string `yaml:"url,omitempty"`

	// Pin is the trusted base64 SHA-256 digest of the server's leaf public
	// key. Nil means no pin is configured; an empty string is a configured
	// pin that never matches.
	Pin *string `yaml:"pin,omitempty"`
}

// clone returns a deep copy so callers can never mutate a published snapshot.
func (s Settings) clone() Settings {
	out := Settings{URL: s.URL}
	if s.Pin != nil {
		pin := *s.Pin
		out.Pin = &pin
	}
	return out
}

// snapshot is the lock-free read side shared by all stores.
type snapshot struct {
	current atomic.Pointer[Settings]
}

func (s *snapshot) load() Settings {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return Settings{}
}

func (s *snapshot) publish(next Settings) {
	s.current.Store(&next)
}

// LookupPin implements keypin.PinStore.
func (s *snapshot) LookupPin() (string, bool) {
	cur := s.load()
	if cur.Pin == nil {
		return "", false
	}
	return *cur.Pin, true
}

// Lookup returns the URL and pin from a single snapshot, so the pair is one
// that was stored together.
func (s *snapshot) Lookup() (url, pin string, ok bool) {
	cur := s.load()
	if cur.Pin == nil {
		return cur.URL, "", false
	}
	return cur.URL, *cur.Pin, true
}

// URL returns the configured server URL.
func (s *snapshot) URL() string {
	return s.load().URL
}

// Snapshot returns a copy of the current settings.
func (s *snapshot) Snapshot() Settings {
	return s.load().clone()
}

// normalizePin validates pin and returns its canonical base64 form.
func normalizePin(pin string) (string, error) {
	d, err := keypin.ParseDigest(pin)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPin, err)
	}
	return d.String(), nil
}

// validateURL accepts an absolute https URL with a host, or the empty string.
func validateURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return fmt.Errorf("%w: %q must be an absolute https url", ErrInvalidURL, raw)
	}
	return nil
}
