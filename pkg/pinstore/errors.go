// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinstore

import "errors"

var (
	// ErrLoadFailed is returned when a settings file cannot be read or parsed.
	ErrLoadFailed = errors.New("pinstore: failed to load settings")

	// ErrSaveFailed is returned when a settings file cannot be written.
	ErrSaveFailed = errors.New("pinstore: failed to save settings")

	// ErrInvalidPin is returned by SetPin when the pin does not decode to a
	// SHA-256 digest.
	ErrInvalidPin = errors.New("pinstore: invalid pin")

	// ErrInvalidURL is returned by SetURL for a URL that is not absolute https.
	ErrInvalidURL = errors.New("pinstore: invalid url")
)
