// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package keypin implements public-key pinning for TLS server trust
// evaluation. It extracts the leaf certificate's public key from a presented
// chain, computes its SHA-256 digest, and compares that digest against a
// configured pin. The observed digest is always reported so that callers can
// capture a server's pin on first contact.
package keypin

import "errors"

// Extraction errors are always fatal to the handshake.
var (
	// ErrEmptyChain is returned when the peer presented no certificates.
	ErrEmptyChain = errors.New("keypin: empty certificate chain")

	// ErrKeyExtractionFailed is returned when the leaf certificate is present
	// but its public key cannot be serialized.
	ErrKeyExtractionFailed = errors.New("keypin: public key extraction failed")
)

// Verification errors carried by non-accepted outcomes.
var (
	// ErrPinMismatch is returned when the leaf key digest does not match the configured pin.
	ErrPinMismatch = errors.New("keypin: public key pin mismatch")

	// ErrNoPinConfigured is returned when there is no reference digest to compare against.
	ErrNoPinConfigured = errors.New("keypin: no pin configured")

	// ErrExtractionFailed wraps extraction errors in a rejected outcome.
	ErrExtractionFailed = errors.New("keypin: leaf key unavailable")

	// ErrInvalidPinFormat is returned when a pin is not a 32-byte digest in a
	// recognized text encoding.
	ErrInvalidPinFormat = errors.New("keypin: invalid pin format")
)

// Configuration and client errors.
var (
	// ErrInvalidConfig is returned when a constructor receives a nil or incomplete configuration.
	ErrInvalidConfig = errors.New("keypin: invalid configuration")

	// ErrRequestFailed is returned when a pinned request cannot be completed.
	ErrRequestFailed = errors.New("keypin: request failed")
)
