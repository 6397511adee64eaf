// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package pinexchange distributes a server's public key pin over a Noise_NK
// channel. A client that already knows the exchange server's static
// Curve25519 key can fetch the pin without trusting any TLS connection first,
// which removes the trust-on-first-use window from pin bootstrapping.
package pinexchange

import "errors"

var (
	// ErrServerNotStarted indicates Stop was called before Start.
	ErrServerNotStarted = errors.New("pinexchange: server not started")

	// ErrServerAlreadyStarted indicates Start was called twice.
	ErrServerAlreadyStarted = errors.New("pinexchange: server already started")

	// ErrInvalidConfig indicates a missing or invalid configuration value.
	ErrInvalidConfig = errors.New("pinexchange: invalid configuration")

	// ErrInvalidRequest indicates a malformed request.
	ErrInvalidRequest = errors.New("pinexchange: invalid request")

	// ErrMethodNotFound indicates an unknown request method.
	ErrMethodNotFound = errors.New("pinexchange: method not found")

	// ErrNoPinConfigured indicates the server has no pin to hand out.
	ErrNoPinConfigured = errors.New("pinexchange: no pin configured")

	// ErrInvalidPin indicates the server returned a pin that does not decode.
	ErrInvalidPin = errors.New("pinexchange: invalid pin in response")

	// ErrServerError wraps an error message reported by the server.
	ErrServerError = errors.New("pinexchange: server error")

	// ErrConnectionFailed indicates a TCP connection problem.
	ErrConnectionFailed = errors.New("pinexchange: connection failed")

	// ErrTimeout indicates a deadline could not be applied or was exceeded.
	ErrTimeout = errors.New("pinexchange: operation timeout")

	// ErrFrameTooLarge indicates a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("pinexchange: frame too large")

	// ErrHandshakeFailed indicates the Noise_NK handshake or a cipher
	// operation failed.
	ErrHandshakeFailed = errors.New("pinexchange: handshake failed")

	// ErrInvalidKey indicates a static key of the wrong size or encoding.
	ErrInvalidKey = errors.New("pinexchange: invalid static key")
)
