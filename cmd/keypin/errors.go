// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import "errors"

// Exit codes for the CLI.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Sentinel errors for CLI operations.
var (
	// ErrInvalidInput is returned when required flags are missing or invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig is returned when the pin configuration cannot be read or saved.
	ErrConfig = errors.New("pin configuration error")

	// ErrRequestFailed is returned when a pinned request fails.
	ErrRequestFailed = errors.New("request failed")

	// ErrVerificationFailed is returned when the server's key is rejected.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrKeyOperation is returned when key generation, loading or decoding fails.
	ErrKeyOperation = errors.New("key operation failed")

	// ErrFileOperation is returned when a file read or write fails.
	ErrFileOperation = errors.New("file operation failed")

	// ErrServerStart is returned when a listener fails to start.
	ErrServerStart = errors.New("server start failed")
)
