// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
	"github.com/jeremyhahn/go-keypin/pkg/keypin/h3"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// defaultRequestTimeout bounds probes and pinned requests.
const defaultRequestTimeout = 15 * time.Second

// clientOptions selects how a pinned client is built from the stored
// configuration and command flags.
type clientOptions struct {
	// pinOverride replaces the stored pin when non-empty.
	pinOverride string

	// ignoreStoredPin verifies as if no pin were configured.
	ignoreStoredPin bool

	policy   keypin.Policy
	encoding keypin.KeyEncoding
	http3    bool
	timeout  time.Duration

	onOutcome func(*keypin.Outcome)
}

// newPinnedClient builds a keypin client whose pin comes from opts or store.
func newPinnedClient(store *pinstore.FileStore, opts clientOptions) (*keypin.Client, error) {
	var pins keypin.PinStore = store
	switch {
	case opts.pinOverride != "":
		if err := keypin.ValidatePin(opts.pinOverride); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		pins = keypin.StaticPin(opts.pinOverride)
	case opts.ignoreStoredPin:
		pins = keypin.NoPin
	}

	verifier, err := keypin.NewVerifier(&keypin.VerifierConfig{
		Store:     pins,
		Encoding:  opts.encoding,
		Policy:    opts.policy,
		OnOutcome: opts.onOutcome,
		Logger:    slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	cfg := &keypin.ClientConfig{
		Verifier: verifier,
		Timeout:  opts.timeout,
		Logger:   slog.Default(),
	}
	if opts.http3 {
		cfg.Transport = h3.NewTransport(verifier, nil)
	}

	client, err := keypin.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return client, nil
}

// targetURL returns flagURL, or the stored URL when the flag is empty.
func targetURL(store *pinstore.FileStore, flagURL string) (string, error) {
	if flagURL != "" {
		return flagURL, nil
	}
	if u := store.URL(); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("%w: no --url given and no url configured in %s", ErrInvalidInput, store.Path())
}

// signalContext returns a context cancelled on SIGINT/SIGTERM and after timeout.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	sigCtx, sigStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return sigCtx, sigStop
	}
	ctx, cancel := context.WithTimeout(sigCtx, timeout)
	return ctx, func() {
		cancel()
		sigStop()
	}
}
