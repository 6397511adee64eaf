// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Perform a pinned HTTPS GET request",
	Long: `Send a GET request to the server and write the response body to stdout
(or --output). The TLS handshake is aborted unless the server's leaf key
matches the stored pin.

--bootstrap allows the request when no pin is configured (trust on first
use). Combined with --save, the observed pin is stored so later requests are
pinned. --no-pin ignores the stored pin, which together with --bootstrap
--save re-captures the pin after a key rotation.`,
	RunE: runGet,
}

func init() {
	getCmd.Flags().String("url", "", "request URL (default: stored url)")
	getCmd.Flags().Bool("bootstrap", false, "allow the request when no pin is configured")
	getCmd.Flags().Bool("no-pin", false, "ignore the stored pin")
	getCmd.Flags().Bool("save", false, "store the observed pin after a bootstrap request")
	getCmd.Flags().Bool("http3", false, "use HTTP/3 over QUIC")
	getCmd.Flags().String("encoding", "spki", "key encoding to hash (spki|native)")
	getCmd.Flags().Duration("timeout", defaultRequestTimeout, "request timeout")
}

func runGet(cmd *cobra.Command, args []string) error {
	flagURL, _ := cmd.Flags().GetString("url")
	bootstrap, _ := cmd.Flags().GetBool("bootstrap")
	noPin, _ := cmd.Flags().GetBool("no-pin")
	save, _ := cmd.Flags().GetBool("save")
	useHTTP3, _ := cmd.Flags().GetBool("http3")
	encodingName, _ := cmd.Flags().GetString("encoding")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if save && !bootstrap {
		return fmt.Errorf("%w: --save requires --bootstrap", ErrInvalidInput)
	}
	encoding, err := keypin.ParseKeyEncoding(encodingName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	target, err := targetURL(store, flagURL)
	if err != nil {
		return err
	}

	policy := keypin.PolicyStrict
	if bootstrap {
		policy = keypin.PolicyBootstrap
	}

	var (
		mu       sync.Mutex
		captured string
	)
	client, err := newPinnedClient(store, clientOptions{
		ignoreStoredPin: noPin,
		policy:          policy,
		encoding:        encoding,
		http3:           useHTTP3,
		timeout:         timeout,
		onOutcome: func(o *keypin.Outcome) {
			if o.Decision == keypin.Indeterminate {
				mu.Lock()
				captured = o.Digest
				mu.Unlock()
			}
		},
	})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := signalContext(timeout)
	defer cancel()

	body, err := client.Get(ctx, target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	mu.Lock()
	observed := captured
	mu.Unlock()

	if observed != "" {
		slog.Warn("connected without a pin", "pin", observed)
		if save {
			if err := store.SetPin(observed); err != nil {
				return fmt.Errorf("%w: %w", ErrConfig, err)
			}
			if store.URL() == "" {
				if err := store.SetURL(target); err != nil {
					slog.Debug("url not saved", "url", target, "error", err)
				}
			}
			slog.Info("pin saved", "pin", observed, "path", store.Path())
		}
	}

	return writeOutput(cmd.OutOrStdout(), body)
}
