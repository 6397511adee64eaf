// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/flynn/noise"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/pinexchange"
)

const serveShutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a Noise_NK pin exchange server",
	Long: `Serve the stored URL and pin to pin exchange clients over Noise_NK.
Clients must know the server's Curve25519 public key, printed at startup, and
can then fetch the pin without trusting a first TLS connection.

The pin is re-read for every request, so 'keypin config set-pin' takes effect
without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("key-file", "keypin-noise.key", "Noise static key file (hex, created if missing)")
	serveCmd.Flags().String("listen", pinexchange.DefaultListenAddr, "TCP listen address")
	serveCmd.Flags().Int("max-connections", pinexchange.DefaultMaxConnections, "maximum concurrent connections")
}

func runServe(cmd *cobra.Command, args []string) error {
	keyFile, _ := cmd.Flags().GetString("key-file")
	listen, _ := cmd.Flags().GetString("listen")
	maxConns, _ := cmd.Flags().GetInt("max-connections")

	store, err := openStore()
	if err != nil {
		return err
	}
	if _, ok := store.LookupPin(); !ok {
		slog.Warn("no pin configured, clients will receive an error", "path", store.Path())
	}

	staticKey, err := loadOrGenerateKey(keyFile)
	if err != nil {
		return err
	}
	defer pinexchange.WipeKey(staticKey)

	server, err := pinexchange.NewServer(&pinexchange.ServerConfig{
		ListenAddr:     listen,
		StaticKey:      staticKey,
		Pins:           store,
		MaxConnections: maxConns,
		Logger:         slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerStart, err)
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrServerStart, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server public key: %s\n", hex.EncodeToString(staticKey.Public))

	ctx, cancel := signalContext(0)
	defer cancel()
	<-ctx.Done()
	slog.Info("shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		return fmt.Errorf("%w: %w", ErrServerStart, err)
	}
	return nil
}

// loadOrGenerateKey loads the hex static key at path, creating it with 0600
// permissions when the file does not exist.
func loadOrGenerateKey(path string) (*noise.DHKey, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		key, genErr := pinexchange.GenerateStaticKey()
		if genErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyOperation, genErr)
		}
		if writeErr := os.WriteFile(path, []byte(pinexchange.EncodeStaticKey(key)+"\n"), 0600); writeErr != nil {
			return nil, fmt.Errorf("%w: writing %s: %w", ErrKeyOperation, path, writeErr)
		}
		slog.Info("generated Noise static key", "path", path)
		return key, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrKeyOperation, path, err)
	}
	defer clear(data)

	key, err := pinexchange.DecodeStaticKey(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrKeyOperation, path, err)
	}
	slog.Debug("loaded Noise static key", "path", path)
	return key, nil
}
