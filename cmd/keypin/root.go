// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

var (
	quiet      bool
	debug      bool
	outputFile string
	logFormat  string
	configPath string
)

// logLevel controls the global slog level at runtime.
var logLevel = new(slog.LevelVar)

// exitFunc is overridden in tests to capture exit calls.
var exitFunc = os.Exit

var rootCmd = &cobra.Command{
	Use:   "keypin",
	Short: "Public key pinning tool",
	Long: `keypin pins a server's TLS leaf public key. A pin is the standard
base64 SHA-256 digest of the leaf certificate's public key; connections whose
leaf key does not hash to the configured pin are aborted during the TLS
handshake.

The pin and server URL are kept in a YAML file (--config). Pins can be
captured on first use (get --bootstrap --save), read from DANE TLSA records,
or fetched over a Noise_NK channel from a pin exchange server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output (errors only)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text|json)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "keypin.yaml", "pin configuration file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(daneCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exchangeCmd)
}

// initLogging configures the global slog logger from the CLI flags. --debug
// takes precedence over --quiet.
func initLogging() {
	switch {
	case debug:
		logLevel.Set(slog.LevelDebug)
	case quiet:
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: debug,
	}

	handlers := map[string]func(io.Writer, *slog.HandlerOptions) slog.Handler{
		"text": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
		"json": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewJSONHandler(w, o) },
	}

	factory, ok := handlers[logFormat]
	if !ok {
		factory = handlers["text"]
	}

	slog.SetDefault(slog.New(factory(os.Stderr, opts)))
}

// openStore opens the pin configuration named by --config.
func openStore() (*pinstore.FileStore, error) {
	store, err := pinstore.OpenFile(configPath, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return store, nil
}

// writeOutput writes data to --output, or to w when no output file is set.
func writeOutput(w io.Writer, data []byte) error {
	if outputFile != "" {
		if err := os.WriteFile(outputFile, data, 0600); err != nil {
			return fmt.Errorf("%w: %w", ErrFileOperation, err)
		}
		slog.Info("written to file", "path", outputFile, "bytes", len(data))
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: %w", ErrFileOperation, err)
	}
	return nil
}
