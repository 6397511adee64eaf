// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Handshake with a server and report its pin",
	Long: `Perform a TLS handshake with the server and print the pin of its leaf
public key together with the verification outcome against the stored pin (or
--pin). No HTTP request is sent.

The command fails when the server's key is rejected. A missing pin is
reported but is not a failure, so probe can be used to capture a pin.`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().String("url", "", "server URL or host:port (default: stored url)")
	probeCmd.Flags().String("pin", "", "pin to verify against instead of the stored pin")
	probeCmd.Flags().String("encoding", "spki", "key encoding to hash (spki|native)")
	probeCmd.Flags().Duration("timeout", defaultRequestTimeout, "handshake timeout")
}

func runProbe(cmd *cobra.Command, args []string) error {
	flagURL, _ := cmd.Flags().GetString("url")
	pin, _ := cmd.Flags().GetString("pin")
	encodingName, _ := cmd.Flags().GetString("encoding")
	timeout, _ := cmd.Flags().GetDuration("timeout")

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

	client, err := newPinnedClient(store, clientOptions{
		pinOverride: pin,
		encoding:    encoding,
		timeout:     timeout,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := signalContext(timeout)
	defer cancel()

	outcome, err := client.Probe(ctx, target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server:   %s\n", target)
	fmt.Fprintf(out, "Pin:      %s\n", outcome.Digest)
	fmt.Fprintf(out, "Decision: %s\n", outcome.Decision)
	if outcome.Reason != keypin.ReasonNone {
		fmt.Fprintf(out, "Reason:   %s\n", outcome.Reason)
	}

	if outcome.Decision == keypin.Rejected {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, outcome.Err)
	}
	return nil
}
