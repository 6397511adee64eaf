// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/pinexchange"
)

const defaultExchangeTimeout = 10 * time.Second

var exchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Fetch a pin from a pin exchange server",
	Long: `Connect to a pin exchange server over Noise_NK, authenticating it by its
static public key (--server-key, as printed by 'keypin serve'), and print the
URL and pin it distributes. --save stores both in the pin configuration.`,
	RunE: runExchange,
}

func init() {
	exchangeCmd.Flags().String("server", "", "pin exchange server address host:port (required)")
	exchangeCmd.Flags().String("server-key", "", "hex server static public key (required)")
	exchangeCmd.Flags().Bool("save", false, "store the received url and pin")
}

func runExchange(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("server")
	serverKeyHex, _ := cmd.Flags().GetString("server-key")
	save, _ := cmd.Flags().GetBool("save")

	if addr == "" {
		return fmt.Errorf("%w: --server is required", ErrInvalidInput)
	}
	if serverKeyHex == "" {
		return fmt.Errorf("%w: --server-key is required", ErrInvalidInput)
	}
	serverKey, err := pinexchange.DecodePublicKey(serverKeyHex)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyOperation, err)
	}

	client, err := pinexchange.NewClient(&pinexchange.ClientConfig{
		ServerAddr:      addr,
		ServerStaticKey: serverKey,
		Logger:          slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	defer client.Close()

	ctx, cancel := signalContext(defaultExchangeTimeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	resp, err := client.GetPin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	if save {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.SetPin(resp.Pin); err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
		if resp.URL != "" {
			if err := store.SetURL(resp.URL); err != nil {
				return fmt.Errorf("%w: %w", ErrConfig, err)
			}
		}
		slog.Info("pin saved", "pin", resp.Pin, "path", store.Path())
	}

	out := cmd.OutOrStdout()
	if resp.URL != "" {
		fmt.Fprintf(out, "URL: %s\n", resp.URL)
	}
	fmt.Fprintf(out, "Pin: %s\n", resp.Pin)
	return nil
}
