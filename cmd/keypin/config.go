// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the stored server URL and pin",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the pin configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetURLCmd = &cobra.Command{
	Use:   "set-url <https-url>",
	Short: "Store the server URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigSetURL,
}

var configSetPinCmd = &cobra.Command{
	Use:   "set-pin <pin>",
	Short: "Store the trusted pin (base64 or hex SHA-256)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigSetPin,
}

var configClearPinCmd = &cobra.Command{
	Use:   "clear-pin",
	Short: "Remove the stored pin",
	Args:  cobra.NoArgs,
	RunE:  runConfigClearPin,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the stored URL and pin",
	Args:  cobra.NoArgs,
	RunE:  runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetURLCmd)
	configCmd.AddCommand(configSetPinCmd)
	configCmd.AddCommand(configClearPinCmd)
	configCmd.AddCommand(configResetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(store.Snapshot())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return writeOutput(cmd.OutOrStdout(), data)
}

func runConfigSetURL(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.SetURL(args[0]); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	slog.Info("server url saved", "url", args[0], "path", store.Path())
	return nil
}

func runConfigSetPin(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.SetPin(args[0]); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	pin, _ := store.LookupPin()
	slog.Info("pin saved", "pin", pin, "path", store.Path())
	return nil
}

func runConfigClearPin(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.ClearPin(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	slog.Info("pin cleared", "path", store.Path())
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.Reset(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	slog.Info("configuration reset", "path", store.Path())
	return nil
}
