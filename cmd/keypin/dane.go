// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/dane"
	"github.com/jeremyhahn/go-keypin/pkg/keypin"
)

const (
	defaultDANEPort    = 443
	defaultDANETimeout = 10 * time.Second
)

var daneCmd = &cobra.Command{
	Use:   "dane",
	Short: "Read and publish pins as DANE TLSA records",
	Long: `Pins correspond to TLSA records with selector 1 (SubjectPublicKeyInfo)
and matching type 1 (SHA-256) for an end-entity usage (3 DANE-EE or 1 PKIX-EE).`,
}

var danePinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Resolve a pin from DNSSEC-signed TLSA records",
	RunE:  runDANEPin,
}

var daneGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a TLSA zone line for a pin",
	Long: `Generate a "3 1 1" TLSA zone line from the stored pin, --pin, or the
leaf certificate in --cert-file.`,
	RunE: runDANEGenerate,
}

func init() {
	daneCmd.AddCommand(danePinCmd)
	daneCmd.AddCommand(daneGenerateCmd)

	danePinCmd.Flags().String("hostname", "", "hostname to query (required)")
	danePinCmd.Flags().Int("port", defaultDANEPort, "service port")
	danePinCmd.Flags().String("dns-server", "", "DNS server address (default: system resolver)")
	danePinCmd.Flags().Bool("dns-over-tls", false, "query over DNS-over-TLS")
	danePinCmd.Flags().String("dns-tls-server-name", "", "TLS server name for DNS-over-TLS")
	danePinCmd.Flags().Bool("allow-unauthenticated", false, "accept answers without the DNSSEC AD flag")
	danePinCmd.Flags().Bool("save", false, "store the resolved pin")

	daneGenerateCmd.Flags().String("hostname", "", "hostname for the record (required)")
	daneGenerateCmd.Flags().Int("port", defaultDANEPort, "service port")
	daneGenerateCmd.Flags().String("pin", "", "pin to publish (default: stored pin)")
	daneGenerateCmd.Flags().String("cert-file", "", "derive the pin from this PEM certificate")
}

func runDANEPin(cmd *cobra.Command, args []string) error {
	hostname, _ := cmd.Flags().GetString("hostname")
	port, _ := cmd.Flags().GetInt("port")
	dnsServer, _ := cmd.Flags().GetString("dns-server")
	dnsOverTLS, _ := cmd.Flags().GetBool("dns-over-tls")
	dnsTLSServerName, _ := cmd.Flags().GetString("dns-tls-server-name")
	allowUnauth, _ := cmd.Flags().GetBool("allow-unauthenticated")
	save, _ := cmd.Flags().GetBool("save")

	if hostname == "" {
		return fmt.Errorf("%w: --hostname is required", ErrInvalidInput)
	}
	if err := validatePort(port); err != nil {
		return err
	}

	resolver, err := dane.NewResolver(&dane.ResolverConfig{
		Server:               dnsServer,
		UseTLS:               dnsOverTLS,
		TLSServerName:        dnsTLSServerName,
		AllowUnauthenticated: allowUnauth,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ctx, cancel := signalContext(defaultDANETimeout)
	defer cancel()

	pin, err := dane.ResolvePin(ctx, resolver, hostname, uint16(port))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	if save {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.SetPin(pin); err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
		slog.Info("pin saved", "pin", pin, "path", store.Path())
	}

	fmt.Fprintln(cmd.OutOrStdout(), pin)
	return nil
}

func runDANEGenerate(cmd *cobra.Command, args []string) error {
	hostname, _ := cmd.Flags().GetString("hostname")
	port, _ := cmd.Flags().GetInt("port")
	pin, _ := cmd.Flags().GetString("pin")
	certFile, _ := cmd.Flags().GetString("cert-file")

	if hostname == "" {
		return fmt.Errorf("%w: --hostname is required", ErrInvalidInput)
	}
	if err := validatePort(port); err != nil {
		return err
	}

	switch {
	case pin != "" && certFile != "":
		return fmt.Errorf("%w: --pin and --cert-file are mutually exclusive", ErrInvalidInput)
	case certFile != "":
		certs, err := loadCertsFromPEMFile(certFile)
		if err != nil {
			return err
		}
		raw, err := keypin.ExtractLeafPublicKey(keypin.Chain(certs))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		pin = keypin.ComputeDigest(raw).String()
	case pin == "":
		store, err := openStore()
		if err != nil {
			return err
		}
		stored, ok := store.LookupPin()
		if !ok {
			return fmt.Errorf("%w: no --pin or --cert-file given and no pin configured", ErrInvalidInput)
		}
		pin = stored
	}

	record, err := dane.GenerateRecord(pin, hostname, uint16(port))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), record.ZoneLine)
	return nil
}

func validatePort(port int) error {
	if port <= 0 || port > math.MaxUint16 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidInput, port)
	}
	return nil
}
