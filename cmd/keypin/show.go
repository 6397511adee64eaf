// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Compute the pin of a PEM certificate or public key",
	Long: `Compute the pin (base64 SHA-256 of the public key) from a PEM certificate
or PEM public key file. Only the first certificate of a chain file is used,
matching the leaf-only rule applied during verification.

--encoding native hashes the bare key encoding used by mobile platform key
APIs instead of the SubjectPublicKeyInfo.`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().String("cert-file", "", "path to PEM certificate (chain) file")
	showCmd.Flags().String("key-file", "", "path to PEM public key file")
	showCmd.Flags().String("encoding", "spki", "key encoding to hash (spki|native)")
	showCmd.Flags().Bool("hex", false, "also print the pin as hex")
}

func runShow(cmd *cobra.Command, args []string) error {
	certFile, _ := cmd.Flags().GetString("cert-file")
	keyFile, _ := cmd.Flags().GetString("key-file")
	encodingName, _ := cmd.Flags().GetString("encoding")
	showHex, _ := cmd.Flags().GetBool("hex")

	if (certFile == "") == (keyFile == "") {
		return fmt.Errorf("%w: exactly one of --cert-file or --key-file is required", ErrInvalidInput)
	}

	encoding, err := keypin.ParseKeyEncoding(encodingName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	extractor := keypin.Extractor{Encoding: encoding}

	var (
		raw     []byte
		subject string
	)
	if certFile != "" {
		certs, loadErr := loadCertsFromPEMFile(certFile)
		if loadErr != nil {
			return loadErr
		}
		raw, err = extractor.ExtractLeafPublicKey(keypin.Chain(certs))
		subject = certs[0].Subject.String()
	} else {
		pub, loadErr := loadPublicKeyFromPEMFile(keyFile)
		if loadErr != nil {
			return loadErr
		}
		raw, err = extractor.PublicKeyBytes(&x509.Certificate{PublicKey: pub})
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	digest := keypin.ComputeDigest(raw)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pin:      %s\n", digest)
	if showHex {
		fmt.Fprintf(out, "Hex:      %s\n", digest.Hex())
	}
	fmt.Fprintf(out, "Encoding: %s\n", encoding)
	if subject != "" {
		fmt.Fprintf(out, "Subject:  %s\n", subject)
	}
	return nil
}

// loadCertsFromPEMFile reads every certificate in a PEM file, leaf first.
func loadCertsFromPEMFile(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFileOperation, path, err)
	}
	certs, err := cryptoutils.UnmarshalCertificatesFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidInput, path, err)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: no certificates in %s", ErrInvalidInput, path)
	}
	return certs, nil
}

// loadPublicKeyFromPEMFile reads a PKIX or PKCS#1 PEM public key.
func loadPublicKeyFromPEMFile(path string) (crypto.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFileOperation, path, err)
	}
	pub, err := cryptoutils.UnmarshalPEMToPublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidInput, path, err)
	}
	return pub, nil
}
