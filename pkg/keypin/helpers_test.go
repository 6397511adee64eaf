// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keypin

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestCert creates a self-signed certificate for the given key.
func newTestCert(t *testing.T, pub crypto.PublicKey, priv crypto.Signer, serial int64) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

// generateECDSACert creates a self-signed ECDSA P-256 certificate.
func generateECDSACert(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return newTestCert(t, &key.PublicKey, key, 1)
}

// generateRSACert creates a self-signed RSA 2048 certificate.
func generateRSACert(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return newTestCert(t, &key.PublicKey, key, 2)
}

// generateEd25519Cert creates a self-signed Ed25519 certificate.
func generateEd25519Cert(t *testing.T) *x509.Certificate {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return newTestCert(t, pub, priv, 3)
}

// spkiPin computes base64(sha256(SPKI)) independently of the package.
func spkiPin(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return base64.StdEncoding.EncodeToString(sum[:])
}
