// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keypin

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// TrustContext is the certificate chain presented by a peer for a single
// handshake, ordered leaf first. Implementations must be safe to read for the
// duration of one verification call.
type TrustContext interface {
	// Len returns the number of certificates in the chain.
	Len() int

	// Certificate returns the certificate at position i.
	Certificate(i int) (*x509.Certificate, error)
}

// Chain is a TrustContext over already parsed certificates, such as
// tls.ConnectionState.PeerCertificates.
type Chain []*x509.Certificate

// Len returns the number of certificates in the chain.
func (c Chain) Len() int { return len(c) }

// Certificate returns the certificate at position i.
func (c Chain) Certificate(i int) (*x509.Certificate, error) {
	if i < 0 || i >= len(c) {
		return nil, fmt.Errorf("keypin: chain position %d out of range", i)
	}
	if c[i] == nil {
		return nil, fmt.Errorf("keypin: nil certificate at chain position %d", i)
	}
	return c[i], nil
}

// RawChain is a TrustContext over DER certificates as handed to
// tls.Config.VerifyPeerCertificate. Certificates are parsed on demand, so
// positions that are never read are never parsed.
type RawChain [][]byte

// Len returns the number of certificates in the chain.
func (c RawChain) Len() int { return len(c) }

// Certificate parses and returns the certificate at position i.
func (c RawChain) Certificate(i int) (*x509.Certificate, error) {
	if i < 0 || i >= len(c) {
		return nil, fmt.Errorf("keypin: chain position %d out of range", i)
	}
	return x509.ParseCertificate(c[i])
}

// KeyEncoding selects how the leaf public key is serialized before hashing.
type KeyEncoding int

const (
	// KeyEncodingSPKI hashes the DER SubjectPublicKeyInfo exactly as carried
	// in the certificate. This is the default.
	KeyEncodingSPKI KeyEncoding = iota

	// KeyEncodingNative hashes the bare key encoding used by mobile platform
	// key APIs: PKCS#1 RSAPublicKey for RSA, the uncompressed point for
	// ECDSA, and the 32 raw bytes for Ed25519. Use it to verify pins that were
	// captured by such clients.
	KeyEncodingNative
)

// String returns the encoding name.
func (e KeyEncoding) String() string {
	switch e {
	case KeyEncodingSPKI:
		return "spki"
	case KeyEncodingNative:
		return "native"
	default:
		return fmt.Sprintf("KeyEncoding(%d)", int(e))
	}
}

// ParseKeyEncoding converts a name produced by KeyEncoding.String back into
// a KeyEncoding.
func ParseKeyEncoding(name string) (KeyEncoding, error) {
	switch name {
	case "spki", "":
		return KeyEncodingSPKI, nil
	case "native":
		return KeyEncodingNative, nil
	default:
		return 0, fmt.Errorf("%w: unknown key encoding %q", ErrInvalidConfig, name)
	}
}

// Extractor selects the leaf certificate of a chain and serializes its
// public key. The zero value uses KeyEncodingSPKI.
type Extractor struct {
	Encoding KeyEncoding
}

// ExtractLeafPublicKey returns the SPKI encoding of the leaf public key.
func ExtractLeafPublicKey(ctx TrustContext) ([]byte, error) {
	var e Extractor
	return e.ExtractLeafPublicKey(ctx)
}

// ExtractLeafPublicKey reads chain position 0 and returns its serialized
// public key. No other position is consulted and no chain validation is
// performed; that remains the job of the TLS stack.
func (e Extractor) ExtractLeafPublicKey(ctx TrustContext) ([]byte, error) {
	if ctx == nil || ctx.Len() == 0 {
		return nil, ErrEmptyChain
	}

	leaf, err := ctx.Certificate(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyExtractionFailed, err)
	}
	return e.PublicKeyBytes(leaf)
}

// PublicKeyBytes serializes the public key of a single certificate.
func (e Extractor) PublicKeyBytes(cert *x509.Certificate) ([]byte, error) {
	if cert == nil {
		return nil, fmt.Errorf("%w: nil certificate", ErrKeyExtractionFailed)
	}
	if cert.PublicKey == nil {
		return nil, fmt.Errorf("%w: unsupported public key algorithm %s",
			ErrKeyExtractionFailed, cert.PublicKeyAlgorithm)
	}

	switch e.Encoding {
	case KeyEncodingSPKI:
		if len(cert.RawSubjectPublicKeyInfo) > 0 {
			return cert.RawSubjectPublicKeyInfo, nil
		}
		// Certificates built in memory carry no raw encoding.
		der, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyExtractionFailed, err)
		}
		return der, nil
	case KeyEncodingNative:
		return nativeKeyBytes(cert.PublicKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrKeyExtractionFailed, e.Encoding)
	}
}

// nativeKeyBytes returns the bare key representation for the supported key types.
func nativeKeyBytes(pub any) ([]byte, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return x509.MarshalPKCS1PublicKey(k), nil
	case *ecdsa.PublicKey:
		ecdhKey, err := k.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyExtractionFailed, err)
		}
		return ecdhKey.Bytes(), nil
	case ed25519.PublicKey:
		return []byte(k), nil
	default:
		return nil, fmt.Errorf("%w: no native encoding for %T", ErrKeyExtractionFailed, pub)
	}
}
