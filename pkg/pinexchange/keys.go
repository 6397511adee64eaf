// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinexchange

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"
)

// KeySize is the size of Curve25519 keys in bytes.
const KeySize = curve25519.ScalarSize

// cipherSuite is the Noise_NK_25519_ChaChaPoly_SHA256 suite.
var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// GenerateStaticKey generates a server identity key pair.
func GenerateStaticKey() (*noise.DHKey, error) {
	key, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &key, nil
}

// EncodeStaticKey hex-encodes the private half of key for storage.
func EncodeStaticKey(key *noise.DHKey) string {
	return hex.EncodeToString(key.Private)
}

// DecodeStaticKey decodes a hex private key and derives its public half.
func DecodeStaticKey(encoded string) (*noise.DHKey, error) {
	priv, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(priv) != KeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, KeySize, len(priv))
	}

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &noise.DHKey{Private: priv, Public: pub}, nil
}

// DecodePublicKey decodes a hex server public key as given to clients.
func DecodePublicKey(encoded string) ([]byte, error) {
	pub, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(pub) != KeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, KeySize, len(pub))
	}
	return pub, nil
}

// WipeKey zeroes the key material in place.
func WipeKey(key *noise.DHKey) {
	if key == nil {
		return
	}
	clear(key.Private)
	clear(key.Public)
}
