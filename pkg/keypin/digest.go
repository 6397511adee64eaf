// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keypin

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// DigestSize is the length in bytes of a public key digest.
const DigestSize = sha256.Size

// hpkpPrefix is the optional algorithm prefix used by HPKP-style pins
// (e.g., "sha256/AbCd...=").
const hpkpPrefix = "sha256/"

// Digest is the SHA-256 fingerprint of a raw public key encoding.
type Digest [DigestSize]byte

// ComputeDigest hashes the raw public key bytes.
func ComputeDigest(rawKey []byte) Digest {
	return Digest(sha256.Sum256(rawKey))
}

// String returns the standard padded base64 encoding, which is the canonical
// text form for storage, comparison and display.
func (d Digest) String() string {
	return base64.StdEncoding.EncodeToString(d[:])
}

// Hex returns the lowercase hex encoding of the digest.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// Equal reports whether two digests hold the same bytes. The comparison runs
// in constant time.
func (d Digest) Equal(other Digest) bool {
	return subtle.ConstantTimeCompare(d[:], other[:]) == 1
}

// pinDecoders are tried in order by ParseDigest. Each must yield exactly
// DigestSize bytes to be accepted.
var pinDecoders = []func(string) ([]byte, error){
	base64.StdEncoding.DecodeString,
	base64.RawStdEncoding.DecodeString,
	base64.URLEncoding.DecodeString,
	base64.RawURLEncoding.DecodeString,
	hex.DecodeString,
}

// ParseDigest decodes a text pin into a Digest. Standard, unpadded and
// URL-safe base64 are accepted, as is a 64 character hex string. An optional
// "sha256/" prefix is stripped. Surrounding whitespace is ignored.
func ParseDigest(pin string) (Digest, error) {
	s := strings.TrimSpace(pin)
	if len(s) >= len(hpkpPrefix) && strings.EqualFold(s[:len(hpkpPrefix)], hpkpPrefix) {
		s = s[len(hpkpPrefix):]
	}
	if s == "" {
		return Digest{}, fmt.Errorf("%w: empty pin", ErrInvalidPinFormat)
	}

	for _, decode := range pinDecoders {
		b, err := decode(s)
		if err != nil || len(b) != DigestSize {
			continue
		}
		var d Digest
		copy(d[:], b)
		return d, nil
	}

	return Digest{}, fmt.Errorf("%w: expected %d-byte digest in base64 or hex, got %q",
		ErrInvalidPinFormat, DigestSize, pin)
}

// ValidatePin reports whether pin can be decoded by ParseDigest.
func ValidatePin(pin string) error {
	_, err := ParseDigest(pin)
	return err
}
