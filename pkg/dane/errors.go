// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package dane derives keypin pins from DNSSEC-signed TLSA records (RFC 6698)
// and renders pins as TLSA zone lines for publication. Only records that
// describe the leaf public key by its SHA-256 digest carry a usable pin.
package dane

import "errors"

var (
	// ErrNoTLSARecords indicates the DNS answer held no TLSA records.
	ErrNoTLSARecords = errors.New("dane: no TLSA records found")

	// ErrNoPinRecord indicates TLSA records exist but none pins the leaf
	// public key with SHA-256.
	ErrNoPinRecord = errors.New("dane: no SPKI SHA-256 end-entity TLSA record")

	// ErrDNSLookupFailed indicates the TLSA query failed.
	ErrDNSLookupFailed = errors.New("dane: DNS lookup failed")

	// ErrDNSSECRequired indicates the answer was not DNSSEC authenticated.
	ErrDNSSECRequired = errors.New("dane: DNSSEC validation required but AD flag not set")
)

var (
	// ErrInvalidHostname indicates an empty or malformed hostname.
	ErrInvalidHostname = errors.New("dane: invalid hostname")

	// ErrInvalidPort indicates port number zero.
	ErrInvalidPort = errors.New("dane: invalid port")

	// ErrInvalidPin indicates a pin that does not decode to a SHA-256 digest.
	ErrInvalidPin = errors.New("dane: invalid pin")

	// ErrResolverConfig indicates the resolver configuration is invalid.
	ErrResolverConfig = errors.New("dane: invalid resolver configuration")
)
