// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import "time"

// Certificate usage values (RFC 6698 Section 2.1.1).
const (
	UsagePKIXTA uint8 = 0
	UsagePKIXEE uint8 = 1
	UsageDANETA uint8 = 2
	UsageDANEEE uint8 = 3
)

// Selector values (RFC 6698 Section 2.1.2).
const (
	SelectorFullCert uint8 = 0
	SelectorSPKI     uint8 = 1
)

// Matching type values (RFC 6698 Section 2.1.3).
const (
	MatchingExact  uint8 = 0
	MatchingSHA256 uint8 = 1
	MatchingSHA512 uint8 = 2
)

// TLSARecord is a parsed TLSA resource record.
type TLSARecord struct {
	Usage        uint8
	Selector     uint8
	MatchingType uint8

	// CertData is the certificate association data.
	CertData []byte
}

// ResolverConfig configures the DNS resolver used for TLSA lookups.
type ResolverConfig struct {
	// Server is the resolver address (e.g., "9.9.9.9:53"). When empty the
	// first nameserver from /etc/resolv.conf is used.
	Server string

	// UseTLS queries over DNS-over-TLS on port 853.
	UseTLS bool

	// TLSServerName is the SNI for DNS-over-TLS connections.
	TLSServerName string

	// AllowUnauthenticated accepts answers without the DNSSEC AD flag. A pin
	// from an unauthenticated answer is only as trustworthy as the path to
	// the resolver.
	AllowUnauthenticated bool

	// Timeout bounds a single query. Default: 5 seconds.
	Timeout time.Duration
}

// Record is a TLSA record rendered for a DNS zone file.
type Record struct {
	// Name is the owner name (e.g., "_443._tcp.api.example.com.").
	Name string

	Usage        uint8
	Selector     uint8
	MatchingType uint8

	// HexData is the hex-encoded association data.
	HexData string

	// ZoneLine is the full zone file line.
	ZoneLine string
}
