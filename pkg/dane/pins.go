// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
)

// TLSALookuper resolves the TLSA records published for host and port.
type TLSALookuper interface {
	LookupTLSA(ctx context.Context, hostname string, port uint16) ([]*TLSARecord, error)
}

// PinFromRecord returns the keypin pin carried by record, if any. Only
// end-entity records (DANE-EE or PKIX-EE) over the SubjectPublicKeyInfo with
// a SHA-256 digest describe the same value keypin verifies.
func PinFromRecord(record *TLSARecord) (string, bool) {
	if record == nil {
		return "", false
	}
	if record.Usage != UsageDANEEE && record.Usage != UsagePKIXEE {
		return "", false
	}
	if record.Selector != SelectorSPKI || record.MatchingType != MatchingSHA256 {
		return "", false
	}
	if len(record.CertData) != keypin.DigestSize {
		return "", false
	}

	var d keypin.Digest
	copy(d[:], record.CertData)
	return d.String(), true
}

// PinsFromRecords returns the distinct pins carried by records, DANE-EE
// records first.
func PinsFromRecords(records []*TLSARecord) []string {
	seen := make(map[string]struct{}, len(records))
	var daneEE, pkixEE []string

	for _, rec := range records {
		pin, ok := PinFromRecord(rec)
		if !ok {
			continue
		}
		if _, dup := seen[pin]; dup {
			continue
		}
		seen[pin] = struct{}{}
		if rec.Usage == UsageDANEEE {
			daneEE = append(daneEE, pin)
		} else {
			pkixEE = append(pkixEE, pin)
		}
	}

	return append(daneEE, pkixEE...)
}

// ResolvePin looks up the TLSA records for host and port and returns the
// first pin they carry.
func ResolvePin(ctx context.Context, lookuper TLSALookuper, hostname string, port uint16) (string, error) {
	records, err := lookuper.LookupTLSA(ctx, hostname, port)
	if err != nil {
		return "", err
	}

	pins := PinsFromRecords(records)
	if len(pins) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoPinRecord, formatTLSAName(hostname, port))
	}
	return pins[0], nil
}

// GenerateRecord renders pin as a "3 1 1" (DANE-EE, SPKI, SHA-256) TLSA
// record for host and port. Any form accepted by keypin.ParseDigest may be
// given.
func GenerateRecord(pin, hostname string, port uint16) (*Record, error) {
	if err := validateName(hostname); err != nil {
		return nil, err
	}
	if port == 0 {
		return nil, ErrInvalidPort
	}

	d, err := keypin.ParseDigest(pin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPin, err)
	}

	name := formatTLSAName(hostname, port)
	hexData := hex.EncodeToString(d[:])

	return &Record{
		Name:         name,
		Usage:        UsageDANEEE,
		Selector:     SelectorSPKI,
		MatchingType: MatchingSHA256,
		HexData:      hexData,
		ZoneLine: fmt.Sprintf("%s IN TLSA %d %d %d %s",
			name, UsageDANEEE, SelectorSPKI, MatchingSHA256, hexData),
	}, nil
}
