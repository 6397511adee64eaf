// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keypin

import "fmt"

// Verify hashes rawKey and compares the digest with pin. A nil pin means no
// pin is configured and yields Indeterminate; an empty string is a configured
// pin that can never match. The computed digest is carried in every outcome.
func Verify(rawKey []byte, pin *string) *Outcome {
	digest := ComputeDigest(rawKey)
	observed := digest.String()

	if pin == nil {
		return &Outcome{
			Decision: Indeterminate,
			Reason:   ReasonNoPinConfigured,
			Digest:   observed,
			Err:      ErrNoPinConfigured,
		}
	}

	expected, err := ParseDigest(*pin)
	if err != nil {
		return &Outcome{
			Decision: Rejected,
			Reason:   ReasonMismatch,
			Digest:   observed,
			Err:      fmt.Errorf("%w: %w", ErrPinMismatch, err),
		}
	}

	if !digest.Equal(expected) {
		return &Outcome{
			Decision: Rejected,
			Reason:   ReasonMismatch,
			Digest:   observed,
			Err:      fmt.Errorf("%w: got %s, want %s", ErrPinMismatch, observed, expected),
		}
	}

	return &Outcome{
		Decision: Accepted,
		Reason:   ReasonNone,
		Digest:   observed,
	}
}

// Reject builds the terminal outcome for a chain whose leaf key could not be
// extracted. No digest is produced.
func Reject(err error) *Outcome {
	return &Outcome{
		Decision: Rejected,
		Reason:   ReasonExtractionFailed,
		Err:      fmt.Errorf("%w: %w", ErrExtractionFailed, err),
	}
}

// VerifyChain runs both stages over a chain: extract the leaf key with the
// default SPKI encoding, then verify it against pin.
func VerifyChain(ctx TrustContext, pin *string) *Outcome {
	rawKey, err := ExtractLeafPublicKey(ctx)
	if err != nil {
		return Reject(err)
	}
	return Verify(rawKey, pin)
}

// PinOf returns a pointer to pin, for use as Verify's configured pin.
func PinOf(pin string) *string {
	return &pin
}
