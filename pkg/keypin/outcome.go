// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keypin

import "fmt"

// Decision is the terminal state of a single verification call.
type Decision int

const (
	// Rejected means the connection must be aborted. It is the zero value so
	// that an uninitialized outcome never reads as accepted.
	Rejected Decision = iota

	// Accepted means the leaf key matched the configured pin.
	Accepted

	// Indeterminate means no pin was configured. The caller's policy decides.
	Indeterminate
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Indeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Reason qualifies a non-accepted decision.
type Reason int

const (
	// ReasonNone accompanies Accepted.
	ReasonNone Reason = iota

	// ReasonMismatch means the digest differs from the configured pin.
	ReasonMismatch

	// ReasonNoPinConfigured means the pin store holds no pin.
	ReasonNoPinConfigured

	// ReasonExtractionFailed means no usable leaf key could be read.
	ReasonExtractionFailed
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMismatch:
		return "mismatch"
	case ReasonNoPinConfigured:
		return "no_pin_configured"
	case ReasonExtractionFailed:
		return "extraction_failed"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Outcome is the result of one verification call.
type Outcome struct {
	// Decision is the terminal state.
	Decision Decision

	// Reason explains a Rejected or Indeterminate decision.
	Reason Reason

	// Digest is the base64 SHA-256 digest of the leaf key. It is set whenever
	// a key was extracted, including on mismatch, and empty otherwise.
	Digest string

	// Err is nil for Accepted and wraps one of ErrPinMismatch,
	// ErrNoPinConfigured or ErrExtractionFailed otherwise.
	Err error
}

// Accepted reports whether the leaf key matched the configured pin.
func (o *Outcome) Accepted() bool {
	return o != nil && o.Decision == Accepted
}

// String formats the outcome for logs and CLI output.
func (o *Outcome) String() string {
	if o == nil {
		return "<nil>"
	}
	if o.Decision == Accepted {
		return fmt.Sprintf("%s digest=%s", o.Decision, o.Digest)
	}
	return fmt.Sprintf("%s (%s) digest=%s", o.Decision, o.Reason, o.Digest)
}
