// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keypin

import "fmt"

// Policy decides whether an outcome lets the handshake proceed.
type Policy int

const (
	// PolicyStrict allows only Accepted outcomes. A missing pin aborts the
	// handshake. This is the default.
	PolicyStrict Policy = iota

	// PolicyBootstrap additionally allows Indeterminate outcomes, so a client
	// with no pin can connect once and capture the server's digest. Mismatches
	// are still rejected.
	PolicyBootstrap
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyBootstrap:
		return "bootstrap"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a policy name into a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "strict", "":
		return PolicyStrict, nil
	case "bootstrap":
		return PolicyBootstrap, nil
	default:
		return 0, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, name)
	}
}

// Allows reports whether the outcome permits the connection under p.
func (p Policy) Allows(o *Outcome) bool {
	if o == nil {
		return false
	}
	switch o.Decision {
	case Accepted:
		return true
	case Indeterminate:
		return p == PolicyBootstrap
	default:
		return false
	}
}
