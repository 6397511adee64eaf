// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keypin

import (
	"crypto/tls"
	"crypto/x509"
	"log/slog"
)

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	// Store supplies the configured pin. It is read exactly once per
	// verification call. Required.
	Store PinStore

	// Encoding selects the public key serialization that is hashed.
	// Default: KeyEncodingSPKI.
	Encoding KeyEncoding

	// Policy decides whether an Indeterminate outcome may proceed.
	// Default: PolicyStrict.
	Policy Policy

	// VerifyChain keeps the platform's CA chain validation enabled in
	// TLSConfig. When false the pin alone establishes trust.
	VerifyChain bool

	// OnOutcome, if set, is called with every outcome before the decision is
	// returned to the TLS stack. It runs on the handshake goroutine.
	OnOutcome func(*Outcome)

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Verifier is the shared pinning component injected into every TLS client.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	store       PinStore
	extractor   Extractor
	policy      Policy
	verifyChain bool
	onOutcome   func(*Outcome)
	logger      *slog.Logger
}

// NewVerifier creates a Verifier from cfg.
func NewVerifier(cfg *VerifierConfig) (*Verifier, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, ErrInvalidConfig
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Verifier{
		store:       cfg.Store,
		extractor:   Extractor{Encoding: cfg.Encoding},
		policy:      cfg.Policy,
		verifyChain: cfg.VerifyChain,
		onOutcome:   cfg.OnOutcome,
		logger:      logger.With("component", "keypin_verifier"),
	}, nil
}

// Policy returns the policy applied by the verifier.
func (v *Verifier) Policy() Policy {
	return v.policy
}

// Evaluate runs the full pipeline over one chain: extract the leaf key,
// snapshot the configured pin, and verify. Policy is not applied.
func (v *Verifier) Evaluate(ctx TrustContext) *Outcome {
	rawKey, err := v.extractor.ExtractLeafPublicKey(ctx)
	if err != nil {
		return Reject(err)
	}
	return Verify(rawKey, snapshotPin(v.store))
}

// Decide evaluates the chain, reports the outcome and applies the policy.
// It returns the outcome together with nil if the handshake may proceed, or
// the outcome's error otherwise.
func (v *Verifier) Decide(ctx TrustContext) (*Outcome, error) {
	outcome := v.Evaluate(ctx)
	allowed := v.policy.Allows(outcome)
	v.report(outcome, allowed)

	if allowed {
		return outcome, nil
	}
	return outcome, outcome.Err
}

// VerifyPeerCertificate is a tls.Config.VerifyPeerCertificate hook.
func (v *Verifier) VerifyPeerCertificate(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	_, err := v.Decide(RawChain(rawCerts))
	return err
}

// VerifyConnection is a tls.Config.VerifyConnection hook operating on the
// parsed peer certificates.
func (v *Verifier) VerifyConnection(cs tls.ConnectionState) error {
	_, err := v.Decide(Chain(cs.PeerCertificates))
	return err
}

// TLSConfig returns a client TLS configuration that enforces the pin. The
// base configuration, if any, is cloned and left unmodified. Unless
// VerifyChain is set, CA verification is skipped and the pin alone
// establishes trust.
//
// The pin is checked from VerifyConnection, which crypto/tls runs on every
// handshake including resumed sessions. VerifyPeerCertificate is skipped on
// resumption and must not carry the check when a ClientSessionCache is set.
func (v *Verifier) TLSConfig(base *tls.Config) *tls.Config {
	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.MinVersion < tls.VersionTLS12 {
		cfg.MinVersion = tls.VersionTLS12
	}
	cfg.InsecureSkipVerify = !v.verifyChain //nolint:gosec // trust is established by the pin
	cfg.VerifyConnection = v.VerifyConnection
	return cfg
}

// report logs the outcome and forwards it to the observer.
func (v *Verifier) report(o *Outcome, allowed bool) {
	switch {
	case o.Decision == Accepted:
		v.logger.Debug("public key pin verified", "digest", o.Digest)
	case allowed:
		v.logger.Info("no pin configured, allowing connection under bootstrap policy",
			"digest", o.Digest, "policy", v.policy.String())
	default:
		v.logger.Warn("public key pin verification failed",
			"decision", o.Decision.String(), "reason", o.Reason.String(),
			"digest", o.Digest, "error", o.Err)
	}

	if v.onOutcome != nil {
		v.onOutcome(o)
	}
}
