// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package h3 wires a keypin.Verifier into an HTTP/3 transport so QUIC
// connections are pinned with the same leaf key rules as TCP ones.
package h3

import (
	"crypto/tls"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// DefaultHandshakeIdleTimeout bounds the QUIC handshake.
const DefaultHandshakeIdleTimeout = 10 * time.Second

// NewTransport returns an HTTP/3 transport whose TLS configuration
// enforces v. base is cloned, never modified. The caller must Close the
// returned transport to release its QUIC connections.
func NewTransport(v *keypin.Verifier, base *tls.Config) *http3.Transport {
	return &http3.Transport{
		TLSClientConfig: tlsConfig(v, base),
		QUICConfig: &quic.Config{
			HandshakeIdleTimeout: DefaultHandshakeIdleTimeout,
		},
	}
}

// tlsConfig derives the pinned TLS configuration. QUIC requires TLS 1.3.
func tlsConfig(v *keypin.Verifier, base *tls.Config) *tls.Config {
	cfg := v.TLSConfig(base)
	cfg.MinVersion = tls.VersionTLS13
	return cfg
}
