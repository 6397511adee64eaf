// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keypin

import (
	"crypto/tls"
	"net/http"
)

// NewTransport returns an http.Transport whose TLS client configuration
// enforces v. base is cloned when non-nil; otherwise http.DefaultTransport
// settings are used. tlsBase optionally seeds the TLS configuration.
func NewTransport(v *Verifier, base *http.Transport, tlsBase *tls.Config) *http.Transport {
	var t *http.Transport
	if base != nil {
		t = base.Clone()
	} else {
		t = http.DefaultTransport.(*http.Transport).Clone()
	}

	if tlsBase == nil {
		tlsBase = t.TLSClientConfig
	}
	t.TLSClientConfig = v.TLSConfig(tlsBase)
	return t
}
