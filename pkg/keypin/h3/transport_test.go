// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package h3

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"io"
	"math/big"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/quic-go/quic-go/http3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
)

// startH3Server serves body over HTTP/3 on a localhost UDP port and returns
// the URL together with the pin of the server's leaf key.
func startH3Server(t *testing.T, body string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http3.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, body)
		}),
		TLSConfig: http3.ConfigureTLSConfig(&tls.Config{
			Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
			MinVersion:   tls.VersionTLS13,
		}),
	}
	go func() { _ = srv.Serve(pc) }()
	t.Cleanup(func() {
		_ = srv.Close()
		_ = pc.Close()
	})

	return "https://" + pc.LocalAddr().String() + "/", keypin.ComputeDigest(leaf.RawSubjectPublicKeyInfo).String()
}

// recordOutcomes returns an OnOutcome hook and a getter for what it saw.
func recordOutcomes() (func(*keypin.Outcome), func() []*keypin.Outcome) {
	var (
		mu  sync.Mutex
		got []*keypin.Outcome
	)
	record := func(o *keypin.Outcome) {
		mu.Lock()
		got = append(got, o)
		mu.Unlock()
	}
	seen := func() []*keypin.Outcome {
		mu.Lock()
		defer mu.Unlock()
		return append([]*keypin.Outcome(nil), got...)
	}
	return record, seen
}

func TestNewTransport(t *testing.T) {
	v, err := keypin.NewVerifier(&keypin.VerifierConfig{Store: keypin.NoPin})
	require.NoError(t, err)

	base := &tls.Config{ServerName: "example.com"}
	rt := NewTransport(v, base)
	t.Cleanup(func() { _ = rt.Close() })

	require.NotNil(t, rt.TLSClientConfig)
	assert.Equal(t, "example.com", rt.TLSClientConfig.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS13), rt.TLSClientConfig.MinVersion)
	assert.True(t, rt.TLSClientConfig.InsecureSkipVerify)
	assert.NotNil(t, rt.TLSClientConfig.VerifyConnection)
	assert.Nil(t, base.VerifyConnection)

	require.NotNil(t, rt.QUICConfig)
	assert.Equal(t, DefaultHandshakeIdleTimeout, rt.QUICConfig.HandshakeIdleTimeout)
}

func TestNewTransport_RejectsEmptyChain(t *testing.T) {
	v, err := keypin.NewVerifier(&keypin.VerifierConfig{
		Store:  keypin.NoPin,
		Policy: keypin.PolicyBootstrap,
	})
	require.NoError(t, err)

	rt := NewTransport(v, nil)
	t.Cleanup(func() { _ = rt.Close() })

	err = rt.TLSClientConfig.VerifyConnection(tls.ConnectionState{})
	assert.ErrorIs(t, err, keypin.ErrExtractionFailed)
}

func TestNewTransport_PinnedRequest(t *testing.T) {
	url, pin := startH3Server(t, "over quic")
	record, seen := recordOutcomes()

	v, err := keypin.NewVerifier(&keypin.VerifierConfig{Store: keypin.StaticPin(pin), OnOutcome: record})
	require.NoError(t, err)
	rt := NewTransport(v, nil)
	t.Cleanup(func() { _ = rt.Close() })

	client := &http.Client{Transport: rt, Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "over quic", string(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	outcomes := seen()
	require.NotEmpty(t, outcomes)
	assert.Equal(t, keypin.Accepted, outcomes[0].Decision)
	assert.Equal(t, pin, outcomes[0].Digest)
}

func TestNewTransport_MismatchedPin(t *testing.T) {
	url, pin := startH3Server(t, "must not be read")
	record, seen := recordOutcomes()

	wrong := keypin.ComputeDigest([]byte("some other key")).String()
	v, err := keypin.NewVerifier(&keypin.VerifierConfig{Store: keypin.StaticPin(wrong), OnOutcome: record})
	require.NoError(t, err)
	rt := NewTransport(v, nil)
	t.Cleanup(func() { _ = rt.Close() })

	client := &http.Client{Transport: rt, Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)

	outcomes := seen()
	require.NotEmpty(t, outcomes)
	assert.Equal(t, keypin.Rejected, outcomes[0].Decision)
	assert.Equal(t, keypin.ReasonMismatch, outcomes[0].Reason)
	assert.Equal(t, pin, outcomes[0].Digest)
}
