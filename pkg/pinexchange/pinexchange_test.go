// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinexchange

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flynn/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

var testPin = keypin.ComputeDigest([]byte("exchange test key")).String()

func newTestKey(t *testing.T) *noise.DHKey {
	t.Helper()
	key, err := GenerateStaticKey()
	require.NoError(t, err)
	return key
}

func startTestServer(t *testing.T, pins PinProvider, mutate func(*ServerConfig)) (*Server, *noise.DHKey) {
	t.Helper()
	key := newTestKey(t)

	cfg := &ServerConfig{
		ListenAddr:   "127.0.0.1:0",
		StaticKey:    key,
		Pins:         pins,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv, key
}

func newTestClient(t *testing.T, addr string, serverPub []byte) *Client {
	t.Helper()
	c, err := NewClient(&ClientConfig{
		ServerAddr:       addr,
		ServerStaticKey:  serverPub,
		ConnectTimeout:   2 * time.Second,
		OperationTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func pinnedStore() *pinstore.MemoryStore {
	return pinstore.NewMemoryStore(pinstore.Settings{
		URL: "https://api.example.com",
		Pin: keypin.PinOf(testPin),
	})
}

func TestExchange_GetPin(t *testing.T) {
	srv, key := startTestServer(t, pinnedStore(), nil)
	c := newTestClient(t, srv.Addr().String(), key.Public)

	require.NoError(t, c.Connect(context.Background()))

	resp, err := c.GetPin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", resp.URL)
	assert.Equal(t, testPin, resp.Pin)

	// Several requests share one session.
	resp, err = c.GetPin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testPin, resp.Pin)
}

func TestExchange_ServesCurrentPin(t *testing.T) {
	store := pinnedStore()
	srv, key := startTestServer(t, store, nil)
	c := newTestClient(t, srv.Addr().String(), key.Public)
	require.NoError(t, c.Connect(context.Background()))

	rotated := keypin.ComputeDigest([]byte("rotated key")).String()
	require.NoError(t, store.SetPin(rotated))

	resp, err := c.GetPin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rotated, resp.Pin)
}

// pairedPins swaps URL and pin together and counts lookups.
type pairedPins struct {
	current atomic.Pointer[[2]string]
	lookups atomic.Int64
}

func (p *pairedPins) Lookup() (string, string, bool) {
	p.lookups.Add(1)
	cur := p.current.Load()
	return cur[0], cur[1], true
}

func TestExchange_ServesConsistentPair(t *testing.T) {
	pairs := [][2]string{
		{"https://a.example.com", keypin.ComputeDigest([]byte("key a")).String()},
		{"https://b.example.com", keypin.ComputeDigest([]byte("key b")).String()},
	}
	want := map[string]string{pairs[0][0]: pairs[0][1], pairs[1][0]: pairs[1][1]}

	pins := &pairedPins{}
	pins.current.Store(&pairs[0])
	srv, key := startTestServer(t, pins, func(cfg *ServerConfig) {
		cfg.MaxRequestsPerConn = 64
	})
	c := newTestClient(t, srv.Addr().String(), key.Public)
	require.NoError(t, c.Connect(context.Background()))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
				pins.current.Store(&pairs[i%2])
			}
		}
	}()

	const requests = 32
	for i := 0; i < requests; i++ {
		resp, err := c.GetPin(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want[resp.URL], resp.Pin, "response mixes two stored pairs")
	}
	close(done)
	wg.Wait()

	assert.Equal(t, int64(requests), pins.lookups.Load(), "one read per request")
}

func TestExchange_RequestLimitPerConnection(t *testing.T) {
	srv, key := startTestServer(t, pinnedStore(), func(cfg *ServerConfig) {
		cfg.MaxRequestsPerConn = 2
	})
	c := newTestClient(t, srv.Addr().String(), key.Public)
	require.NoError(t, c.Connect(context.Background()))

	for i := 0; i < 2; i++ {
		resp, err := c.GetPin(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testPin, resp.Pin)
	}

	_, err := c.GetPin(context.Background())
	assert.Error(t, err, "the server closes the connection once the limit is reached")

	// A fresh session is served again.
	again := newTestClient(t, srv.Addr().String(), key.Public)
	require.NoError(t, again.Connect(context.Background()))
	resp, err := again.GetPin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testPin, resp.Pin)
}

func TestExchange_NoPinConfigured(t *testing.T) {
	srv, key := startTestServer(t, pinstore.NewMemoryStore(pinstore.Settings{}), nil)
	c := newTestClient(t, srv.Addr().String(), key.Public)
	require.NoError(t, c.Connect(context.Background()))

	resp, err := c.GetPin(context.Background())
	assert.ErrorIs(t, err, ErrServerError)
	require.NotNil(t, resp)
	assert.Contains(t, resp.Error, "no pin configured")
}

func TestExchange_InvalidPinFromServer(t *testing.T) {
	store := pinstore.NewMemoryStore(pinstore.Settings{Pin: keypin.PinOf("garbage")})
	srv, key := startTestServer(t, store, nil)
	c := newTestClient(t, srv.Addr().String(), key.Public)
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.GetPin(context.Background())
	assert.ErrorIs(t, err, ErrInvalidPin)
}

func TestExchange_WrongServerKey(t *testing.T) {
	srv, _ := startTestServer(t, pinnedStore(), nil)
	other := newTestKey(t)
	c := newTestClient(t, srv.Addr().String(), other.Public)

	err := c.Connect(context.Background())
	if err == nil {
		// NK only authenticates the server once it answers; the first
		// encrypted exchange must fail.
		_, err = c.GetPin(context.Background())
	}
	assert.Error(t, err)
}

func TestExchange_UnknownMethod(t *testing.T) {
	srv, key := startTestServer(t, pinnedStore(), nil)
	c := newTestClient(t, srv.Addr().String(), key.Public)
	require.NoError(t, c.Connect(context.Background()))

	data, err := json.Marshal(&Request{Method: "get_ca_bundle"})
	require.NoError(t, err)
	ct, err := c.send.Encrypt(nil, nil, data)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, WriteFrame(c.conn, ct, deadline))
	frame, err := ReadFrame(c.conn, deadline)
	require.NoError(t, err)
	pt, err := c.recv.Decrypt(nil, nil, frame)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(pt, &resp))
	assert.Contains(t, resp.Error, "method not found")
}

func TestExchange_ConcurrentClients(t *testing.T) {
	srv, key := startTestServer(t, pinnedStore(), nil)
	addr := srv.Addr().String()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := NewClient(&ClientConfig{ServerAddr: addr, ServerStaticKey: key.Public})
			if !assert.NoError(t, err) {
				return
			}
			defer c.Close()
			if !assert.NoError(t, c.Connect(context.Background())) {
				return
			}
			resp, err := c.GetPin(context.Background())
			if assert.NoError(t, err) {
				assert.Equal(t, testPin, resp.Pin)
			}
		}()
	}
	wg.Wait()
}

func TestExchange_RateLimited(t *testing.T) {
	srv, key := startTestServer(t, pinnedStore(), func(cfg *ServerConfig) {
		cfg.RateLimit = 0.001
		cfg.RateBurst = 1
	})
	addr := srv.Addr().String()

	first := newTestClient(t, addr, key.Public)
	require.NoError(t, first.Connect(context.Background()))
	_, err := first.GetPin(context.Background())
	require.NoError(t, err)

	second := newTestClient(t, addr, key.Public)
	assert.Error(t, second.Connect(context.Background()))
}

func TestExchange_MaxConnections(t *testing.T) {
	srv, key := startTestServer(t, pinnedStore(), func(cfg *ServerConfig) {
		cfg.MaxConnections = 1
	})
	addr := srv.Addr().String()

	first := newTestClient(t, addr, key.Public)
	require.NoError(t, first.Connect(context.Background()))

	second := newTestClient(t, addr, key.Public)
	assert.Error(t, second.Connect(context.Background()))
}

func TestServer_Lifecycle(t *testing.T) {
	key := newTestKey(t)
	srv, err := NewServer(&ServerConfig{ListenAddr: "127.0.0.1:0", StaticKey: key, Pins: pinnedStore()})
	require.NoError(t, err)

	assert.Nil(t, srv.Addr())
	assert.ErrorIs(t, srv.Stop(context.Background()), ErrServerNotStarted)

	require.NoError(t, srv.Start())
	assert.ErrorIs(t, srv.Start(), ErrServerAlreadyStarted)
	assert.NotNil(t, srv.Addr())

	require.NoError(t, srv.Stop(context.Background()))
	assert.Nil(t, srv.Addr())
}

func TestServer_StopClosesIdleConnections(t *testing.T) {
	key := newTestKey(t)
	srv, err := NewServer(&ServerConfig{
		ListenAddr:  "127.0.0.1:0",
		StaticKey:   key,
		Pins:        pinnedStore(),
		ReadTimeout: time.Minute,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	c := newTestClient(t, srv.Addr().String(), key.Public)
	require.NoError(t, c.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, srv.Stop(ctx), context.DeadlineExceeded)
}

func TestNewServer_Defaults(t *testing.T) {
	srv, err := NewServer(&ServerConfig{StaticKey: newTestKey(t), Pins: pinnedStore()})
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, srv.config.ListenAddr)
	assert.Equal(t, DefaultMaxConnections, srv.config.MaxConnections)
	assert.Equal(t, DefaultMaxRequestsPerConn, srv.config.MaxRequestsPerConn)
	assert.Equal(t, DefaultReadTimeout, srv.config.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, srv.config.WriteTimeout)
	assert.Equal(t, DefaultRateLimit, srv.config.RateLimit)
	assert.Equal(t, DefaultRateBurst, srv.config.RateBurst)

	srv, err = NewServer(&ServerConfig{StaticKey: newTestKey(t), Pins: pinnedStore(), MaxConnections: MaxMaxConnections + 1})
	require.NoError(t, err)
	assert.Equal(t, MaxMaxConnections, srv.config.MaxConnections)
}

func TestNewServer_Invalid(t *testing.T) {
	_, err := NewServer(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewServer(&ServerConfig{Pins: pinnedStore()})
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewServer(&ServerConfig{StaticKey: newTestKey(t)})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewClient_Invalid(t *testing.T) {
	_, err := NewClient(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(&ClientConfig{ServerAddr: "127.0.0.1:1", ServerStaticKey: []byte{1, 2}})
	assert.ErrorIs(t, err, ErrInvalidKey)

	c, err := NewClient(&ClientConfig{ServerAddr: "127.0.0.1:1", ServerStaticKey: make([]byte, KeySize)})
	require.NoError(t, err)
	assert.Equal(t, DefaultWriteTimeout, c.config.ConnectTimeout)
	assert.Equal(t, DefaultReadTimeout, c.config.OperationTimeout)

	_, err = c.GetPin(context.Background())
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestClient_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := newTestClient(t, addr, newTestKey(t).Public)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrConnectionFailed)
}
