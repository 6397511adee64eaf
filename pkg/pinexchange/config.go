// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinexchange

import (
	"log/slog"
	"time"

	"github.com/flynn/noise"
)

const (
	// DefaultListenAddr is the default TCP address the server binds to.
	DefaultListenAddr = ":8446"

	// DefaultMaxConnections bounds concurrent client connections.
	DefaultMaxConnections = 100

	// MaxMaxConnections is the upper bound accepted for MaxConnections.
	MaxMaxConnections = 10000

	// DefaultMaxRequestsPerConn bounds the requests answered on one
	// connection before the server closes it.
	DefaultMaxRequestsPerConn = 8

	// DefaultReadTimeout is the deadline for reading one frame.
	DefaultReadTimeout = 10 * time.Second

	// DefaultWriteTimeout is the deadline for writing one frame.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultRateLimit is the per-IP refill rate in connections per second.
	DefaultRateLimit = 10.0

	// DefaultRateBurst is the per-IP burst size.
	DefaultRateBurst = 20

	// MaxFrameSize is the largest frame payload, the Noise message limit.
	MaxFrameSize = 65535

	// FrameHeaderSize is the length of the big-endian size prefix.
	FrameHeaderSize = 2

	// rateLimiterStaleAge and rateLimiterCleanup control eviction of idle
	// per-IP limiters.
	rateLimiterStaleAge = 10 * time.Minute
	rateLimiterCleanup  = time.Minute
)

// PinProvider supplies the URL and pin handed out by the server. Both
// pinstore stores satisfy it.
type PinProvider interface {
	// Lookup returns the URL and pin from one consistent read. ok is false
	// when no pin is configured.
	Lookup() (url, pin string, ok bool)
}

// ServerConfig configures a pin exchange server.
type ServerConfig struct {
	// ListenAddr is the TCP listen address. Default: DefaultListenAddr.
	ListenAddr string

	// StaticKey is the server's Curve25519 identity. Clients must know the
	// public half. Required.
	StaticKey *noise.DHKey

	// Pins supplies the distributed URL and pin. Required.
	Pins PinProvider

	// MaxConnections limits simultaneous clients. Default:
	// DefaultMaxConnections.
	MaxConnections int

	// MaxRequestsPerConn is the number of requests answered on one
	// connection before it is closed. Default: DefaultMaxRequestsPerConn.
	MaxRequestsPerConn int

	// ReadTimeout and WriteTimeout bound each frame. Defaults:
	// DefaultReadTimeout and DefaultWriteTimeout.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RateLimit and RateBurst shape the per-IP token bucket. Defaults:
	// DefaultRateLimit and DefaultRateBurst.
	RateLimit float64
	RateBurst int

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// applyDefaults fills zero values and validates the configuration.
func (c *ServerConfig) applyDefaults() error {
	if c.StaticKey == nil || len(c.StaticKey.Private) != KeySize || len(c.StaticKey.Public) != KeySize {
		return ErrInvalidKey
	}
	if c.Pins == nil {
		return ErrInvalidConfig
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.MaxConnections > MaxMaxConnections {
		c.MaxConnections = MaxMaxConnections
	}
	if c.MaxRequestsPerConn <= 0 {
		c.MaxRequestsPerConn = DefaultMaxRequestsPerConn
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = DefaultRateBurst
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// ClientConfig configures a pin exchange client.
type ClientConfig struct {
	// ServerAddr is the TCP address of the exchange server. Required.
	ServerAddr string

	// ServerStaticKey is the server's 32-byte Curve25519 public key. Required.
	ServerStaticKey []byte

	// ConnectTimeout bounds dialing and the handshake when the context has
	// no deadline. Default: DefaultWriteTimeout.
	ConnectTimeout time.Duration

	// OperationTimeout bounds one request when the context has no deadline.
	// Default: DefaultReadTimeout.
	OperationTimeout time.Duration

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}
