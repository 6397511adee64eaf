// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/flynn/noise"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
)

// Client fetches pins from a pin exchange server.
type Client struct {
	mu     sync.Mutex
	config ClientConfig
	conn   net.Conn
	send   *noise.CipherState
	recv   *noise.CipherState
	logger *slog.Logger
}

// NewClient validates cfg and creates a disconnected client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil || cfg.ServerAddr == "" {
		return nil, ErrInvalidConfig
	}
	if len(cfg.ServerStaticKey) != KeySize {
		return nil, fmt.Errorf("%w: server key must be %d bytes, got %d",
			ErrInvalidKey, KeySize, len(cfg.ServerStaticKey))
	}

	c := *cfg
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultWriteTimeout
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = DefaultReadTimeout
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config: c,
		logger: logger.With("component", "pinexchange_client", "server", c.ServerAddr),
	}, nil
}

// Connect dials the server and completes the Noise_NK handshake. A server
// that does not hold the expected static key fails the handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	dialer := &net.Dialer{Timeout: c.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.ServerAddr)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", ErrConnectionFailed, err)
	}

	send, recv, err := c.handshake(ctx, conn)
	if err != nil {
		conn.Close()
		return err
	}

	c.conn, c.send, c.recv = conn, send, recv
	c.logger.Debug("handshake complete")
	return nil
}

// GetPin requests the server's configured URL and pin. The returned pin has
// been validated with keypin.ParseDigest.
func (c *Client) GetPin(ctx context.Context) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnectionFailed)
	}

	deadline := c.deadline(ctx, c.config.OperationTimeout)

	reqData, err := json.Marshal(&Request{Method: MethodGetPin})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	ciphertext, err := c.send.Encrypt(nil, nil, reqData)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt request: %w", ErrHandshakeFailed, err)
	}
	if err := WriteFrame(c.conn, ciphertext, deadline); err != nil {
		return nil, err
	}

	respCiphertext, err := ReadFrame(c.conn, deadline)
	if err != nil {
		return nil, err
	}
	plaintext, err := c.recv.Decrypt(nil, nil, respCiphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt response: %w", ErrHandshakeFailed, err)
	}

	var resp Response
	if err := json.Unmarshal(plaintext, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrInvalidRequest, err)
	}
	if resp.Error != "" {
		return &resp, fmt.Errorf("%w: %s", ErrServerError, resp.Error)
	}
	if err := keypin.ValidatePin(resp.Pin); err != nil {
		return &resp, fmt.Errorf("%w: %w", ErrInvalidPin, err)
	}

	c.logger.Info("pin received", "url", resp.URL)
	return &resp, nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.send, c.recv = nil, nil, nil
	return err
}

// handshake performs the NK exchange as initiator: -> e, es then <- e, ee.
func (c *Client) handshake(ctx context.Context, conn net.Conn) (send, recv *noise.CipherState, err error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: cipherSuite,
		Pattern:     noise.HandshakeNK,
		Initiator:   true,
		PeerStatic:  c.config.ServerStaticKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	deadline := c.deadline(ctx, c.config.ConnectTimeout)

	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: write msg1: %w", ErrHandshakeFailed, err)
	}
	if err := WriteFrame(conn, msg1, deadline); err != nil {
		return nil, nil, fmt.Errorf("%w: send msg1: %w", ErrHandshakeFailed, err)
	}

	msg2, err := ReadFrame(conn, deadline)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read msg2: %w", ErrHandshakeFailed, err)
	}
	_, initToResp, respToInit, err := hs.ReadMessage(nil, msg2)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: process msg2: %w", ErrHandshakeFailed, err)
	}
	if initToResp == nil || respToInit == nil {
		return nil, nil, fmt.Errorf("%w: handshake did not complete", ErrHandshakeFailed)
	}

	return initToResp, respToInit, nil
}

func (c *Client) deadline(ctx context.Context, fallback time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(fallback)
}
