// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keypin

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default timeout for pinned requests and probes.
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the maximum response body size read by Get (1 MB).
	MaxResponseSize = 1 << 20

	// defaultHTTPSPort is used by Probe when the target names no port.
	defaultHTTPSPort = "443"
)

// ClientConfig configures a pinned HTTP client.
type ClientConfig struct {
	// Verifier enforces the pin on every connection. Required.
	Verifier *Verifier

	// TLSConfig is an optional base TLS configuration (e.g., ServerName,
	// client certificates). It is cloned, never modified.
	TLSConfig *tls.Config

	// Transport, if set, replaces the pinned TCP transport for Get. It must
	// enforce the same Verifier, e.g. h3.NewTransport. Probe always dials
	// TLS over TCP.
	Transport http.RoundTripper

	// Timeout bounds each request and probe. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client performs HTTPS requests whose server trust is decided by a Verifier.
type Client struct {
	verifier   *Verifier
	baseTLS    *tls.Config
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a pinned HTTP client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil || cfg.Verifier == nil {
		return nil, fmt.Errorf("%w: verifier is required", ErrInvalidConfig)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := cfg.Transport
	if transport == nil {
		transport = NewTransport(cfg.Verifier, nil, cfg.TLSConfig)
	}

	return &Client{
		verifier: cfg.Verifier,
		baseTLS:  cfg.TLSConfig,
		timeout:  timeout,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger.With("component", "keypin_client"),
	}, nil
}

// Get performs a GET request to rawURL and returns the response body. The
// request fails if the server's leaf key is not accepted by the verifier.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	c.logger.Debug("sending pinned request", "url", rawURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: server returned %d", ErrRequestFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	c.logger.Info("pinned request succeeded", "url", rawURL, "bytes", len(body))
	return body, nil
}

// Probe performs a TLS handshake with target and returns the verification
// outcome, including the server's observed digest on mismatch. target is
// either "host:port" or an https URL. An error is returned only when no
// certificate could be evaluated (dial or handshake failure before trust
// evaluation).
func (c *Client) Probe(ctx context.Context, target string) (*Outcome, error) {
	addr, host, err := hostPort(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	var outcome *Outcome
	cfg := c.verifier.TLSConfig(c.baseTLS)
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		o, decideErr := c.verifier.Decide(Chain(cs.PeerCertificates))
		outcome = o
		return decideErr
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.timeout},
		Config:    cfg,
	}

	c.logger.Debug("probing server key", "addr", addr)

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if conn != nil {
		conn.Close()
	}
	if outcome != nil {
		return outcome, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return nil, fmt.Errorf("%w: handshake completed without trust evaluation", ErrRequestFailed)
}

// Close releases idle connections held by the client, and closes the
// transport when it supports it.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	if closer, ok := c.httpClient.Transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// hostPort resolves a probe target into a dial address and a server name.
func hostPort(target string) (addr, host string, err error) {
	if strings.Contains(target, "://") {
		u, parseErr := url.Parse(target)
		if parseErr != nil {
			return "", "", parseErr
		}
		host = u.Hostname()
		port := u.Port()
		if port == "" {
			port = defaultHTTPSPort
		}
		if host == "" {
			return "", "", fmt.Errorf("no host in %q", target)
		}
		return net.JoinHostPort(host, port), host, nil
	}

	host, _, splitErr := net.SplitHostPort(target)
	if splitErr != nil {
		// Bare hostname.
		if target == "" {
			return "", "", fmt.Errorf("empty target")
		}
		return net.JoinHostPort(target, defaultHTTPSPort), target, nil
	}
	return target, host, nil
}
