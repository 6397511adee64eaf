// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinexchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/flynn/noise"
)

// Server answers pin requests over Noise_NK. Each TCP connection performs one
// handshake and may then send up to MaxRequestsPerConn requests.
type Server struct {
	mu       sync.Mutex
	config   *ServerConfig
	handler  *Handler
	listener net.Listener
	limiter  *ipRateLimiter
	slots    chan struct{}
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewServer validates cfg and creates a stopped server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	c := *cfg
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}

	logger := c.Logger.With("component", "pinexchange_server")
	return &Server{
		config:  &c,
		handler: NewHandler(c.Pins, logger),
		slots:   make(chan struct{}, c.MaxConnections),
		conns:   make(map[net.Conn]struct{}),
		logger:  logger,
	}, nil
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrServerAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", ErrConnectionFailed, s.config.ListenAddr, err)
	}

	s.listener = ln
	s.limiter = newIPRateLimiter(s.config.RateLimit, s.config.RateBurst,
		rateLimiterStaleAge, rateLimiterCleanup)

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.logger.Info("pin exchange listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and waits for in-flight connections. If ctx ends
// first, remaining connections are closed and ctx's error is returned.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return ErrServerNotStarted
	}
	ln := s.listener
	s.listener = nil
	limiter := s.limiter
	s.mu.Unlock()

	ln.Close()
	limiter.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("pin exchange stopped")
		return nil
	case <-ctx.Done():
		s.closeConns()
		<-done
		return ctx.Err()
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		remote := remoteIP(conn)
		if !s.limiter.Allow(remote) {
			s.logger.Warn("connection rate limited", "remote", remote)
			conn.Close()
			continue
		}

		select {
		case s.slots <- struct{}{}:
		default:
			s.logger.Warn("max connections reached", "remote", remote,
				"max", s.config.MaxConnections)
			conn.Close()
			continue
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.slots }()
			defer s.track(conn, false)
			defer conn.Close()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// serveConn runs the responder handshake and then answers requests until the
// client disconnects, a frame fails or the per-connection request limit is
// reached.
func (s *Server) serveConn(conn net.Conn) {
	logger := s.logger.With("remote", conn.RemoteAddr().String())

	send, recv, err := s.handshake(conn)
	if err != nil {
		logger.Debug("handshake failed", "error", err)
		return
	}
	logger.Debug("handshake complete")

	for served := 0; ; served++ {
		if served >= s.config.MaxRequestsPerConn {
			logger.Debug("request limit reached, closing connection", "max", s.config.MaxRequestsPerConn)
			return
		}

		ciphertext, err := ReadFrame(conn, time.Now().Add(s.config.ReadTimeout))
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("read request failed", "error", err)
			}
			return
		}

		plaintext, err := recv.Decrypt(nil, nil, ciphertext)
		if err != nil {
			logger.Warn("request decryption failed", "error", err)
			return
		}

		resp := s.dispatch(plaintext, logger)
		data, err := json.Marshal(resp)
		if err != nil {
			logger.Error("marshal response failed", "error", err)
			return
		}

		out, err := send.Encrypt(nil, nil, data)
		if err != nil {
			logger.Error("response encryption failed", "error", err)
			return
		}
		if err := WriteFrame(conn, out, time.Now().Add(s.config.WriteTimeout)); err != nil {
			logger.Debug("write response failed", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(plaintext []byte, logger *slog.Logger) *Response {
	var req Request
	if err := json.Unmarshal(plaintext, &req); err != nil {
		return &Response{Error: fmt.Errorf("%w: %w", ErrInvalidRequest, err).Error()}
	}

	resp, err := s.handler.Handle(&req)
	if err != nil {
		logger.Info("request failed", "method", req.Method, "error", err)
		return &Response{Error: err.Error()}
	}
	logger.Info("pin served", "method", req.Method)
	return resp
}

// handshake performs the two-message NK exchange as responder:
// <- e, es then -> e, ee.
func (s *Server) handshake(conn net.Conn) (send, recv *noise.CipherState, err error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeNK,
		Initiator:     false,
		StaticKeypair: *s.config.StaticKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	msg1, err := ReadFrame(conn, time.Now().Add(s.config.ReadTimeout))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read msg1: %w", ErrHandshakeFailed, err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg1); err != nil {
		return nil, nil, fmt.Errorf("%w: process msg1: %w", ErrHandshakeFailed, err)
	}

	msg2, initToResp, respToInit, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: write msg2: %w", ErrHandshakeFailed, err)
	}
	if initToResp == nil || respToInit == nil {
		return nil, nil, fmt.Errorf("%w: handshake did not complete", ErrHandshakeFailed)
	}
	if err := WriteFrame(conn, msg2, time.Now().Add(s.config.WriteTimeout)); err != nil {
		return nil, nil, fmt.Errorf("%w: send msg2: %w", ErrHandshakeFailed, err)
	}

	return respToInit, initToResp, nil
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
