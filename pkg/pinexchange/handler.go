// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinexchange

import (
	"fmt"
	"log/slog"
)

// MethodGetPin requests the configured URL and pin.
const MethodGetPin = "get_pin"

// Request is the JSON request sent inside the encrypted channel.
type Request struct {
	Method string `json:"method"`
}

// Response is the JSON response sent inside the encrypted channel.
type Response struct {
	// URL is the server the pin belongs to, if one is configured.
	URL string `json:"url,omitempty"`

	// Pin is the base64 SHA-256 leaf key digest.
	Pin string `json:"pin,omitempty"`

	// Error is set when the request failed.
	Error string `json:"error,omitempty"`
}

type handlerFunc func(req *Request) (*Response, error)

// Handler dispatches decrypted requests by method.
type Handler struct {
	pins     PinProvider
	handlers map[string]handlerFunc
	logger   *slog.Logger
}

// NewHandler creates a Handler serving pins from p.
func NewHandler(p PinProvider, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{pins: p, logger: logger}
	h.handlers = map[string]handlerFunc{
		MethodGetPin: h.handleGetPin,
	}
	return h
}

// Handle dispatches req to its method handler.
func (h *Handler) Handle(req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	fn, ok := h.handlers[req.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMethodNotFound, req.Method)
	}
	return fn(req)
}

func (h *Handler) handleGetPin(_ *Request) (*Response, error) {
	if h.pins == nil {
		return nil, ErrNoPinConfigured
	}
	url, pin, ok := h.pins.Lookup()
	if !ok {
		return nil, ErrNoPinConfigured
	}
	return &Response{URL: url, Pin: pin}, nil
}
