// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinexchange

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// WriteFrame writes data with a 2-byte big-endian length prefix.
func WriteFrame(conn net.Conn, data []byte, deadline time.Time) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: size %d exceeds maximum %d", ErrFrameTooLarge, len(data), MaxFrameSize)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set write deadline: %w", ErrTimeout, err)
	}

	frame := make([]byte, FrameHeaderSize+len(data))
	binary.BigEndian.PutUint16(frame, uint16(len(data)))
	copy(frame[FrameHeaderSize:], data)

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("%w: write frame: %w", ErrConnectionFailed, err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(conn net.Conn, deadline time.Time) ([]byte, error) {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: set read deadline: %w", ErrTimeout, err)
	}

	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrConnectionFailed, err)
	}

	payload := make([]byte, binary.BigEndian.Uint16(header[:]))
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, fmt.Errorf("%w: read payload: %w", ErrConnectionFailed, err)
	}
	return payload, nil
}
