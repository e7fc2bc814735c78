// Package transport implements the length-prefixed wire protocol: the
// outer framing every message rides in, the ChaCha20-Poly1305 session
// cipher with an explicitly incrementing nonce, the server-driven
// "TLS-shaped" X25519 handshake, and the post-handshake password
// check.
package transport

import (
	"encoding/binary"
	"errors"
	"io"
)

// MinFrameLen and MaxFrameLen bound the u64le length prefix. A length
// outside this range — including zero — is InvalidLength.
const (
	MinFrameLen = 1
	MaxFrameLen = 512 << 20 // 512 MiB
)

// ErrInvalidLength is returned when a frame's length prefix is zero
// or exceeds MaxFrameLen.
var ErrInvalidLength = errors.New("invalid frame length")

// ErrPeerReset is returned when the peer closed the connection before
// sending any bytes of a new frame's length prefix.
var ErrPeerReset = errors.New("peer reset")

// ReadFrame reads one u64le-length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrPeerReset
		}
		return nil, err
	}

	length := binary.LittleEndian.Uint64(lenBuf[:])
	if length < MinFrameLen || length > MaxFrameLen {
		return nil, ErrInvalidLength
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload as one u64le-length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) < MinFrameLen || uint64(len(payload)) > MaxFrameLen {
		return ErrInvalidLength
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
