package transport

import (
	"crypto/rand"
	"errors"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryptionFail is returned when AEAD verification fails, or when
// an encrypted frame is too short to contain a nonce and tag.
var ErrDecryptionFail = errors.New("decryption fail")

const (
	nonceLen = chacha20poly1305.NonceSize // 12
	tagLen   = 16
)

// SessionCipher encapsulates a session's shared key and nonce
// together, so that the increment-then-encrypt sequence is the only
// way to produce a ciphertext — one SessionCipher never encrypts twice
// under the same nonce as long as callers only ever use EncryptFrame.
//
// A SessionCipher's nonce is advanced only by this session's own
// writer; it is never shared across sessions or connections.
type SessionCipher struct {
	mu    sync.Mutex
	key   [32]byte
	nonce [12]byte
	aead  interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		Overhead() int
	}
}

// NewSessionCipher builds a cipher around an existing key, with the
// nonce starting at all-zero (the first encrypt advances it to 1
// before use).
func NewSessionCipher(key [32]byte) (*SessionCipher, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return &SessionCipher{key: key, aead: aead}, nil
}

// RandomSessionCipher builds a cipher with a freshly generated random
// key and a random starting nonce, the way the server picks shared_key
// at session start. The client builds its cipher for the same key with
// NewSessionCipher, whose counter starts at zero, so the two sides'
// nonce sequences start at unrelated points.
func RandomSessionCipher() (*SessionCipher, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, err
	}
	c, err := NewSessionCipher(key)
	if err != nil {
		return nil, err
	}
	if _, err := rand.Read(c.nonce[:]); err != nil {
		return nil, err
	}
	return c, nil
}

// Key returns the session's shared key.
func (c *SessionCipher) Key() [32]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// incrementNonce performs a little-endian increment-with-carry
// starting from the last byte. Wraparound is permitted; the counter
// width makes a collision within one session's lifetime practically
// impossible.
func incrementNonce(n *[12]byte) {
	for i := len(n) - 1; i >= 0; i-- {
		n[i]++
		if n[i] != 0 {
			return
		}
	}
}

// EncryptFrame increments the nonce, encrypts plaintext under an
// empty AAD, and returns the on-wire layout nonce || tag || ciphertext.
func (c *SessionCipher) EncryptFrame(plaintext []byte) []byte {
	c.mu.Lock()
	incrementNonce(&c.nonce)
	nonce := c.nonce
	aead := c.aead
	c.mu.Unlock()

	sealed := aead.Seal(nil, nonce[:], plaintext, nil)
	ct := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	out := make([]byte, nonceLen+tagLen+len(ct))
	copy(out, nonce[:])
	copy(out[nonceLen:], tag)
	copy(out[nonceLen+tagLen:], ct)
	return out
}

// DecryptFrame splits frame into nonce || tag || ciphertext and
// verifies/decrypts it. The nonce is taken from the wire, not from
// this cipher's own counter: the sender's incrementing discipline is
// what prevents reuse, not the receiver's state.
func (c *SessionCipher) DecryptFrame(frame []byte) ([]byte, error) {
	if len(frame) < nonceLen+tagLen {
		return nil, ErrDecryptionFail
	}
	nonce := frame[:nonceLen]
	tag := frame[nonceLen : nonceLen+tagLen]
	ct := frame[nonceLen+tagLen:]

	sealed := make([]byte, 0, len(ct)+tagLen)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	c.mu.Lock()
	aead := c.aead
	c.mu.Unlock()

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFail
	}
	return plaintext, nil
}
