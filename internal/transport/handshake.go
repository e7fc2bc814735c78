package transport

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

// ErrHandshakeFail covers any deviation from the server-driven
// handshake sequence: a missing "recvd-sk" acknowledgement, a
// malformed public key frame, or a read error mid-sequence. Write
// errors are returned unchanged.
var ErrHandshakeFail = errors.New("tls-handshake-fail")

// This is a "TLS-shaped" exchange, not authenticated Diffie-Hellman:
// the server never verifies who holds the corresponding private key,
// and the client's raw public key bytes are used directly as a
// symmetric key rather than combined with the server's key via scalar
// multiplication. It gives confidentiality against a passive observer
// and nothing else — it does not defend against an active
// man-in-the-middle. Preserve this wire behavior; do not "fix" it into
// real DH without also changing the wire format, and do not describe
// it to operators as TLS.
const (
	tokenSendPK  = "send-pk"
	tokenSendSK  = "send-sk"
	tokenRecvdSK = "recvd-sk"
)

// GenerateX25519Keypair returns a fresh random X25519 private key and
// its corresponding public key. The returned private key bytes are not
// clamped; curve25519.X25519 clamps its own copy when deriving pub.
func GenerateX25519Keypair() (priv, pub [32]byte, err error) {
	if _, err = io.ReadFull(rand.Reader, priv[:]); err != nil {
		return
	}
	pubSlice, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return
	}
	copy(pub[:], pubSlice)
	return
}

// ServerHandshake drives the server side of Layer C: it requests the
// client's public key, treats those raw bytes as a symmetric key,
// encrypts sharedKey under it, and waits for the client's
// acknowledgement.
func ServerHandshake(rw io.ReadWriter, sharedKey [32]byte) error {
	if err := WriteFrame(rw, []byte(tokenSendPK)); err != nil {
		return err
	}

	pkFrame, err := ReadFrame(rw)
	if err != nil || len(pkFrame) != 32 {
		return ErrHandshakeFail
	}
	var clientPK [32]byte
	copy(clientPK[:], pkFrame)

	if err := WriteFrame(rw, []byte(tokenSendSK)); err != nil {
		return err
	}

	ephemeral, err := NewSessionCipher(clientPK)
	if err != nil {
		return ErrHandshakeFail
	}
	encrypted := ephemeral.EncryptFrame(sharedKey[:])
	if err := WriteFrame(rw, encrypted); err != nil {
		return err
	}

	ack, err := ReadFrame(rw)
	if err != nil || string(ack) != tokenRecvdSK {
		return ErrHandshakeFail
	}
	return nil
}

// ClientHandshake drives the client side: it generates a fresh X25519
// keypair, sends the public key as if it were a symmetric key, and
// decrypts the server's shared_key using that same raw key.
func ClientHandshake(rw io.ReadWriter) (sharedKey [32]byte, err error) {
	req, err := ReadFrame(rw)
	if err != nil || string(req) != tokenSendPK {
		return sharedKey, ErrHandshakeFail
	}

	_, pub, err := GenerateX25519Keypair()
	if err != nil {
		return sharedKey, err
	}
	if err := WriteFrame(rw, pub[:]); err != nil {
		return sharedKey, err
	}

	req2, err := ReadFrame(rw)
	if err != nil || string(req2) != tokenSendSK {
		return sharedKey, ErrHandshakeFail
	}

	encrypted, err := ReadFrame(rw)
	if err != nil {
		return sharedKey, ErrHandshakeFail
	}
	ephemeral, err := NewSessionCipher(pub)
	if err != nil {
		return sharedKey, ErrHandshakeFail
	}
	plain, err := ephemeral.DecryptFrame(encrypted)
	if err != nil || len(plain) != 32 {
		return sharedKey, ErrHandshakeFail
	}
	copy(sharedKey[:], plain)

	if err := WriteFrame(rw, []byte(tokenRecvdSK)); err != nil {
		return sharedKey, err
	}
	return sharedKey, nil
}
