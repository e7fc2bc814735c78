package transport

import (
	"bytes"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	buf := bytes.NewBuffer(make([]byte, 8)) // all-zero length prefix
	if _, err := ReadFrame(buf); err != ErrInvalidLength {
		t.Fatalf("got %v, want ErrInvalidLength", err)
	}
}

func TestReadFramePeerReset(t *testing.T) {
	buf := &bytes.Buffer{}
	if _, err := ReadFrame(buf); err != ErrPeerReset {
		t.Fatalf("got %v, want ErrPeerReset", err)
	}
}

func TestSessionCipherRoundTrip(t *testing.T) {
	c, err := RandomSessionCipher()
	if err != nil {
		t.Fatal(err)
	}
	frame := c.EncryptFrame([]byte("secret message"))

	plain, err := c.DecryptFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != "secret message" {
		t.Fatalf("got %q", plain)
	}
}

func TestSessionCipherRejectsBitFlips(t *testing.T) {
	c, err := RandomSessionCipher()
	if err != nil {
		t.Fatal(err)
	}
	frame := c.EncryptFrame([]byte("secret message"))

	for i := range frame {
		tampered := make([]byte, len(frame))
		copy(tampered, frame)
		tampered[i] ^= 0x01
		if _, err := c.DecryptFrame(tampered); err != ErrDecryptionFail {
			t.Fatalf("byte %d: bit flip was not rejected", i)
		}
	}
}

func TestSessionCipherRejectsShortFrame(t *testing.T) {
	c, _ := RandomSessionCipher()
	if _, err := c.DecryptFrame([]byte("short")); err != ErrDecryptionFail {
		t.Fatalf("got %v, want ErrDecryptionFail", err)
	}
}

func TestHandshakeAndAuthOverPipe(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	var serverKey [32]byte
	copy(serverKey[:], bytes.Repeat([]byte{0x42}, 32))

	serverErrCh := make(chan error, 1)
	var serverCipher *SessionCipher
	go func() {
		serverErrCh <- ServerHandshake(serverConn, serverKey)
	}()

	clientKey, err := ClientHandshake(clientConn)
	if err != nil {
		t.Fatalf("client handshake: %v", err)
	}
	if err := <-serverErrCh; err != nil {
		t.Fatalf("server handshake: %v", err)
	}
	if clientKey != serverKey {
		t.Fatalf("client recovered key %x, want %x", clientKey, serverKey)
	}

	serverCipher, err = NewSessionCipher(serverKey)
	if err != nil {
		t.Fatal(err)
	}
	clientCipher, err := NewSessionCipher(clientKey)
	if err != nil {
		t.Fatal(err)
	}

	password := []byte("correct horse battery staple")
	authErrCh := make(chan error, 1)
	go func() {
		authErrCh <- ServerAuth(serverConn, serverCipher, password)
	}()
	if err := ClientAuth(clientConn, clientCipher, password); err != nil {
		t.Fatalf("client auth: %v", err)
	}
	if err := <-authErrCh; err != nil {
		t.Fatalf("server auth: %v", err)
	}
}

func TestServerAuthRejectsWrongPassword(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	var key [32]byte
	serverCipher, _ := NewSessionCipher(key)
	clientCipher, _ := NewSessionCipher(key)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ServerAuth(serverConn, serverCipher, []byte("correct"))
	}()

	err := ClientAuth(clientConn, clientCipher, []byte("wrong"))
	if err != ErrAuthFail {
		t.Fatalf("client: got %v, want ErrAuthFail", err)
	}
	if err := <-serverErrCh; err != ErrAuthFail {
		t.Fatalf("server: got %v, want ErrAuthFail", err)
	}
}
