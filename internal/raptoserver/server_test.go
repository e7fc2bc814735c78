package raptoserver

import (
	"net"
	"testing"
	"time"

	"github.com/raptodb/raptodb/internal/raptoconfig"
	"github.com/raptodb/raptodb/internal/raptolog"
	"github.com/raptodb/raptodb/internal/resolver"
	"github.com/raptodb/raptodb/internal/store"
	"github.com/raptodb/raptodb/internal/transport"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := raptoconfig.Default()
	cfg.Name = "test"
	cfg.Addr = "127.0.0.1:0"
	cfg.DBSize = 1 << 20

	dispatcher := &resolver.Dispatcher{
		Store:      store.New(cfg.DBSize),
		ServerName: cfg.Name,
		Capacity:   cfg.DBSize,
	}
	srv := New(cfg, dispatcher, raptolog.Default())

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		t.Fatal(err)
	}
	srv.listener = ln
	cfg.Addr = ln.Addr().String()

	srv.wg.Add(1)
	go srv.runExecutor()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			id := srv.nextID.Add(1)
			srv.wg.Add(1)
			go srv.serveConn(id, conn)
		}
	}()

	t.Cleanup(func() { srv.Shutdown() })
	return srv, cfg.Addr
}

func TestPlaintextPingRoundTrip(t *testing.T) {
	_, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := transport.WriteFrame(conn, []byte(Version)); err != nil {
		t.Fatal(err)
	}
	if err := transport.WriteFrame(conn, []byte("test-client")); err != nil {
		t.Fatal(err)
	}
	if err := transport.WriteFrame(conn, []byte("PING")); err != nil {
		t.Fatal(err)
	}

	resp, err := transport.ReadFrame(conn)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "pong" {
		t.Fatalf("got %q, want pong", resp)
	}
}

func TestVersionMismatchRejected(t *testing.T) {
	_, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := transport.WriteFrame(conn, []byte("not-the-version")); err != nil {
		t.Fatal(err)
	}
	resp, err := transport.ReadFrame(conn)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp)[:5] != "ERR: " {
		t.Fatalf("got %q, want an ERR: response", resp)
	}
}

func TestPeerDisconnectUnregistersClient(t *testing.T) {
	srv, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	transport.WriteFrame(conn, []byte(Version))
	transport.WriteFrame(conn, []byte(anonymousNameToken))
	transport.WriteFrame(conn, []byte("PING"))
	if resp, err := transport.ReadFrame(conn); err != nil || string(resp) != "pong" {
		t.Fatalf("PING: %q, %v", resp, err)
	}

	// A clean peer close must unwind serveConn's deferred
	// conn.Close()/unregisterClient rather than spinning the
	// connection goroutine forever rereading a peer-reset frame.
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(srv.ConnectedClients()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client was not unregistered after disconnect: %v", srv.ConnectedClients())
}

func TestSetGetOverConnection(t *testing.T) {
	_, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	transport.WriteFrame(conn, []byte(Version))
	transport.WriteFrame(conn, []byte(anonymousNameToken))

	transport.WriteFrame(conn, []byte("ISET counter 41"))
	if resp, err := transport.ReadFrame(conn); err != nil || string(resp) != "OK" {
		t.Fatalf("ISET: %q, %v", resp, err)
	}

	transport.WriteFrame(conn, []byte("UPDATE counter 1"))
	if resp, err := transport.ReadFrame(conn); err != nil || string(resp) != "OK" {
		t.Fatalf("UPDATE: %q, %v", resp, err)
	}

	transport.WriteFrame(conn, []byte("GET counter"))
	resp, err := transport.ReadFrame(conn)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "42" {
		t.Fatalf("GET: got %q, want 42", resp)
	}
}
