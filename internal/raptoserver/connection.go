package raptoserver

import (
	"errors"
	"net"
	"time"

	"github.com/raptodb/raptodb/internal/raptoerr"
	"github.com/raptodb/raptodb/internal/transport"
)

// session bundles the per-connection state the connection goroutine
// owns exclusively: its socket and, if encryption is on, its cipher.
// The executor never touches any of this.
type session struct {
	conn   net.Conn
	cipher *transport.SessionCipher
	id     uint64
}

func (s *Server) serveConn(id uint64, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sess := &session{conn: conn, id: id}

	if err := sess.setDeadlines(); err != nil {
		return
	}

	clientVersion, err := transport.ReadFrame(conn)
	if err != nil {
		return
	}
	if string(clientVersion) != Version {
		_ = transport.WriteFrame(conn, []byte("ERR: "+raptoerr.VersionPhrase(Version)))
		return
	}

	if s.Config.TLS {
		cipher, err := transport.RandomSessionCipher()
		if err != nil {
			return
		}
		if err := transport.ServerHandshake(conn, cipher.Key()); err != nil {
			s.Logger.Warn("handshake failed", "client", id, "error", err)
			return
		}
		sess.cipher = cipher

		if s.Config.Auth != "" {
			if err := transport.ServerAuth(conn, cipher, []byte(s.Config.Auth)); err != nil {
				s.Logger.Warn("auth failed", "client", id, "error", err)
				return
			}
		}
	}

	nameFrame, err := sess.read()
	if err != nil {
		return
	}
	name := string(nameFrame)
	if name == anonymousNameToken {
		name = ""
	}

	s.registerClient(id, conn.RemoteAddr().String(), name)
	defer s.unregisterClient(id)

	s.connectionLoop(sess)
}

// anonymousNameToken is the wire sentinel a client sends to mean "no
// display name". transport.MinFrameLen forbids an actual zero-length
// frame, so a client that wants an empty name sends this single NUL
// byte instead; serveConn maps it back to "".
const anonymousNameToken = "\x00"

// connectionLoop reads query frames until the connection is closed by
// the peer or hits an unrecoverable I/O error. A timeout or an
// invalid length prefix is tolerated every time it occurs — the loop
// just reads the next frame; a clean peer reset
// (the peer closed before sending a new frame's length prefix) or any
// other error terminates the connection and unwinds serveConn's
// deferred conn.Close()/unregisterClient.
func (s *Server) connectionLoop(sess *session) {
	for {
		if err := sess.setDeadlines(); err != nil {
			return
		}

		frame, err := sess.read()
		if err != nil {
			if isTolerable(err) {
				continue
			}
			return
		}

		result := make(chan workResult, 1)
		s.queue.push(&workItem{clientRef: sess.id, frame: frame, result: result})
		res := <-result

		if res.err == nil && res.resp != nil && res.resp.Down {
			return
		}

		out := formatWireResponse(res)
		if out == nil {
			continue
		}
		if err := sess.write(out); err != nil {
			return
		}
	}
}

func formatWireResponse(res workResult) []byte {
	if res.err != nil {
		return []byte("ERR: " + phraseOf(res.err))
	}
	if res.resp == nil {
		return nil
	}
	return res.resp.Bytes
}

func phraseOf(err error) string {
	var re *raptoerr.Error
	if errors.As(err, &re) {
		return re.Phrase
	}
	return err.Error()
}

func isTolerable(err error) bool {
	if errors.Is(err, transport.ErrInvalidLength) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func (s *session) setDeadlines() error {
	return s.conn.SetDeadline(time.Now().Add(DefaultDeadline))
}

func (s *session) read() ([]byte, error) {
	frame, err := transport.ReadFrame(s.conn)
	if err != nil {
		return nil, err
	}
	if s.cipher == nil {
		return frame, nil
	}
	return s.cipher.DecryptFrame(frame)
}

func (s *session) write(payload []byte) error {
	if s.cipher != nil {
		payload = s.cipher.EncryptFrame(payload)
	}
	return transport.WriteFrame(s.conn, payload)
}
