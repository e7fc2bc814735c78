// Package raptoserver wires the transport, resolver, and snapshot
// engine together: the accept loop, one goroutine per connection, a
// single executor goroutine that is the only thing ever touching the
// Store, and the autosnap worker.
package raptoserver

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raptodb/raptodb/internal/raptoconfig"
	"github.com/raptodb/raptodb/internal/raptoerr"
	"github.com/raptodb/raptodb/internal/raptolog"
	"github.com/raptodb/raptodb/internal/resolver"
	"github.com/raptodb/raptodb/internal/snapshot"
	"github.com/raptodb/raptodb/pkg/cmap"
)

// Version is the protocol version string exchanged as the first
// post-connect frame. A client whose version does not byte-equal this
// is rejected with UnmatchVersion.
const Version = "raptodb-1"

// DefaultDeadline is the default per-frame read/write deadline.
const DefaultDeadline = 5000 * time.Millisecond

// ClientInfo is the connected-set entry for one session.
type ClientInfo struct {
	ID          uint64
	Addr        string
	Name        string
	ConnectedAt time.Time
}

// Server owns the listener, the work queue, and the executor. The
// Store it drives is reachable only through Dispatcher, and
// Dispatcher is touched only from the executor goroutine.
type Server struct {
	Config     *raptoconfig.Config
	Dispatcher *resolver.Dispatcher
	Logger     raptolog.Logger
	AutoSnap   *snapshot.AutoSnap

	listener net.Listener
	queue    *workQueue
	clients  *cmap.Map[uint64, *ClientInfo]
	nextID   atomic.Uint64

	wg   sync.WaitGroup
	down atomic.Bool
}

// New builds a Server. Call Run to start accepting.
func New(cfg *raptoconfig.Config, dispatcher *resolver.Dispatcher, logger raptolog.Logger) *Server {
	return &Server{
		Config:     cfg,
		Dispatcher: dispatcher,
		Logger:     logger,
		queue:      newWorkQueue(),
		clients:    cmap.New[uint64, *ClientInfo](),
	}
}

// Run binds the listener, starts the executor and (if configured)
// the autosnap worker, and accepts connections until the listener is
// closed or DOWN is received.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.Config.Addr)
	if err != nil {
		return raptoerr.ErrBindFailed.Wrap(err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.runExecutor()

	if s.AutoSnap != nil {
		go s.AutoSnap.Run()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.down.Load() {
				break
			}
			s.Logger.Warn("accept failed", "error", err)
			continue
		}
		id := s.nextID.Add(1)
		s.wg.Add(1)
		go s.serveConn(id, conn)
	}

	s.wg.Wait()
	return nil
}

// Shutdown stops accepting new connections and closes the executor
// loop. It does not itself trigger a final snapshot — that is the
// DOWN command handler's job, run through the executor like any other
// query.
func (s *Server) Shutdown() {
	s.down.Store(true)
	if n := s.clients.Count(); n > 0 {
		s.clients.Range(func(id uint64, info *ClientInfo) bool {
			s.Logger.Info("dropping connection on shutdown", "client", id, "name", info.Name, "addr", info.Addr)
			return true
		})
	}
	if s.listener != nil {
		s.listener.Close()
	}
	if s.AutoSnap != nil {
		s.AutoSnap.Stop()
	}
	s.queue.close()
}

// ConnectedClients returns the ids of every currently registered
// session, for introspection.
func (s *Server) ConnectedClients() []uint64 {
	return s.clients.Keys()
}

// registerClient adds id to the connected set.
func (s *Server) registerClient(id uint64, addr, name string) {
	s.clients.Set(id, &ClientInfo{ID: id, Addr: addr, Name: name, ConnectedAt: time.Now()})
}

func (s *Server) unregisterClient(id uint64) {
	s.clients.Delete(id)
}

// runExecutor is the sole goroutine that ever calls Dispatcher.Resolve.
func (s *Server) runExecutor() {
	defer s.wg.Done()
	for {
		item := s.queue.waitAndPop()
		if item == nil {
			return
		}

		q, err := resolver.ParseQuery(item.clientRef, item.frame)
		if err != nil {
			item.result <- workResult{err: err}
			continue
		}

		resp, err := s.Dispatcher.Resolve(q)
		item.result <- workResult{resp: resp, err: err}

		if err == nil && resp != nil && resp.Down {
			s.Shutdown()
			return
		}
	}
}
