package rpc

import (
	"encoding/gob"
	"net"
	"sync"

	log "github.com/sandia-minimega/dfs/pkg/minilog"
)

// Handler services one decoded call's arguments and returns the value (or
// error) to send back as the reply.
type Handler func(args interface{}) (interface{}, error)

// Skeleton wraps an implementation's dispatch table and a listening
// socket. Starting a skeleton binds the socket (an ephemeral port if Addr
// is empty) and spawns an acceptor goroutine; each accepted connection is
// serviced on its own goroutine, one call per connection. Stopping closes
// the acceptor; in-flight service goroutines are left to run to
// completion.
type Skeleton struct {
	addr     string
	handlers map[string]Handler

	mu       sync.Mutex
	ln       net.Listener
	stopped  bool
}

// NewSkeleton creates a skeleton bound (once Start is called) to addr. An
// empty addr means "any available port on all interfaces".
func NewSkeleton(addr string, handlers map[string]Handler) *Skeleton {
	return &Skeleton{addr: addr, handlers: handlers}
}

// Start binds the listening socket and begins accepting connections. It
// is an IllegalState fault to Start a skeleton twice.
func (s *Skeleton) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln != nil {
		return Newf(IllegalState, "skeleton already started")
	}

	addr := s.addr
	if addr == "" {
		addr = ":0"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return Wrap(err)
	}
	s.ln = ln

	log.Info("rpc skeleton listening on %v", ln.Addr())

	go s.acceptLoop(ln)

	return nil
}

// Addr returns the bound listening address, useful for resolving the
// actual port when Start was called with an ephemeral address.
func (s *Skeleton) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop closes the listening socket. Further connection attempts are
// refused; goroutines already servicing an accepted connection continue
// until they finish their single call.
func (s *Skeleton) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln == nil {
		return Newf(IllegalState, "skeleton never started")
	}
	s.stopped = true
	return s.ln.Close()
}

func (s *Skeleton) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()

			if stopped {
				log.Debug("rpc skeleton %v stopped accepting", ln.Addr())
				return
			}

			log.Error("rpc accept on %v: %v", ln.Addr(), err)
			return
		}

		go s.serve(conn)
	}
}

func (s *Skeleton) serve(conn net.Conn) {
	defer conn.Close()

	dec := gob.NewDecoder(conn)
	enc := gob.NewEncoder(conn)

	var c call
	if err := dec.Decode(&c); err != nil {
		log.Debug("rpc skeleton decode from %v: %v", conn.RemoteAddr(), err)
		return
	}

	if log.WillLog(log.DEBUG) {
		log.Debug("rpc dispatch %v from %v", c.Method, conn.RemoteAddr())
	}

	var rep reply

	h, ok := s.handlers[c.Method]
	if !ok {
		rep.Err = Newf(IllegalArgument, "no such method: %v", c.Method)
	} else {
		v, err := h(c.Args)
		if err != nil {
			rep.Err = Wrap(err)
		} else {
			rep.Value = v
		}
	}

	if err := enc.Encode(rep); err != nil {
		log.Error("rpc skeleton encode reply to %v: %v", conn.RemoteAddr(), err)
	}
}
