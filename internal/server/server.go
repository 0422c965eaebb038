// Package server implements the TCP front end of spec §4.9: accept a
// connection, dispatch its single request/response exchange to a worker
// pool, and serve the next connection without waiting for that dispatch
// to finish.
//
// Grounded on the original project's src/server.rs KvsServer::run/serve:
// an accept loop handing each connection to pool.spawn, and a per-
// connection handler that reads one request, applies it to the engine,
// and writes one response.
package server

import (
	"errors"
	"net"

	"github.com/nilotpal-labs/emberkv/internal/engine"
	"github.com/nilotpal-labs/emberkv/internal/protocol"
	"github.com/nilotpal-labs/emberkv/internal/workerpool"
	"github.com/nilotpal-labs/emberkv/pkg/kverrors"

	"go.uber.org/zap"
)

// Server dispatches connections accepted on one listener to a worker
// pool, which serves each against its own clone of the Engine when the
// Engine implements engine.Cloner, and against the shared Engine
// otherwise.
type Server struct {
	eng  engine.Engine
	pool workerpool.Pool
	log  *zap.SugaredLogger
}

// New returns a Server that will run requests against eng through pool.
func New(eng engine.Engine, pool workerpool.Pool, log *zap.SugaredLogger) *Server {
	return &Server{eng: eng, pool: pool, log: log}
}

// Run accepts connections on ln until the listener is closed; any other
// Accept error is logged and the loop continues. Each connection is
// handed to the worker pool and Run immediately loops back to Accept, so
// one slow or blocked request never holds up new connections.
func (s *Server) Run(ln net.Listener) error {
	s.log.Infow("server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return kverrors.NewIOError(err, "accept connection")
			}
			s.log.Warnw("accept connection failed", "error", err)
			continue
		}

		s.pool.Submit(func() {
			s.serve(conn)
		})
	}
}

// serve handles exactly one request/response exchange on conn, then
// closes it — the protocol is one request per connection, never
// pipelined.
//
// Per spec §4.9 step 2, this job gets its own engine handle: when the
// configured engine supports cloning (the bitcask engine's per-goroutine
// reader cache requires it; see internal/engine.Cloner), serve clones
// once here and closes its clone when done, instead of reading through
// the Server's shared handle from whatever other goroutine happens to
// be running concurrently.
func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	eng := s.eng
	if cloner, ok := s.eng.(engine.Cloner); ok {
		eng = cloner.Clone()
		defer eng.Close()
	}

	req, err := protocol.ReadRequest(conn)
	if err != nil {
		s.log.Warnw("read request failed", "remote", conn.RemoteAddr(), "error", err)
		return
	}

	resp := dispatch(eng, req)
	if err := protocol.WriteResponse(conn, resp); err != nil {
		s.log.Warnw("write response failed", "remote", conn.RemoteAddr(), "error", err)
	}
}

func dispatch(eng engine.Engine, req protocol.Request) protocol.Response {
	switch req.Op {
	case protocol.OpGet:
		value, found, err := eng.Get(req.Key)
		if err != nil {
			return errResponse(err)
		}
		return protocol.Response{Status: protocol.StatusOK, Value: value, Found: found}

	case protocol.OpSet:
		if err := eng.Set(req.Key, req.Value); err != nil {
			return errResponse(err)
		}
		return protocol.Response{Status: protocol.StatusOK}

	case protocol.OpRemove:
		if err := eng.Remove(req.Key); err != nil {
			return errResponse(err)
		}
		return protocol.Response{Status: protocol.StatusOK}

	default:
		return protocol.Response{Status: protocol.StatusError, Error: "unknown operation: " + string(req.Op)}
	}
}

func errResponse(err error) protocol.Response {
	return protocol.Response{Status: protocol.StatusError, Error: err.Error()}
}
