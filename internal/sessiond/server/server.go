// Package server implements the datagram server speaking the pipe-delimited
// session protocol. A single receive loop reads datagrams and hands each one
// to a bounded set of workers; session state lives in the session store and
// a failure while handling one message never terminates the loop.
package server

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pingmark/pingmark/internal/common/apperrors"
	"github.com/pingmark/pingmark/internal/common/logtrace"
	"github.com/pingmark/pingmark/internal/sessiond/session"
	"github.com/pingmark/pingmark/pkg/wire"
)

// DefaultMaxWorkers bounds concurrently active handlers when no explicit
// limit is configured.
const DefaultMaxWorkers = 100

// UDPServer serves the session protocol over a datagram socket.
type UDPServer struct {
	conn  *net.UDPConn
	store *session.Store
	sem   chan struct{} // bounds concurrently active handlers

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New binds the datagram socket on addr and returns a server dispatching to
// the given session store. maxWorkers values of zero or below fall back to
// DefaultMaxWorkers. Returns the server and any error encountered while
// binding the socket.
func New(addr string, maxWorkers int, store *session.Store) (*UDPServer, error) {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if store == nil {
		store = session.NewStore(session.DefaultTTL)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &UDPServer{
		conn:   conn,
		store:  store,
		sem:    make(chan struct{}, maxWorkers),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Addr returns the local address of the datagram socket. Useful when the
// server was bound to an ephemeral port.
func (s *UDPServer) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// ActiveWorkers returns the number of handlers currently in flight.
func (s *UDPServer) ActiveWorkers() int {
	return len(s.sem)
}

// Serve runs the receive loop until Stop is called. Each received datagram
// is handed to a worker once a slot is free; receipt itself is never
// throttled, so no decoded message is dropped while at capacity. Returns nil
// after a clean shutdown.
func (s *UDPServer) Serve() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	log.Info().Str("addr", s.conn.LocalAddr().String()).Msg("datagram server listening")

	buf := make([]byte, wire.MaxRequestSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading datagram: %w", err)
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		// Wait for a worker slot after receipt so the message queues for
		// dispatch, not for receipt.
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			return nil
		}

		s.wg.Add(1)
		go func(data []byte, addr *net.UDPAddr) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			s.handle(data, addr)
		}(data, addr)
	}
}

// Stop shuts the server down: the receive loop exits, in-flight handlers are
// waited for, and the socket is closed.
func (s *UDPServer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	if err := s.conn.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing datagram socket")
	}
	s.wg.Wait()
	log.Info().Msg("datagram server stopped")
}

// handle decodes one datagram, dispatches it, and sends the response back to
// the originating address. A panic while handling is recovered here and
// converted into an error response; it never reaches the receive loop.
func (s *UDPServer) handle(data []byte, addr *net.UDPAddr) {
	slog := log.With().Str("remote", addr.String()).Logger()

	defer func() {
		if r := recover(); r != nil {
			slog.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack_trace", string(debug.Stack())).
				Msg("panic while handling message")
			s.respond(addr, wire.Response{
				Status:  wire.StatusError,
				Message: wire.SanitizeMessage(fmt.Sprintf("%v", r)),
			}, &slog)
		}
	}()

	if logtrace.IsTraceEnabled() {
		slog.Trace().Hex("data", data).Msg("received datagram")
	}

	req := wire.DecodeRequest(data)
	rsp, err := s.dispatch(req, addr.String())
	if err != nil {
		rsp = wire.Response{Status: err.Status(), Message: err.Error()}
	}

	slog.Debug().
		Str("command", req.Command.String()).
		Str("status", rsp.Status).
		Msg("handled message")

	s.respond(addr, rsp, &slog)
}

// dispatch runs the command against the session store. Returns the response
// to send, or an error carrying the status and message to report instead.
func (s *UDPServer) dispatch(req wire.Request, remote string) (wire.Response, apperrors.Error) {
	switch req.Command {
	case wire.CommandCreateSession:
		id := s.store.Create(remote)
		return wire.Response{Status: wire.StatusOK, Message: id}, nil

	case wire.CommandPing:
		if !s.store.Validate(req.SessionID) {
			return wire.Response{}, ErrInvalidSession
		}
		return wire.Response{Status: wire.StatusPong, Message: "Alive"}, nil

	case wire.CommandUpdateData:
		if !s.store.Validate(req.SessionID) {
			return wire.Response{}, ErrInvalidSession
		}
		s.store.UpdateData(req.SessionID, "last_ping", req.Payload)
		return wire.Response{Status: wire.StatusOK, Message: "Data Updated"}, nil

	case wire.CommandCloseSession:
		if !s.store.Validate(req.SessionID) {
			return wire.Response{}, ErrInvalidSession
		}
		s.store.Close(req.SessionID)
		return wire.Response{Status: wire.StatusOK, Message: "Session Closed"}, nil

	case wire.CommandInvalid:
		return wire.Response{}, ErrInvalidCommand

	default:
		return wire.Response{}, ErrUnknownCommand
	}
}

// respond sends one response datagram. Datagrams are unreliable; a send
// failure is logged and not retried.
func (s *UDPServer) respond(addr *net.UDPAddr, rsp wire.Response, slog *zerolog.Logger) {
	if _, err := s.conn.WriteToUDP(wire.EncodeResponse(rsp.Status, rsp.Message), addr); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		slog.Error().Err(err).Msg("failed to send response")
	}
}
