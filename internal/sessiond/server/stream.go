package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"

	jsonitor "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/pingmark/pingmark/pkg/wire"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// StreamResponse is the JSON body sent for each command line on a stream
// connection.
type StreamResponse struct {
	Status  string `json:"status"`  // OK or ERROR
	Message string `json:"message"` // human-readable detail
}

// StreamServer answers newline-delimited commands over TCP with one JSON
// response per line. A stream "session" is the connection itself; the
// listener keeps no protocol session state, so only PING is meaningful.
type StreamServer struct {
	listener net.Listener
	sem      chan struct{} // bounds concurrently served connections

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	conns   map[net.Conn]struct{} // open connections, closed on Stop
}

// NewStream binds the stream listener on addr. maxConns values of zero or
// below fall back to DefaultMaxWorkers. Returns the server and any error
// encountered while binding.
func NewStream(addr string, maxConns int) (*StreamServer, error) {
	if maxConns <= 0 {
		maxConns = DefaultMaxWorkers
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &StreamServer{
		listener: listener,
		sem:      make(chan struct{}, maxConns),
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// trackConn registers or removes a connection so Stop can close it.
func (s *StreamServer) trackConn(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// Addr returns the local address of the stream listener.
func (s *StreamServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop until Stop is called. Returns nil after a clean
// shutdown.
func (s *StreamServer) Serve() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	log.Info().Str("addr", s.listener.Addr().String()).Msg("stream server listening")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("failed to accept connection")
			continue
		}

		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			conn.Close()
			return nil
		}

		s.trackConn(conn, true)
		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			defer s.trackConn(conn, false)
			s.handleConn(conn)
		}(conn)
	}
}

// Stop shuts the listener down and waits for in-flight connections.
func (s *StreamServer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	if err := s.listener.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing stream listener")
	}
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	log.Info().Msg("stream server stopped")
}

// handleConn serves one connection line by line until the peer disconnects
// or the server stops. A panic while serving is recovered here; it never
// reaches the accept loop.
func (s *StreamServer) handleConn(conn net.Conn) {
	slog := log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	defer conn.Close()

	defer func() {
		if r := recover(); r != nil {
			slog.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack_trace", string(debug.Stack())).
				Msg("panic while serving connection")
		}
	}()

	slog.Debug().Msg("connection opened")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, wire.MaxRequestSize), wire.MaxRequestSize)
	for scanner.Scan() {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		rsp := s.answer(scanner.Bytes())
		body, err := json.Marshal(rsp)
		if err != nil {
			slog.Error().Err(err).Msg("failed to encode response")
			return
		}
		if _, err := conn.Write(append(body, '\n')); err != nil {
			if s.ctx.Err() == nil {
				slog.Error().Err(err).Msg("failed to send response")
			}
			return
		}
	}
	if err := scanner.Err(); err != nil && s.ctx.Err() == nil {
		slog.Debug().Err(err).Msg("connection read ended")
	}
}

// answer maps one command line to its response. Stateful commands have no
// meaning on a stream, so anything besides PING is rejected.
func (s *StreamServer) answer(line []byte) StreamResponse {
	req := wire.DecodeRequest(line)
	switch req.Command {
	case wire.CommandPing:
		return StreamResponse{Status: wire.StatusOK, Message: "Alive"}
	case wire.CommandInvalid:
		return StreamResponse{Status: wire.StatusError, Message: ErrInvalidCommand.Error()}
	default:
		return StreamResponse{Status: wire.StatusError, Message: ErrUnknownCommand.Error()}
	}
}
