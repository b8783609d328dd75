package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Handler processes one decoded control request. A returned error is
// reported to the sender in the reply frame; it does not stop the server.
type Handler func(ctx context.Context, req Request) error

// Server accepts control connections on a unix socket and hands decoded
// events to its handler
type Server struct {
	path    string
	handler Handler
	logger  zerolog.Logger

	ln     net.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a control server listening at path. Call Start to begin
// accepting connections.
func NewServer(path string, handler Handler, logger zerolog.Logger) *Server {
	return &Server{
		path:    path,
		handler: handler,
		logger:  logger.With().Str("component", "control").Logger(),
	}
}

// Start binds the socket and begins accepting connections. A stale socket
// file from a previous run is removed first.
func (s *Server) Start() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.path, err)
	}
	s.ln = ln

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	s.logger.Info().Str("socket", s.path).Msg("Control server listening")
	return nil
}

// Close stops accepting connections and removes the socket file
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.wg.Wait()
	if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.logger.Warn().Err(err).Msg("Accept failed")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn reads event frames until the peer closes or sends opClose
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Drop the connection when the server shuts down mid-read
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		opcode, payload, err := readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				s.logger.Debug().Err(err).Msg("Connection read ended")
			}
			return
		}

		switch opcode {
		case opClose:
			return
		case opEvent:
			s.handleEvent(ctx, conn, payload)
		default:
			s.logger.Debug().Uint32("opcode", opcode).Msg("Unknown opcode")
			s.reply(conn, Reply{OK: false, Error: fmt.Sprintf("unknown opcode %d", opcode)})
		}
	}
}

func (s *Server) handleEvent(ctx context.Context, conn net.Conn, payload []byte) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Debug().Err(err).Msg("Malformed control request")
		s.reply(conn, Reply{OK: false, Error: "malformed request"})
		return
	}

	s.logger.Debug().
		Str("request_id", req.ID).
		Str("action", req.Action).
		Msg("Control event received")

	if err := s.handler(ctx, req); err != nil {
		s.reply(conn, Reply{ID: req.ID, OK: false, Error: err.Error()})
		return
	}
	s.reply(conn, Reply{ID: req.ID, OK: true})
}

func (s *Server) reply(conn net.Conn, r Reply) {
	data, err := json.Marshal(r)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal reply")
		return
	}
	if err := writeFrame(conn, opReply, data); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write reply")
	}
}
