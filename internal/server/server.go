// Package server implements the relay: it accepts client connections,
// reads their framed packets, and fans audio out to every other client.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voxrelay/internal/handler"
	"voxrelay/internal/packet"
	"voxrelay/pkg/verrors"
)

const (
	scratchSize       = 1024
	maxBuffered       = 2 * packet.MaxPacketSize
	outboundQueueSize = 32
)

// Server is a single broadcast domain: every connected client hears every
// other client.
type Server struct {
	addr      string
	log       *zap.Logger
	handlers  *handler.Registry
	directory *Directory

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New creates a server that will bind addr when Run is called.
func New(addr string, log *zap.Logger) *Server {
	s := &Server{
		addr:      addr,
		log:       log,
		directory: NewDirectory(),
		ready:     make(chan struct{}),
	}
	s.handlers = s.newHandlerRegistry()
	return s
}

// Run binds the listener and accepts until ctx is cancelled or the
// listener fails. Per-session errors never stop the accept loop.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	s.log.Info("server started", zap.String("addr", listener.Addr().String()))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("server stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listen address. Valid after Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// handleConn owns one client session from accept to teardown.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	id := uuid.New()
	log := s.log.With(zap.Stringer("client", id))

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := NewClient(id, outboundQueueSize)
	s.directory.Insert(client)
	log.Info("client connected")

	defer func() {
		s.directory.Remove(id)
		_ = conn.Close()
		log.Info("client disconnected")
	}()

	// Unblock the blocked read when the session winds down.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(ctx, conn, id) })
	g.Go(func() error { return s.writeLoop(ctx, conn, client) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("session ended", zap.Error(err))
	}
}

// readLoop decodes and dispatches packets in wire order. Handler n
// completes before packet n+1 is dispatched.
func (s *Server) readLoop(ctx context.Context, conn net.Conn, id uuid.UUID) error {
	scratch := make([]byte, scratchSize)
	var buf packet.Buffer

	for {
		n, readErr := conn.Read(scratch)
		if n > 0 {
			buf.Write(scratch[:n])
		}

		for {
			pkt, err := buf.Next()
			if errors.Is(err, verrors.ErrNeedMoreData) {
				break
			}
			if err != nil {
				return err
			}
			if err := s.handlers.Dispatch(ctx, id, pkt); err != nil {
				return err
			}
		}

		if buf.Len() > maxBuffered {
			return fmt.Errorf("%d bytes buffered: %w", buf.Len(), verrors.ErrBufferOverflow)
		}

		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(readErr, io.EOF) {
				return verrors.ErrConnectionClosed
			}
			return fmt.Errorf("read: %w", readErr)
		}
	}
}

// writeLoop drains the client's outbound queue onto the wire.
func (s *Server) writeLoop(ctx context.Context, conn net.Conn, client *Client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-client.send:
			if _, err := conn.Write(b); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}
