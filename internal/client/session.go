// Package client implements the client side of the relay: one TCP session
// carrying framed packets, bridged to the local capture and playback
// devices.
package client

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

	"voxrelay/internal/audio"
	"voxrelay/internal/codec"
	"voxrelay/internal/handler"
	"voxrelay/internal/packet"
	"voxrelay/pkg/verrors"
)

const (
	// scratchSize is the fixed per-iteration read buffer.
	scratchSize = 1024
	// maxBuffered caps the rolling decode buffer; beyond it the peer is
	// assumed hostile or broken.
	maxBuffered = 2 * packet.MaxPacketSize

	outboundQueueSize = 32
	micQueueSize      = 20
	playbackQueueSize = 32
)

// AudioBridge is the slice of the device registry a session drives. The
// session knows nothing about the platform behind it.
type AudioBridge interface {
	// CaptureConfig reports the rate and channels the capture stream uses.
	CaptureConfig() (sampleRate, channels int, err error)
	// StartActive opens capture and playback on the active devices.
	StartActive(micSink chan<- []float32, playbackSource <-chan []float32) error
	// Stop releases both streams.
	Stop()
}

// Session is one client connection: read, write, mic, and playback tasks
// racing until the first one returns or Stop is called.
type Session struct {
	conn      *net.TCPConn
	codec     *codec.Codec
	bridge    AudioBridge
	processor *audio.Processor
	handlers  *handler.Registry
	log       *zap.Logger

	// outbound carries fully framed packet bytes to the write task.
	outbound chan []byte
	// mic carries captured PCM frames from the device callback.
	mic chan []float32
	// decoded carries PCM frames published by the audio handler.
	decoded chan []float32
	// playback feeds the device playback callback.
	playback chan []float32

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// Connect establishes the TCP transport and prepares the session. Nagle
// batching is disabled; every packet write goes straight out.
func Connect(addr string, c *codec.Codec, bridge AudioBridge, log *zap.Logger) (*Session, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("dial %s: not a tcp connection", addr)
	}
	if err := tcpConn.SetNoDelay(true); err != nil {
		_ = tcpConn.Close()
		return nil, fmt.Errorf("set nodelay: %w", err)
	}

	s := &Session{
		conn:      tcpConn,
		codec:     c,
		bridge:    bridge,
		processor: audio.NewProcessor(c, log),
		log:       log,
		outbound:  make(chan []byte, outboundQueueSize),
		mic:       make(chan []float32, micQueueSize),
		decoded:   make(chan []float32, playbackQueueSize),
		playback:  make(chan []float32, playbackQueueSize),
	}
	s.handlers = s.newHandlerRegistry()

	log.Info("connected", zap.String("addr", addr))
	return s, nil
}

// Run announces the client and drives the session tasks until one of them
// returns or the context is cancelled. It always leaves the connection
// closed and the audio streams stopped.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		cancel()
		return errors.New("session already running")
	}
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	s.outbound <- packet.Encode(packet.KindConnect, packet.EncodeConnectPayload())

	// Unblock the read task when the session is torn down. Only the read
	// side closes here so the write task can still flush its queue.
	go func() {
		<-ctx.Done()
		_ = s.conn.CloseRead()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(ctx) })
	g.Go(func() error { return s.writeLoop(ctx) })
	g.Go(func() error { return s.micLoop(ctx) })
	g.Go(func() error { return s.playbackLoop(ctx) })

	err := g.Wait()
	cancel()
	_ = s.conn.Close()

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("session ended", zap.Error(err))
		return err
	}
	s.log.Info("session ended")
	return nil
}

// Stop announces the departure and arms the single-shot cancel. Safe to
// call from any goroutine; a second Stop is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	// Best effort: the write task drains queued packets before exiting.
	select {
	case s.outbound <- packet.Encode(packet.KindDisconnect, packet.EncodeDisconnectPayload()):
	default:
	}
	cancel()
}

// IsRunning reports whether the session tasks are live and no stop signal
// has been armed.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.cancel != nil
}

// readLoop pulls bytes off the wire, decodes as many packets as are
// complete, and dispatches them in wire order.
func (s *Session) readLoop(ctx context.Context) error {
	scratch := make([]byte, scratchSize)
	var buf packet.Buffer

	for {
		n, readErr := s.conn.Read(scratch)
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
			if err := s.handlers.Dispatch(ctx, uuid.Nil, pkt); err != nil {
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

// writeLoop drains the outbound queue onto the wire. On shutdown it
// flushes whatever is already queued, so a final Disconnect gets out.
func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case b := <-s.outbound:
					if _, err := s.conn.Write(b); err != nil {
						return ctx.Err()
					}
				default:
					return ctx.Err()
				}
			}
		case b := <-s.outbound:
			if _, err := s.conn.Write(b); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}

// micLoop configures the codec for the active capture device, starts the
// audio processor, and opens the device streams. It then parks until the
// session winds down.
func (s *Session) micLoop(ctx context.Context) error {
	rate, channels, err := s.bridge.CaptureConfig()
	if err != nil {
		return err
	}
	if err := s.codec.Configure(rate, channels); err != nil {
		return err
	}

	s.processor.Start(s.mic, s.outbound)
	defer s.processor.Stop()

	if err := s.bridge.StartActive(s.mic, s.playback); err != nil {
		return err
	}
	defer s.bridge.Stop()

	<-ctx.Done()
	return ctx.Err()
}

// playbackLoop forwards decoded frames to the device playback source.
func (s *Session) playbackLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-s.decoded:
			select {
			case s.playback <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
