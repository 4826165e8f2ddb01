// Package audio turns captured PCM frames into framed audio packets ready
// for the wire.
package audio

import (
	"sync"

	"go.uber.org/zap"

	"voxrelay/internal/codec"
	"voxrelay/internal/packet"
)

// innerQueueSize buffers encoded frames between the encode and packetize
// stages.
const innerQueueSize = 20

// Processor encodes mic frames and wraps them in audio packets. It is
// either idle or running; Start and Stop move between the two.
//
// Frames flow through two stages connected by an inner channel, so packet
// order always matches mic order.
type Processor struct {
	codec *codec.Codec
	log   *zap.Logger

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewProcessor creates an idle processor around a configured codec.
func NewProcessor(c *codec.Codec, log *zap.Logger) *Processor {
	return &Processor{codec: c, log: log}
}

// Start spawns the encode and packetize stages. Frames received from
// micSource come out of packetSink as fully framed audio packet bytes, in
// order. Start is a no-op when already running.
func (p *Processor) Start(micSource <-chan []float32, packetSink chan<- []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})

	inner := make(chan []byte, innerQueueSize)
	stop := p.stop

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		defer close(inner)
		p.encodeLoop(micSource, inner, stop)
	}()
	go func() {
		defer p.wg.Done()
		p.packetizeLoop(inner, packetSink, stop)
	}()

	p.log.Debug("audio processor started")
}

// Stop signals both stages and waits for them to exit. Idempotent; calling
// Stop on an idle processor is a no-op.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop == nil {
		return
	}
	close(p.stop)
	p.stop = nil

	// Both stages exit at their next select; the lock stays held so a
	// concurrent Start cannot interleave with the wind-down.
	p.wg.Wait()
	p.log.Debug("audio processor stopped")
}

// Running reports whether the stages are live.
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

func (p *Processor) encodeLoop(micSource <-chan []float32, inner chan<- []byte, stop <-chan struct{}) {
	for {
		select {
		case frame, ok := <-micSource:
			if !ok {
				return
			}
			encoded, err := p.codec.Encode(frame)
			if err != nil {
				// A bad frame is dropped; the stream continues.
				p.log.Warn("encoding mic frame", zap.Error(err))
				continue
			}
			select {
			case inner <- encoded:
			case <-stop:
				return
			}
		case <-stop:
			return
		}
	}
}

func (p *Processor) packetizeLoop(inner <-chan []byte, packetSink chan<- []byte, stop <-chan struct{}) {
	for {
		select {
		case track, ok := <-inner:
			if !ok {
				return
			}
			select {
			case packetSink <- packet.EncodeAudioPacket(track):
			case <-stop:
				return
			}
		case <-stop:
			return
		}
	}
}
