package client

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxrelay/internal/handler"
	"voxrelay/internal/packet"
)

// newHandlerRegistry wires the inbound packet kinds. The server only relays
// audio today, but connect/disconnect stay registered so the dispatch
// wiring is in place if they ever start carrying identity.
func (s *Session) newHandlerRegistry() *handler.Registry {
	reg := handler.NewRegistry()
	reg.Register(packet.KindAudio, handler.HandlerFunc(s.handleAudio))
	reg.Register(packet.KindConnect, handler.HandlerFunc(s.handleConnect))
	reg.Register(packet.KindDisconnect, handler.HandlerFunc(s.handleDisconnect))
	return reg
}

// handleAudio decodes a relayed frame and publishes the PCM for playback.
// A frame that fails payload or codec decode is dropped; the session
// continues. A full playback queue also drops the frame: late audio is
// worse than no audio.
func (s *Session) handleAudio(_ context.Context, _ uuid.UUID, pkt packet.Packet) error {
	payload, err := packet.DecodeAudioPayload(pkt.Payload)
	if err != nil {
		s.log.Warn("dropping malformed audio payload", zap.Error(err))
		return nil
	}

	pcm, err := s.codec.Decode(payload.Track)
	if err != nil {
		s.log.Warn("dropping undecodable frame", zap.Error(err))
		return nil
	}

	select {
	case s.decoded <- pcm:
	default:
	}
	return nil
}

func (s *Session) handleConnect(_ context.Context, _ uuid.UUID, pkt packet.Packet) error {
	if err := packet.DecodeConnectPayload(pkt.Payload); err != nil {
		return err
	}
	s.log.Debug("peer connect announced")
	return nil
}

func (s *Session) handleDisconnect(_ context.Context, _ uuid.UUID, pkt packet.Packet) error {
	if err := packet.DecodeDisconnectPayload(pkt.Payload); err != nil {
		return err
	}
	s.log.Debug("peer disconnect announced")
	return nil
}
