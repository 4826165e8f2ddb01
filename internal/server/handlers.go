package server

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxrelay/internal/handler"
	"voxrelay/internal/packet"
)

// newHandlerRegistry wires the server-side packet kinds. Connect and
// Disconnect are informational; membership is the transport's accept/close.
func (s *Server) newHandlerRegistry() *handler.Registry {
	reg := handler.NewRegistry()
	reg.Register(packet.KindConnect, handler.HandlerFunc(s.handleConnect))
	reg.Register(packet.KindDisconnect, handler.HandlerFunc(s.handleDisconnect))
	reg.Register(packet.KindAudio, handler.HandlerFunc(s.handleAudio))
	return reg
}

func (s *Server) handleConnect(_ context.Context, origin uuid.UUID, pkt packet.Packet) error {
	if err := packet.DecodeConnectPayload(pkt.Payload); err != nil {
		return err
	}
	s.log.Info("client announced connect", zap.Stringer("client", origin))
	return nil
}

func (s *Server) handleDisconnect(_ context.Context, origin uuid.UUID, pkt packet.Packet) error {
	if err := packet.DecodeDisconnectPayload(pkt.Payload); err != nil {
		return err
	}
	s.log.Info("client announced disconnect", zap.Stringer("client", origin))
	return nil
}

// handleAudio fans one audio packet out to every other client. The payload
// is validated, re-framed once, and the same bytes go to every recipient.
// A recipient whose queue is full or gone is skipped: a slow peer must not
// stall the sender or the rest of the room.
func (s *Server) handleAudio(_ context.Context, origin uuid.UUID, pkt packet.Packet) error {
	if _, err := packet.DecodeAudioPayload(pkt.Payload); err != nil {
		return err
	}

	wire := packet.Encode(packet.KindAudio, pkt.Payload)
	for _, client := range s.directory.Snapshot() {
		if client.ID == origin {
			continue
		}
		if err := client.Send(wire); err != nil {
			s.log.Warn("skipping recipient",
				zap.Stringer("from", origin),
				zap.Stringer("to", client.ID),
				zap.Error(err))
		}
	}
	return nil
}
