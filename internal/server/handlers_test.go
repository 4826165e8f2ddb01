package server

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voxrelay/internal/packet"
	"voxrelay/pkg/verrors"
)

func newTestServerInstance() *Server {
	return New("127.0.0.1:0", zap.NewNop())
}

func audioPacket(track []byte) packet.Packet {
	return packet.Packet{
		Kind:    packet.KindAudio,
		Payload: packet.EncodeAudioPayload(packet.AudioPayload{Track: track}),
	}
}

func TestConnectHandler(t *testing.T) {
	srv := newTestServerInstance()

	err := srv.handleConnect(context.Background(), uuid.New(), packet.Packet{Kind: packet.KindConnect})
	assert.NoError(t, err)

	err = srv.handleConnect(context.Background(), uuid.New(),
		packet.Packet{Kind: packet.KindConnect, Payload: []byte{1}})
	assert.ErrorIs(t, err, verrors.ErrInvalidPacket)
}

func TestDisconnectHandler(t *testing.T) {
	srv := newTestServerInstance()

	err := srv.handleDisconnect(context.Background(), uuid.New(), packet.Packet{Kind: packet.KindDisconnect})
	assert.NoError(t, err)

	err = srv.handleDisconnect(context.Background(), uuid.New(),
		packet.Packet{Kind: packet.KindDisconnect, Payload: []byte{1}})
	assert.ErrorIs(t, err, verrors.ErrInvalidPacket)
}

func TestAudioHandlerFansOutToOthers(t *testing.T) {
	srv := newTestServerInstance()

	sender := NewClient(uuid.New(), 4)
	other := NewClient(uuid.New(), 4)
	srv.directory.Insert(sender)
	srv.directory.Insert(other)

	track := []byte{1, 2, 3, 4, 5}
	require.NoError(t, srv.handleAudio(context.Background(), sender.ID, audioPacket(track)))

	select {
	case wire := <-other.send:
		var buf packet.Buffer
		buf.Write(wire)
		pkt, err := buf.Next()
		require.NoError(t, err)
		assert.Equal(t, packet.KindAudio, pkt.Kind)

		payload, err := packet.DecodeAudioPayload(pkt.Payload)
		require.NoError(t, err)
		assert.Equal(t, track, payload.Track)
	case <-time.After(time.Second):
		t.Fatal("no packet fanned out")
	}

	select {
	case <-sender.send:
		t.Fatal("sender received its own packet")
	default:
	}
}

func TestAudioHandlerRejectsMalformedPayload(t *testing.T) {
	srv := newTestServerInstance()

	err := srv.handleAudio(context.Background(), uuid.New(),
		packet.Packet{Kind: packet.KindAudio, Payload: []byte{0, 0}})
	assert.ErrorIs(t, err, verrors.ErrInvalidPacket)
}

func TestAudioHandlerToleratesFullQueue(t *testing.T) {
	srv := newTestServerInstance()

	sender := NewClient(uuid.New(), 4)
	full := NewClient(uuid.New(), 1)
	healthy := NewClient(uuid.New(), 4)
	srv.directory.Insert(sender)
	srv.directory.Insert(full)
	srv.directory.Insert(healthy)

	require.NoError(t, full.Send([]byte{0xFF})) // occupy the only slot

	// Two packets: the full queue drops both, the healthy one gets both.
	require.NoError(t, srv.handleAudio(context.Background(), sender.ID, audioPacket([]byte{1})))
	require.NoError(t, srv.handleAudio(context.Background(), sender.ID, audioPacket([]byte{2})))

	assert.Len(t, healthy.send, 2)
	assert.Len(t, full.send, 1)
}
