package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxrelay/internal/packet"
	"voxrelay/pkg/verrors"
)

func TestDispatchRoutesByKind(t *testing.T) {
	reg := NewRegistry()

	var gotKind packet.Kind
	var gotOrigin uuid.UUID
	reg.Register(packet.KindAudio, HandlerFunc(func(_ context.Context, origin uuid.UUID, pkt packet.Packet) error {
		gotKind = pkt.Kind
		gotOrigin = origin
		return nil
	}))

	origin := uuid.New()
	err := reg.Dispatch(context.Background(), origin, packet.Packet{Kind: packet.KindAudio})
	require.NoError(t, err)
	assert.Equal(t, packet.KindAudio, gotKind)
	assert.Equal(t, origin, gotOrigin)
}

func TestDispatchMissingHandler(t *testing.T) {
	reg := NewRegistry()

	err := reg.Dispatch(context.Background(), uuid.Nil, packet.Packet{Kind: packet.KindConnect})
	assert.ErrorIs(t, err, verrors.ErrHandlerNotFound)
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	reg := NewRegistry()

	boom := errors.New("boom")
	reg.Register(packet.KindConnect, HandlerFunc(func(context.Context, uuid.UUID, packet.Packet) error {
		return boom
	}))

	err := reg.Dispatch(context.Background(), uuid.Nil, packet.Packet{Kind: packet.KindConnect})
	assert.ErrorIs(t, err, boom)
}

func TestRegisterReplaces(t *testing.T) {
	reg := NewRegistry()

	reg.Register(packet.KindAudio, HandlerFunc(func(context.Context, uuid.UUID, packet.Packet) error {
		return errors.New("old handler")
	}))
	reg.Register(packet.KindAudio, HandlerFunc(func(context.Context, uuid.UUID, packet.Packet) error {
		return nil
	}))

	assert.NoError(t, reg.Dispatch(context.Background(), uuid.Nil, packet.Packet{Kind: packet.KindAudio}))
}
