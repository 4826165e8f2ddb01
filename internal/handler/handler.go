// Package handler maps packet kinds to the code that processes them. Both
// sides of the wire use the same registry: the server dispatches inbound
// client packets, the client dispatches packets relayed from the server.
package handler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"voxrelay/internal/packet"
	"voxrelay/pkg/verrors"
)

// Handler processes one packet of a single kind. On the server origin is
// the session UUID of the sending client; on the client it is uuid.Nil.
// A returned error is fatal to the session that dispatched the packet.
type Handler interface {
	Handle(ctx context.Context, origin uuid.UUID, pkt packet.Packet) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, origin uuid.UUID, pkt packet.Packet) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, origin uuid.UUID, pkt packet.Packet) error {
	return f(ctx, origin, pkt)
}

// Registry maps packet kinds to handlers. Registration happens before any
// dispatch; the map is read-only afterwards, so Dispatch needs no lock.
type Registry struct {
	handlers map[packet.Kind]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[packet.Kind]Handler)}
}

// Register installs the handler for a kind, replacing any previous one.
func (r *Registry) Register(kind packet.Kind, h Handler) {
	r.handlers[kind] = h
}

// Dispatch routes a packet to its kind's handler. A kind without a handler
// is a configuration bug and fatal to the session.
func (r *Registry) Dispatch(ctx context.Context, origin uuid.UUID, pkt packet.Packet) error {
	h, ok := r.handlers[pkt.Kind]
	if !ok {
		return fmt.Errorf("kind %s: %w", pkt.Kind, verrors.ErrHandlerNotFound)
	}
	return h.Handle(ctx, origin, pkt)
}
