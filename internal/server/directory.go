package server

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"voxrelay/pkg/verrors"
)

// Client is one connected session's directory entry: its identity and the
// sender half of its outbound queue. The session owns the receive half.
type Client struct {
	ID   uuid.UUID
	send chan []byte
}

// NewClient creates a directory entry with a bounded outbound queue.
func NewClient(id uuid.UUID, queueSize int) *Client {
	return &Client{ID: id, send: make(chan []byte, queueSize)}
}

// Send enqueues framed bytes for the client's write task without blocking.
// A full queue means the peer is slow or gone; the caller decides whether
// that matters.
func (c *Client) Send(b []byte) error {
	select {
	case c.send <- b:
		return nil
	default:
		return fmt.Errorf("client %s: %w", c.ID, verrors.ErrQueueFull)
	}
}

// Directory tracks the currently connected clients. The lock is held only
// to mutate or snapshot; fan-out sends happen outside it.
type Directory struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*Client
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{clients: make(map[uuid.UUID]*Client)}
}

// Insert registers a client. It runs before the session reads its first
// byte, so a client can never miss fan-out that follows its own packets.
func (d *Directory) Insert(c *Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[c.ID] = c
}

// Remove drops a client after its session tasks have terminated. Any bytes
// still queued are discarded with it.
func (d *Directory) Remove(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.clients, id)
}

// Len returns the number of connected clients.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

// Snapshot copies the current client handles so iteration never holds the
// lock across sends.
func (d *Directory) Snapshot() []*Client {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*Client, 0, len(d.clients))
	for _, c := range d.clients {
		out = append(out, c)
	}
	return out
}
