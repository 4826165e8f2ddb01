// Package packet implements the length-prefixed framing protocol shared by
// client and server.
//
// Each packet on the wire is a 5-byte header followed by the payload:
//
//	+----------------+------+-----------------+
//	| length (u32 BE)| kind | payload bytes   |
//	+----------------+------+-----------------+
//
// length counts payload bytes only and must not exceed MaxPacketSize.
package packet

import (
	"encoding/binary"
	"fmt"

	"voxrelay/pkg/verrors"
)

const (
	// MaxPacketSize is the maximum payload length in bytes.
	MaxPacketSize = 1024
	// HeaderSize is the fixed wire header: 4-byte length + 1-byte kind.
	HeaderSize = 5
)

// Packet is one decoded wire record.
type Packet struct {
	Kind    Kind
	Payload []byte
}

// Encode frames a payload for the wire.
func Encode(kind Kind, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	buf[4] = byte(kind)
	copy(buf[HeaderSize:], payload)
	return buf
}

// Buffer accumulates wire bytes and yields packets as they complete.
// A Buffer is not safe for concurrent use; each session owns exactly one.
type Buffer struct {
	data []byte
}

// Write appends raw bytes read from the transport.
func (b *Buffer) Write(p []byte) {
	b.data = append(b.data, p...)
}

// Len returns the number of buffered, unconsumed bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Next consumes and returns the next complete packet.
//
// It fails with verrors.ErrNeedMoreData when the buffer holds less than one
// complete packet; the caller retries after more bytes arrive and the buffer
// is left untouched. A declared length above MaxPacketSize or an unknown
// kind byte fails with verrors.ErrInvalidPacket before any payload is
// copied. Bytes are consumed only on success, and trailing bytes of the
// following packet stay buffered.
func (b *Buffer) Next() (Packet, error) {
	if len(b.data) < HeaderSize {
		return Packet{}, verrors.ErrNeedMoreData
	}

	length := binary.BigEndian.Uint32(b.data[0:4])
	if length > MaxPacketSize {
		return Packet{}, fmt.Errorf("declared payload length %d exceeds limit %d: %w",
			length, MaxPacketSize, verrors.ErrInvalidPacket)
	}

	kind, err := KindFromByte(b.data[4])
	if err != nil {
		return Packet{}, err
	}

	total := HeaderSize + int(length)
	if len(b.data) < total {
		return Packet{}, verrors.ErrNeedMoreData
	}

	payload := append([]byte(nil), b.data[HeaderSize:total]...)
	b.data = b.data[total:]

	return Packet{Kind: kind, Payload: payload}, nil
}
