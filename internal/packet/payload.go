package packet

import (
	"encoding/binary"
	"fmt"

	"voxrelay/pkg/verrors"
)

// Payload encodings. Fields are framed with explicit big-endian length
// prefixes so both peers agree on the exact bytes: a byte-sequence field is
// u32(len) followed by the bytes, and the empty Connect/Disconnect payloads
// are zero bytes.

// AudioPayload carries one encoded audio frame.
type AudioPayload struct {
	Track []byte
}

// EncodeAudioPayload serializes an audio payload.
func EncodeAudioPayload(p AudioPayload) []byte {
	buf := make([]byte, 4+len(p.Track))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(p.Track)))
	copy(buf[4:], p.Track)
	return buf
}

// DecodeAudioPayload parses an audio payload. The declared track length
// must account for the remainder of the payload exactly.
func DecodeAudioPayload(data []byte) (AudioPayload, error) {
	if len(data) < 4 {
		return AudioPayload{}, fmt.Errorf("audio payload too short (%d bytes): %w",
			len(data), verrors.ErrInvalidPacket)
	}
	n := binary.BigEndian.Uint32(data[0:4])
	if int(n) != len(data)-4 {
		return AudioPayload{}, fmt.Errorf("audio payload declares %d track bytes, has %d: %w",
			n, len(data)-4, verrors.ErrInvalidPacket)
	}
	track := append([]byte(nil), data[4:]...)
	return AudioPayload{Track: track}, nil
}

// EncodeConnectPayload serializes the empty connect payload.
func EncodeConnectPayload() []byte {
	return nil
}

// DecodeConnectPayload parses a connect payload.
func DecodeConnectPayload(data []byte) error {
	if len(data) != 0 {
		return fmt.Errorf("connect payload must be empty, got %d bytes: %w",
			len(data), verrors.ErrInvalidPacket)
	}
	return nil
}

// EncodeDisconnectPayload serializes the empty disconnect payload.
func EncodeDisconnectPayload() []byte {
	return nil
}

// DecodeDisconnectPayload parses a disconnect payload.
func DecodeDisconnectPayload(data []byte) error {
	if len(data) != 0 {
		return fmt.Errorf("disconnect payload must be empty, got %d bytes: %w",
			len(data), verrors.ErrInvalidPacket)
	}
	return nil
}

// EncodeAudioPacket is a convenience for the hot path: one encoded frame in,
// fully framed wire bytes out.
func EncodeAudioPacket(track []byte) []byte {
	return Encode(KindAudio, EncodeAudioPayload(AudioPayload{Track: track}))
}
