package packet

import (
	"fmt"

	"voxrelay/pkg/verrors"
)

// Kind tags the shape of a packet payload on the wire.
type Kind uint8

const (
	// KindConnect announces a client joining. Informational: membership is
	// tracked by the transport, not by this message.
	KindConnect Kind = 0
	// KindDisconnect announces a client leaving. Informational, like KindConnect.
	KindDisconnect Kind = 1
	// KindAudio carries one encoded audio frame.
	KindAudio Kind = 2
)

// KindFromByte maps a wire byte to a Kind. An unknown byte is a protocol
// violation and fatal to the session that received it.
func KindFromByte(b byte) (Kind, error) {
	switch Kind(b) {
	case KindConnect, KindDisconnect, KindAudio:
		return Kind(b), nil
	default:
		return 0, fmt.Errorf("unknown packet kind %d: %w", b, verrors.ErrInvalidPacket)
	}
}

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	case KindAudio:
		return "audio"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}
