package verrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageCarriesCategory(t *testing.T) {
	err := New(ErrorTypeCodec, "something broke")
	assert.Equal(t, "[codec] something broke", err.Error())
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("decoding frame 42: %w", ErrDecode)
	assert.True(t, errors.Is(wrapped, ErrDecode))
	assert.False(t, errors.Is(wrapped, ErrEncode))

	doubly := fmt.Errorf("session: %w", wrapped)
	assert.True(t, errors.Is(doubly, ErrDecode))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNoHost, ErrNoDevice, ErrDeviceConfig, ErrBuildStream, ErrPlayStream,
		ErrCodecNotInitialized, ErrInvalidChannelCount, ErrInvalidFrameSize,
		ErrEncode, ErrDecode, ErrNeedMoreData, ErrInvalidPacket,
		ErrBufferOverflow, ErrConnectionClosed, ErrHandlerNotFound, ErrQueueFull,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v matches %v", a, b)
			}
		}
	}
}
