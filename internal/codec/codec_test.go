package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voxrelay/pkg/verrors"
)

func newTestCodec(t *testing.T, rate, channels int) *Codec {
	t.Helper()
	c := New(zap.NewNop())
	require.NoError(t, c.Configure(rate, channels))
	return c
}

func TestEncodeBeforeConfigure(t *testing.T) {
	c := New(zap.NewNop())

	_, err := c.Encode(make([]float32, 960))
	assert.ErrorIs(t, err, verrors.ErrCodecNotInitialized)

	_, err = c.Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, verrors.ErrCodecNotInitialized)
}

func TestConfigureRejectsChannelCount(t *testing.T) {
	c := New(zap.NewNop())

	for _, channels := range []int{0, 3, -1} {
		err := c.Configure(48000, channels)
		assert.ErrorIs(t, err, verrors.ErrInvalidChannelCount, "channels=%d", channels)
	}
}

func TestConfigureSnapsRate(t *testing.T) {
	for _, tc := range []struct {
		in   int
		want int
	}{
		{8000, 8000},
		{12000, 12000},
		{16000, 16000},
		{24000, 24000},
		{48000, 48000},
		{44100, 48000},
		{96000, 48000},
		{11025, 48000},
	} {
		c := newTestCodec(t, tc.in, 1)
		assert.Equal(t, tc.want, c.SampleRate(), "rate %d", tc.in)
	}
}

func TestRoundTripZerosMono(t *testing.T) {
	c := newTestCodec(t, 48000, 1)

	encoded, err := c.Encode(make([]float32, 960))
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 960)

	for i, s := range decoded {
		if math.Abs(float64(s)) >= 1e-10 {
			t.Fatalf("sample %d = %g, want ~0", i, s)
		}
	}
}

func TestRoundTripZerosStereo(t *testing.T) {
	c := newTestCodec(t, 48000, 2)

	encoded, err := c.Encode(make([]float32, 1920))
	require.NoError(t, err)

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1920)

	for i, s := range decoded {
		if math.Abs(float64(s)) >= 1e-2 {
			t.Fatalf("sample %d = %g, want ~0", i, s)
		}
	}
}

func TestEncodeRejectsWrongFrameSize(t *testing.T) {
	c := newTestCodec(t, 48000, 1)

	for _, n := range []int{0, 1, 959, 961, 1920} {
		_, err := c.Encode(make([]float32, n))
		assert.ErrorIs(t, err, verrors.ErrInvalidFrameSize, "%d samples", n)
	}
}

func TestEncodeResampledRate(t *testing.T) {
	c := newTestCodec(t, 16000, 1)

	// A 16 kHz frame is 320 samples; the codec resamples to 960 internally.
	encoded, err := c.Encode(make([]float32, 320))
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Len(t, decoded, 960)

	// The 48 kHz frame size is now invalid on the encode side.
	_, err = c.Encode(make([]float32, 960))
	assert.ErrorIs(t, err, verrors.ErrInvalidFrameSize)
}

func TestDecodeGarbageFails(t *testing.T) {
	c := newTestCodec(t, 48000, 1)

	_, err := c.Decode(nil)
	assert.ErrorIs(t, err, verrors.ErrDecode)
}

func TestConfigureIdempotent(t *testing.T) {
	c := newTestCodec(t, 48000, 1)

	encoded, err := c.Encode(make([]float32, 960))
	require.NoError(t, err)

	require.NoError(t, c.Configure(48000, 1))

	// Decoder state survives an identical reconfigure.
	_, err = c.Decode(encoded)
	assert.NoError(t, err)
}

func TestFrameSize(t *testing.T) {
	assert.Equal(t, 960, FrameSize(48000, 1))
	assert.Equal(t, 1920, FrameSize(48000, 2))
	assert.Equal(t, 160, FrameSize(8000, 1))
	assert.Equal(t, 640, FrameSize(16000, 2))
}

func TestResamplerInterpolates(t *testing.T) {
	r := newResampler(16000, 48000, 1)

	in := make([]float32, 320)
	for i := range in {
		in[i] = float32(i) / 320
	}

	out := r.resample(in)
	require.Len(t, out, 960)

	// Monotone input stays monotone under linear interpolation.
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("output not monotone at %d: %g < %g", i, out[i], out[i-1])
		}
	}
	assert.InDelta(t, float64(in[0]), float64(out[0]), 1e-6)
}

func TestResamplerStereoKeepsChannels(t *testing.T) {
	r := newResampler(24000, 48000, 2)

	in := make([]float32, 960)
	for i := 0; i < len(in); i += 2 {
		in[i] = 1.0  // left
		in[i+1] = -1 // right
	}

	out := r.resample(in)
	require.Len(t, out, 1920)
	for i := 0; i < len(out); i += 2 {
		assert.InDelta(t, 1.0, float64(out[i]), 1e-6)
		assert.InDelta(t, -1.0, float64(out[i+1]), 1e-6)
	}
}
