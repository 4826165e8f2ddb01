// Package codec wraps the Opus coder behind the fixed 20 ms frame contract
// used on the wire. Capture may run at any supported rate; frames are
// resampled to the coder's internal 48 kHz before encoding, and decoding
// always yields 48 kHz PCM for playback.
package codec

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/hraban/opus.v2"

	"voxrelay/pkg/verrors"
)

const (
	// InternalRate is the coder's nominal operating sample rate.
	InternalRate = 48000

	// framesPerSecond fixes the frame duration at 20 ms.
	framesPerSecond = 50

	// maxEncodedBytes bounds one encoded frame (RFC 6716).
	maxEncodedBytes = 1275

	bitrate = 64000
)

// supportedRates are the sample rates the coder accepts natively.
var supportedRates = map[int]bool{
	8000:  true,
	12000: true,
	16000: true,
	24000: true,
	48000: true,
}

// FrameSize returns the sample count of one 20 ms interleaved frame.
func FrameSize(sampleRate, channels int) int {
	return sampleRate / framesPerSecond * channels
}

// SnapRate maps an arbitrary capture rate onto a supported one. A rate
// outside the supported set maps to the internal 48 kHz rate; it is not
// rounded to the nearest supported rate.
func SnapRate(sampleRate int) int {
	if supportedRates[sampleRate] {
		return sampleRate
	}
	return InternalRate
}

// Codec pairs an Opus encoder and decoder under one configuration.
//
// Encode and Decode may run on different goroutines: each side is guarded
// by its own lock and they never contend with each other. Configure takes
// both locks; configuration is immutable between calls to it.
type Codec struct {
	encMu sync.Mutex
	decMu sync.Mutex

	sampleRate int
	channels   int

	enc *opus.Encoder
	dec *opus.Decoder
	res *resampler

	log *zap.Logger
}

// New creates an unconfigured codec. Configure must be called before
// Encode or Decode.
func New(log *zap.Logger) *Codec {
	return &Codec{log: log}
}

// Configure builds a fresh encoder/decoder pair for the given capture rate
// and channel count. The rate is snapped with SnapRate and a resampler is
// installed iff the result differs from the internal rate.
// Reconfiguring with identical arguments is a no-op.
func (c *Codec) Configure(sampleRate, channels int) error {
	if channels != 1 && channels != 2 {
		return fmt.Errorf("%d channels: %w", channels, verrors.ErrInvalidChannelCount)
	}
	rate := SnapRate(sampleRate)

	c.encMu.Lock()
	defer c.encMu.Unlock()
	c.decMu.Lock()
	defer c.decMu.Unlock()

	if c.enc != nil && c.sampleRate == rate && c.channels == channels {
		return nil
	}

	enc, err := opus.NewEncoder(InternalRate, channels, opus.AppVoIP)
	if err != nil {
		return fmt.Errorf("new encoder: %v: %w", err, verrors.ErrEncode)
	}
	if err := enc.SetBitrate(bitrate); err != nil {
		return fmt.Errorf("set bitrate: %v: %w", err, verrors.ErrEncode)
	}

	dec, err := opus.NewDecoder(InternalRate, channels)
	if err != nil {
		return fmt.Errorf("new decoder: %v: %w", err, verrors.ErrDecode)
	}

	c.sampleRate = rate
	c.channels = channels
	c.enc = enc
	c.dec = dec
	c.res = nil
	if rate != InternalRate {
		c.res = newResampler(rate, InternalRate, channels)
	}

	c.log.Debug("codec configured",
		zap.Int("sample_rate", rate),
		zap.Int("channels", channels),
		zap.Bool("resampling", c.res != nil))

	return nil
}

// Encode compresses exactly one 20 ms frame captured at the configured
// rate. The frame is resampled to the internal rate first when the rates
// differ.
func (c *Codec) Encode(samples []float32) ([]byte, error) {
	c.encMu.Lock()
	defer c.encMu.Unlock()

	if c.enc == nil {
		return nil, verrors.ErrCodecNotInitialized
	}
	if len(samples) != FrameSize(c.sampleRate, c.channels) {
		return nil, fmt.Errorf("got %d samples, want %d: %w",
			len(samples), FrameSize(c.sampleRate, c.channels), verrors.ErrInvalidFrameSize)
	}

	if c.res != nil {
		samples = c.res.resample(samples)
	}

	buf := make([]byte, maxEncodedBytes)
	n, err := c.enc.EncodeFloat32(samples, buf)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %v: %w", err, verrors.ErrEncode)
	}
	return buf[:n], nil
}

// Decode expands one encoded frame into 20 ms of PCM at the internal rate.
func (c *Codec) Decode(data []byte) ([]float32, error) {
	c.decMu.Lock()
	defer c.decMu.Unlock()

	if c.dec == nil {
		return nil, verrors.ErrCodecNotInitialized
	}

	pcm := make([]float32, FrameSize(InternalRate, c.channels))
	n, err := c.dec.DecodeFloat32(data, pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %v: %w", err, verrors.ErrDecode)
	}
	return pcm[:n*c.channels], nil
}

// SampleRate returns the configured capture rate, 0 before Configure.
func (c *Codec) SampleRate() int {
	c.encMu.Lock()
	defer c.encMu.Unlock()
	return c.sampleRate
}

// Channels returns the configured channel count, 0 before Configure.
func (c *Codec) Channels() int {
	c.encMu.Lock()
	defer c.encMu.Unlock()
	return c.channels
}
