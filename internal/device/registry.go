package device

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"voxrelay/internal/codec"
	"voxrelay/pkg/verrors"
)

// Registry tracks the enumerated devices and the per-direction active
// selection, and owns the native stream handles. All stream operations go
// through it; streams live until Stop or Close.
type Registry struct {
	mu      sync.Mutex
	inputs  []Device
	outputs []Device

	captureStream  *portaudio.Stream
	playbackStream *portaudio.Stream

	log *zap.Logger
}

// NewRegistry initializes PortAudio, enumerates devices, and marks each
// direction's platform default as the initial active selection. The caller
// must Close the registry to release the platform handle.
func NewRegistry(log *zap.Logger) (*Registry, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %v: %w", err, verrors.ErrNoHost)
	}

	infos, err := portaudio.Devices()
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("enumerate devices: %v: %w", err, verrors.ErrNoHost)
	}

	defaultIn, err := portaudio.DefaultInputDevice()
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("default input: %v: %w", err, verrors.ErrNoDevice)
	}
	defaultOut, err := portaudio.DefaultOutputDevice()
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("default output: %v: %w", err, verrors.ErrNoDevice)
	}

	var inputs, outputs []Device
	for _, info := range infos {
		if d, ok := deviceFromInfo(info, Input, defaultIn.Name); ok {
			inputs = append(inputs, d)
		}
		if d, ok := deviceFromInfo(info, Output, defaultOut.Name); ok {
			outputs = append(outputs, d)
		}
	}

	r := newRegistryFromDevices(inputs, outputs, log)
	log.Info("audio devices enumerated",
		zap.Int("inputs", len(inputs)),
		zap.Int("outputs", len(outputs)))
	return r, nil
}

// newRegistryFromDevices builds a registry over prepared descriptors and
// activates the defaults. Tests use it to exercise selection logic without
// hardware.
func newRegistryFromDevices(inputs, outputs []Device, log *zap.Logger) *Registry {
	activateDefault(inputs)
	activateDefault(outputs)
	return &Registry{inputs: inputs, outputs: outputs, log: log}
}

func activateDefault(devices []Device) {
	for i := range devices {
		devices[i].Active = devices[i].Default
	}
}

// List returns copies of the descriptors for one direction.
func (r *Registry) List(direction Direction) []Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.devices(direction)
	out := make([]Device, len(src))
	copy(out, src)
	return out
}

// Active returns the active device for a direction, if any.
func (r *Registry) Active(direction Direction) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.devices(direction) {
		if d.Active {
			return d, true
		}
	}
	return Device{}, false
}

// SetActive flips the active flag within a direction to the named device.
func (r *Registry) SetActive(direction Direction, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := r.devices(direction)
	found := -1
	for i := range devices {
		if devices[i].Name == name {
			found = i
			break
		}
	}
	if found < 0 {
		return fmt.Errorf("%s device %q: %w", direction, name, verrors.ErrNoDevice)
	}

	for i := range devices {
		devices[i].Active = i == found
	}

	r.log.Info("active device changed",
		zap.String("direction", direction.String()),
		zap.String("name", name))
	return nil
}

func (r *Registry) devices(direction Direction) []Device {
	if direction == Input {
		return r.inputs
	}
	return r.outputs
}

// StartActive opens capture and playback streams on the active devices.
//
// The capture callback runs on a PortAudio thread and must never block: it
// copies the frame and try-sends into micSink, dropping when full. The
// playback callback try-receives from playbackSource and writes silence for
// whatever it could not fill.
func (r *Registry) StartActive(micSink chan<- []float32, playbackSource <-chan []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.captureStream != nil || r.playbackStream != nil {
		return fmt.Errorf("streams already started: %w", verrors.ErrBuildStream)
	}

	input, ok := activeOf(r.inputs)
	if !ok {
		return fmt.Errorf("no active input device: %w", verrors.ErrNoDevice)
	}
	output, ok := activeOf(r.outputs)
	if !ok {
		return fmt.Errorf("no active output device: %w", verrors.ErrNoDevice)
	}
	if input.info == nil || output.info == nil {
		return fmt.Errorf("device has no platform handle: %w", verrors.ErrDeviceConfig)
	}

	captureRate := codec.SnapRate(input.SampleRate)
	captureParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   input.info,
			Channels: input.Channels,
			Latency:  input.info.DefaultLowInputLatency,
		},
		SampleRate:      float64(captureRate),
		FramesPerBuffer: captureRate / 50,
	}
	captureStream, err := portaudio.OpenStream(captureParams, func(in []float32) {
		frame := make([]float32, len(in))
		copy(frame, in)
		select {
		case micSink <- frame:
		default:
			// Realtime thread: dropping beats blocking.
		}
	})
	if err != nil {
		return fmt.Errorf("open capture stream: %v: %w", err, verrors.ErrBuildStream)
	}

	playbackParams := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   output.info,
			Channels: output.Channels,
			Latency:  output.info.DefaultLowOutputLatency,
		},
		SampleRate:      codec.InternalRate,
		FramesPerBuffer: codec.InternalRate / 50,
	}
	playbackStream, err := portaudio.OpenStream(playbackParams, func(out []float32) {
		select {
		case frame := <-playbackSource:
			n := copy(out, frame)
			fillSilence(out[n:])
		default:
			fillSilence(out)
		}
	})
	if err != nil {
		_ = captureStream.Close()
		return fmt.Errorf("open playback stream: %v: %w", err, verrors.ErrBuildStream)
	}

	if err := captureStream.Start(); err != nil {
		_ = captureStream.Close()
		_ = playbackStream.Close()
		return fmt.Errorf("start capture stream: %v: %w", err, verrors.ErrPlayStream)
	}
	if err := playbackStream.Start(); err != nil {
		_ = captureStream.Stop()
		_ = captureStream.Close()
		_ = playbackStream.Close()
		return fmt.Errorf("start playback stream: %v: %w", err, verrors.ErrPlayStream)
	}

	r.captureStream = captureStream
	r.playbackStream = playbackStream

	r.log.Info("audio streams started",
		zap.String("capture", input.Name),
		zap.Int("capture_rate", captureRate),
		zap.String("playback", output.Name))
	return nil
}

// CaptureConfig reports the rate and channel count StartActive will open
// the capture stream with, so the codec can be configured to match.
func (r *Registry) CaptureConfig() (sampleRate, channels int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	input, ok := activeOf(r.inputs)
	if !ok {
		return 0, 0, fmt.Errorf("no active input device: %w", verrors.ErrNoDevice)
	}
	return codec.SnapRate(input.SampleRate), input.Channels, nil
}

// Stop pauses and releases both streams. StartActive may be called again.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Registry) stopLocked() {
	if r.captureStream != nil {
		if err := r.captureStream.Stop(); err != nil {
			r.log.Warn("stopping capture stream", zap.Error(err))
		}
		_ = r.captureStream.Close()
		r.captureStream = nil
	}
	if r.playbackStream != nil {
		if err := r.playbackStream.Stop(); err != nil {
			r.log.Warn("stopping playback stream", zap.Error(err))
		}
		_ = r.playbackStream.Close()
		r.playbackStream = nil
	}
}

// Close stops any streams and releases the platform handle.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	_ = portaudio.Terminate()
}

func activeOf(devices []Device) (Device, bool) {
	for _, d := range devices {
		if d.Active {
			return d, true
		}
	}
	return Device{}, false
}

func fillSilence(out []float32) {
	for i := range out {
		out[i] = 0
	}
}
