// Package device enumerates the platform's audio devices and owns the
// capture and playback streams. It is the only package that touches
// PortAudio; everything above it sees devices as descriptors and audio as
// channels of PCM frames.
package device

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Direction distinguishes capture from playback devices.
type Direction int

const (
	// Input is the capture side (microphones).
	Input Direction = iota
	// Output is the playback side (speakers).
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// DirectionFromString parses a Direction from its wire/API spelling.
func DirectionFromString(s string) (Direction, error) {
	switch s {
	case "input":
		return Input, nil
	case "output":
		return Output, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// Device describes one enumerated audio device.
//
// Default reflects what the platform advertised at enumeration time and is
// read-only. At most one device per direction is Active.
type Device struct {
	Name       string    `json:"name"`
	Direction  Direction `json:"-"`
	Default    bool      `json:"default"`
	Active     bool      `json:"active"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`

	info *portaudio.DeviceInfo
}

// deviceFromInfo builds a descriptor from a PortAudio device entry,
// returning false for devices without channels in the wanted direction.
func deviceFromInfo(info *portaudio.DeviceInfo, direction Direction, defaultName string) (Device, bool) {
	maxChannels := info.MaxInputChannels
	if direction == Output {
		maxChannels = info.MaxOutputChannels
	}
	if maxChannels < 1 {
		return Device{}, false
	}

	channels := maxChannels
	if channels > 2 {
		channels = 2
	}

	return Device{
		Name:       info.Name,
		Direction:  direction,
		Default:    info.Name == defaultName,
		SampleRate: int(info.DefaultSampleRate),
		Channels:   channels,
		info:       info,
	}, true
}
