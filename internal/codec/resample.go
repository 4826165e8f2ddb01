package codec

// resampler converts one captured frame to the coder's internal rate using
// linear interpolation on each interleaved channel. One instance is built
// per configuration and reused for every frame, so the conversion allocates
// only the output slice.
type resampler struct {
	channels  int
	inFrames  int
	outFrames int
}

func newResampler(fromRate, toRate, channels int) *resampler {
	return &resampler{
		channels:  channels,
		inFrames:  fromRate / framesPerSecond,
		outFrames: toRate / framesPerSecond,
	}
}

func (r *resampler) resample(in []float32) []float32 {
	out := make([]float32, r.outFrames*r.channels)
	step := float64(r.inFrames) / float64(r.outFrames)

	for i := 0; i < r.outFrames; i++ {
		pos := float64(i) * step
		idx := int(pos)
		frac := float32(pos - float64(idx))

		next := idx + 1
		if next >= r.inFrames {
			next = r.inFrames - 1
		}

		for ch := 0; ch < r.channels; ch++ {
			a := in[idx*r.channels+ch]
			b := in[next*r.channels+ch]
			out[i*r.channels+ch] = a + (b-a)*frac
		}
	}
	return out
}
