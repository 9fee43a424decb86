package media

import (
	"context"
	"image"
)

// Channels is the fixed channel count of every AudioBuffer.
const Channels = 2

// Handle is an open, decodable media source. A Duration of zero means the
// source has no natural end (colors, stills) and any span may be requested.
// Handles are owned by one chunk render and closed when it ends.
type Handle interface {
	Name() string
	Duration() float64
	HasVideo() bool
	HasAudio() bool
	// Frames returns exactly count frames sampled evenly across source
	// seconds [in, out). Returned frames must not be modified.
	Frames(ctx context.Context, in, out float64, count int) ([]*image.RGBA, error)
	// Audio returns the source span [in, out) as interleaved stereo.
	Audio(ctx context.Context, in, out float64, sampleRate int) (AudioBuffer, error)
	Close() error
}

// AudioBuffer holds interleaved stereo float32 samples in [-1, 1].
type AudioBuffer struct {
	SampleRate int
	Samples    []float32
}

// NewSilence returns a silent buffer covering seconds.
func NewSilence(sampleRate int, seconds float64) AudioBuffer {
	return AudioBuffer{SampleRate: sampleRate, Samples: make([]float32, SampleFrames(sampleRate, seconds)*Channels)}
}

// SampleFrames converts seconds to a stereo frame count.
func SampleFrames(sampleRate int, seconds float64) int {
	if seconds <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(seconds*float64(sampleRate) + 0.5)
}

// Frames returns the number of stereo sample frames.
func (b AudioBuffer) Frames() int {
	return len(b.Samples) / Channels
}

// Seconds returns the buffer length in seconds.
func (b AudioBuffer) Seconds() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// SampleTimes returns count source times spread evenly across [in, out),
// each at the center of its slot.
func SampleTimes(in, out float64, count int) []float64 {
	times := make([]float64, count)
	if count == 0 {
		return times
	}
	step := (out - in) / float64(count)
	for i := range times {
		times[i] = in + (float64(i)+0.5)*step
	}
	return times
}
