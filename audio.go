package doodlejam

import "math"

type (
	// AudioBuffer is a buffer of stereo audio samples of variable length, each
	// sample represented by [2]float32. [0] is left channel, [1] is right
	AudioBuffer [][2]float32

	// AudioContext represents the low-level audio drivers. There should be at
	// most one AudioContext at a time. The interface is implemented at least by
	// oto.Context and engine.ManualContext.
	AudioContext interface {
		// Play starts calling render whenever the device needs more audio.
		// render must fill the whole buffer.
		Play(render func(buf AudioBuffer) error) CloserWaiter
	}

	// CloserWaiter is a handle to a running audio stream.
	CloserWaiter interface {
		Close() error
		Wait()
	}
)

// SampleRate is the sample rate of every buffer rendered in doodlejam.
const SampleRate = 44100

// Fill fills the AudioBuffer using a callback function that is called for
// each frame.
func (buffer AudioBuffer) Fill(callBack func() [2]float32) {
	for i := range buffer {
		buffer[i] = callBack()
	}
}

// Peak returns the largest absolute sample value of both channels.
func (buffer AudioBuffer) Peak() float32 {
	var peak float32
	for _, s := range buffer {
		for _, v := range s {
			if a := float32(math.Abs(float64(v))); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// Duration returns the length of the buffer in seconds.
func (buffer AudioBuffer) Duration() float64 {
	return float64(len(buffer)) / SampleRate
}

// FramesForMillis converts milliseconds to a whole number of frames.
func FramesForMillis(ms float64) int {
	if ms <= 0 {
		return 0
	}
	return int(ms*SampleRate/1000 + 0.5)
}
