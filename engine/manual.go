package engine

import (
	"errors"
	"sync"

	"github.com/doodlejam/doodlejam"
)

type (
	// ManualContext is an AudioContext that renders only when pumped. Useful
	// for tests and headless runs, where nothing pulls audio from a device.
	ManualContext struct {
		mu     sync.Mutex
		render func(buf doodlejam.AudioBuffer) error
		closed bool
		frames int
	}

	manualStream struct {
		c *ManualContext
	}
)

var ErrNotPlaying = errors.New("manual context is not playing")

func (c *ManualContext) Play(render func(buf doodlejam.AudioBuffer) error) doodlejam.CloserWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render = render
	c.closed = false
	return manualStream{c: c}
}

// Pump renders the given number of frames and returns them.
func (c *ManualContext) Pump(frames int) (doodlejam.AudioBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.render == nil || c.closed {
		return nil, ErrNotPlaying
	}
	buf := make(doodlejam.AudioBuffer, frames)
	if err := c.render(buf); err != nil {
		return nil, err
	}
	c.frames += frames
	return buf, nil
}

// Frames returns the number of frames pumped so far.
func (c *ManualContext) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Playing reports whether a stream is open.
func (c *ManualContext) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.render != nil && !c.closed
}

func (s manualStream) Close() error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.closed = true
	return nil
}

func (s manualStream) Wait() {}
