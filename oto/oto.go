// Package oto plays audio on the default output device.
package oto

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/doodlejam/doodlejam"
	"github.com/ebitengine/oto/v3"
)

type (
	// Context is the doodlejam.AudioContext of the audio device. There can
	// be only one per process.
	Context struct {
		ctx *oto.Context
	}

	stream struct {
		player *oto.Player
		reader *renderReader
	}

	// renderReader pulls audio from the render callback whenever the device
	// reads.
	renderReader struct {
		mu     sync.Mutex
		render func(buf doodlejam.AudioBuffer) error
		buf    doodlejam.AudioBuffer
		bytes  []byte
		closed bool
		err    error
		done   chan struct{}
	}
)

const (
	bytesPerFrame = 4
	otoBufferSize = 8192 / bytesPerFrame * time.Second / doodlejam.SampleRate
)

// NewContext opens the audio device and waits until it is ready.
func NewContext() (*Context, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   doodlejam.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   otoBufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx}, nil
}

func (c *Context) Play(render func(buf doodlejam.AudioBuffer) error) doodlejam.CloserWaiter {
	r := &renderReader{render: render, done: make(chan struct{})}
	p := c.ctx.NewPlayer(r)
	p.Play()
	return &stream{player: p, reader: r}
}

// Suspend pauses the device; Resume continues.
func (c *Context) Suspend() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (c *Context) Resume() error {
	if err := c.ctx.Resume(); err != nil {
		return fmt.Errorf("cannot resume oto context: %w", err)
	}
	return nil
}

func (r *renderReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.EOF
	}
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < frames {
		r.buf = make(doodlejam.AudioBuffer, frames)
	}
	r.buf = r.buf[:frames]
	if err := r.render(r.buf); err != nil {
		r.err = err
		r.closeLocked()
		return 0, err
	}
	r.bytes = AppendInt16LE(r.bytes[:0], r.buf)
	return copy(p, r.bytes), nil
}

func (r *renderReader) closeLocked() {
	if !r.closed {
		r.closed = true
		close(r.done)
	}
}

func (s *stream) Close() error {
	s.player.Pause()
	s.reader.mu.Lock()
	s.reader.closeLocked()
	err := s.reader.err
	s.reader.mu.Unlock()
	if err != nil {
		return fmt.Errorf("audio rendering failed: %w", err)
	}
	return nil
}

// Wait blocks until the stream is closed or rendering fails.
func (s *stream) Wait() {
	<-s.reader.done
}
