package engine

import (
	"sync"
	"time"

	"github.com/doodlejam/doodlejam"
)

type (
	// Broker is the centralized message broker of the engine. It is used to
	// communicate between the engine API, the player running on the audio
	// thread, and the output tap feeding the recorder. Communication is
	// many-to-one, one buffered channel per recipient. Additionally, the
	// broker has a sync.Pool for *doodlejam.AudioBuffers, so the player can
	// pass rendered audio to the tap without allocating new memory every
	// time.
	//
	// The player never blocks on the broker: all its sends are TrySends, and
	// a full channel drops the message.
	Broker struct {
		ToPlayer   chan any // NoteOnMsg, NoteOffMsg, MixMsg, StopAllMsg
		ToRecorder chan *doodlejam.AudioBuffer
		ToEngine   chan Alert

		bufferPool sync.Pool
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToPlayer:   make(chan any, 1024),
		ToRecorder: make(chan *doodlejam.AudioBuffer, 1024),
		ToEngine:   make(chan Alert, 64),
		bufferPool: sync.Pool{New: func() any { return &doodlejam.AudioBuffer{} }},
	}
}

// GetAudioBuffer returns an audio buffer from the buffer pool. The buffer is
// guaranteed to be empty. After using the buffer, it should be returned to the
// pool with PutAudioBuffer.
func (b *Broker) GetAudioBuffer() *doodlejam.AudioBuffer {
	return b.bufferPool.Get().(*doodlejam.AudioBuffer)
}

// PutAudioBuffer returns an audio buffer to the buffer pool. If the buffer is
// not empty, its length is resetted (but capacity kept) before returning it to
// the pool.
func (b *Broker) PutAudioBuffer(buf *doodlejam.AudioBuffer) {
	if len(*buf) > 0 {
		*buf = (*buf)[:0]
	}
	b.bufferPool.Put(buf)
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
