// Package recording captures performances: the rendered audio, a
// timestamped log of every onset, and loudness measurements. It also replays
// event logs and exports them as Standard MIDI Files.
package recording

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/clock"
)

type (
	// Recorder records one performance at a time. Audio arrives through
	// WriteAudio from the engine's output tap; onsets arrive through Append.
	// All methods are safe for concurrent use.
	Recorder struct {
		mu         sync.Mutex
		clock      clock.Clock
		flushDelay time.Duration
		logger     *slog.Logger

		state recState
		start time.Time
		log   doodlejam.EventLog
		audio doodlejam.AudioBuffer
		meter *Meter
	}

	Option func(*Recorder)

	recState int
)

const (
	recStateNone recState = iota
	recStateRecording
	recStateStopping // waiting for the last audio to arrive; onsets are not accepted
)

// DefaultFlushDelay is how long StopRecording waits for audio still in flight
// from the audio thread.
const DefaultFlushDelay = 300 * time.Millisecond

// WithFlushDelay sets the wait between the stop request and finalising the
// recording.
func WithFlushDelay(d time.Duration) Option {
	return func(r *Recorder) { r.flushDelay = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

func NewRecorder(clk clock.Clock, opts ...Option) *Recorder {
	r := &Recorder{
		clock:      clk,
		flushDelay: DefaultFlushDelay,
		logger:     slog.Default(),
		meter:      NewMeter(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// StartRecording starts a new recording with an empty event log and a fresh
// time origin. Calling it while already recording does nothing.
func (r *Recorder) StartRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != recStateNone {
		r.logger.Debug("recording already in progress")
		return
	}
	r.state = recStateRecording
	r.start = r.clock.Now()
	r.log = nil
	r.audio = nil
	r.meter.Reset()
	r.logger.Info("recording started")
}

// Recording reports whether onsets are currently being logged.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == recStateRecording
}

// Append logs an onset with the time elapsed since the recording started. ok
// is false if nothing is being recorded.
func (r *Recorder) Append(id doodlejam.SoundID) (e doodlejam.PerformanceEvent, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != recStateRecording {
		return e, false
	}
	e = doodlejam.PerformanceEvent{
		Timestamp: float64(r.clock.Since(r.start)) / float64(time.Millisecond),
		Sound:     id,
	}
	// a clock stepping backwards must not break the ordering of the log
	if n := len(r.log); n > 0 && e.Timestamp < r.log[n-1].Timestamp {
		e.Timestamp = r.log[n-1].Timestamp
	}
	r.log = append(r.log, e)
	return e, true
}

// WriteAudio appends rendered audio to the recording. Audio is accepted until
// the flush delay of StopRecording has passed; otherwise it is ignored.
func (r *Recorder) WriteAudio(buf doodlejam.AudioBuffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == recStateNone {
		return
	}
	r.audio = append(r.audio, buf...)
	r.meter.Write(buf)
}

// Frames returns the number of audio frames recorded so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.audio)
}

// EventLog returns a copy of the events logged so far.
func (r *Recorder) EventLog() doodlejam.EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Copy()
}

// StopRecording ends the recording and returns its result. It returns nil,
// nil if nothing was being recorded. The result is finalised after the flush
// delay; if ctx is done before that, the recording is finalised immediately
// and ctx.Err() is returned along with the result.
func (r *Recorder) StopRecording(ctx context.Context) (*doodlejam.RecordingResult, error) {
	r.mu.Lock()
	if r.state != recStateRecording {
		r.mu.Unlock()
		return nil, nil
	}
	r.state = recStateStopping
	elapsed := r.clock.Since(r.start)
	r.mu.Unlock()
	var waitErr error
	if r.flushDelay > 0 {
		flushed := make(chan struct{})
		timer := r.clock.AfterFunc(r.flushDelay, func() { close(flushed) })
		select {
		case <-flushed:
		case <-ctx.Done():
			timer.Stop()
			waitErr = ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	wav, err := r.audio.Wav(true)
	if err != nil {
		r.state = recStateNone
		return nil, fmt.Errorf("encoding recording: %w", err)
	}
	ret := &doodlejam.RecordingResult{
		Audio:    wav,
		Duration: elapsed.Seconds(),
		EventLog: r.log,
		Loudness: r.meter.Loudness(),
	}
	r.logger.Info("recording stopped", "duration", elapsed, "events", len(r.log), "frames", len(r.audio), "lufs", ret.Loudness.Integrated)
	r.state = recStateNone
	r.log = nil
	r.audio = nil
	return ret, waitErr
}
