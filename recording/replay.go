package recording

import (
	"sync"
	"time"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/clock"
)

// Replay is an event log being played back through some Voices. Each event
// is played at its timestamp, measured from the moment the replay was
// started.
//
// One timer is armed at a time. When it fires, every event that is due is
// played in log order before the next timer is armed, so events with equal
// timestamps keep their order on any clock. Play is called with the
// replay's lock held: once Cancel returns, nothing more is played. Cancel
// must not be called while holding a lock that Play takes.
type Replay struct {
	mu     sync.Mutex
	clk    clock.Clock
	voices doodlejam.Voices
	log    doodlejam.EventLog
	start  time.Time
	next   int
	timer  clock.Timer
	done   chan struct{}
	closed bool
}

// NewReplay starts playing the log on clk, calling voices.Play for every
// event when it is due. The log does not need to be sorted.
func NewReplay(clk clock.Clock, voices doodlejam.Voices, log doodlejam.EventLog) *Replay {
	r := &Replay{
		clk:    clk,
		voices: voices,
		log:    log.Sorted(),
		start:  clk.Now(),
		done:   make(chan struct{}),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduleLocked()
	return r
}

// scheduleLocked arms the timer of the next event, or closes the replay
// when every event has been played.
func (r *Replay) scheduleLocked() {
	if r.next >= len(r.log) {
		r.timer = nil
		r.closeLocked()
		return
	}
	delay := eventTime(r.log[r.next]) - r.clk.Since(r.start)
	r.timer = r.clk.AfterFunc(delay, r.fire)
}

func (r *Replay) fire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	elapsed := r.clk.Since(r.start)
	for r.next < len(r.log) && eventTime(r.log[r.next]) <= elapsed {
		r.voices.Play(r.log[r.next].Sound)
		r.next++
	}
	r.scheduleLocked()
}

func eventTime(e doodlejam.PerformanceEvent) time.Duration {
	return time.Duration(e.Timestamp * float64(time.Millisecond))
}

// Cancel discards every event that has not been played yet. Safe to call
// more than once and after the replay has finished.
func (r *Replay) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.closeLocked()
}

// Done is closed when every event has been played or the replay was
// cancelled.
func (r *Replay) Done() <-chan struct{} {
	return r.done
}

// Remaining returns the number of events not yet played.
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log) - r.next
}

func (r *Replay) closeLocked() {
	if !r.closed {
		r.closed = true
		close(r.done)
	}
}
