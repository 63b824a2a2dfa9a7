// Package clock abstracts wall-clock time for the recorder, the replay
// scheduler and the session driver, so that they can be driven by a manual
// clock in tests and headless runs.
package clock

import (
	"sort"
	"sync"
	"time"
)

type (
	// Clock tells the time and schedules callbacks.
	Clock interface {
		Now() time.Time
		Since(t time.Time) time.Duration
		// AfterFunc calls f in its own goroutine (Real) or synchronously
		// from Advance (Manual) once d has elapsed.
		AfterFunc(d time.Duration, f func()) Timer
	}

	// Timer is a pending AfterFunc call.
	Timer interface {
		// Stop prevents the call from firing. It returns false if the call
		// already fired or was already stopped.
		Stop() bool
	}

	realClock struct{}

	// Manual is a Clock that only moves when Advance is called. Timers due
	// during an Advance fire synchronously, in due order, with Now() set to
	// their due time.
	Manual struct {
		mu     sync.Mutex
		now    time.Time
		seq    int
		timers []*manualTimer
	}

	manualTimer struct {
		clock *Manual
		due   time.Time
		seq   int
		f     func()
		done  bool
	}
)

// Real returns the Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time                  { return time.Now() }
func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }
func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NewManual returns a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	t := &manualTimer{clock: m, due: m.now.Add(d), seq: m.seq, f: f}
	m.seq++
	m.timers = append(m.timers, t)
	return t
}

// Pending returns the number of timers that have not fired or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward by d, firing every timer that becomes due.
// Timers scheduled by the fired callbacks also fire if they fall within the
// advanced span.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	end := m.now.Add(d)
	m.mu.Unlock()
	for {
		m.mu.Lock()
		t := m.popDue(end)
		if t == nil {
			m.now = end
			m.mu.Unlock()
			return
		}
		if t.due.After(m.now) {
			m.now = t.due
		}
		m.mu.Unlock()
		t.f()
	}
}

// popDue removes and returns the earliest timer due at or before end, or nil.
func (m *Manual) popDue(end time.Time) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due.Equal(m.timers[j].due) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].due.Before(m.timers[j].due)
	})
	t := m.timers[0]
	if t.due.After(end) {
		return nil
	}
	m.timers = m.timers[1:]
	t.done = true
	return t
}

func (t *manualTimer) Stop() bool {
	m := t.clock
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	for i, o := range m.timers {
		if o == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			break
		}
	}
	return true
}
