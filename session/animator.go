package session

import "time"

type (
	// Animator paces the frame loop, one tick per display frame.
	Animator interface {
		Frames() <-chan time.Time
		Stop()
	}

	tickerAnimator struct {
		t *time.Ticker
	}

	// ManualAnimator ticks only when Tick is called, for tests and headless
	// runs.
	ManualAnimator struct {
		c chan time.Time
	}
)

// Ticker returns an Animator ticking fps times per second.
func Ticker(fps int) Animator {
	if fps <= 0 {
		fps = 60
	}
	return tickerAnimator{t: time.NewTicker(time.Second / time.Duration(fps))}
}

func (a tickerAnimator) Frames() <-chan time.Time { return a.t.C }
func (a tickerAnimator) Stop()                    { a.t.Stop() }

func NewManualAnimator() *ManualAnimator {
	return &ManualAnimator{c: make(chan time.Time)}
}

// Tick blocks until the frame loop takes the tick.
func (a *ManualAnimator) Tick() {
	a.c <- time.Time{}
}

// TryTick is Tick that gives up after d, returning false if the frame loop
// did not take the tick.
func (a *ManualAnimator) TryTick(d time.Duration) bool {
	select {
	case a.c <- time.Time{}:
		return true
	case <-time.After(d):
		return false
	}
}

func (a *ManualAnimator) Frames() <-chan time.Time { return a.c }
func (a *ManualAnimator) Stop()                    {}
