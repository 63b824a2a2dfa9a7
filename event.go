package doodlejam

import (
	"errors"
	"fmt"
	"sort"
)

type (
	// PerformanceEvent is one onset of a performance. Timestamp is in
	// milliseconds relative to the start of the recording.
	PerformanceEvent struct {
		Timestamp float64 `yaml:"timestamp" json:"timestamp"`
		Sound     SoundID `yaml:"sound" json:"sound"`
	}

	// EventLog is an append-only list of performance events. Insertion order
	// is chronological order.
	EventLog []PerformanceEvent
)

var ErrUnorderedLog = errors.New("event log is not in chronological order")

// Validate checks that the timestamps are non-negative and non-decreasing.
func (l EventLog) Validate() error {
	prev := 0.0
	for i, e := range l {
		if e.Timestamp < 0 {
			return fmt.Errorf("event %d (%s) has negative timestamp %v", i, e.Sound, e.Timestamp)
		}
		if e.Timestamp < prev {
			return fmt.Errorf("%w: event %d at %v ms comes after %v ms", ErrUnorderedLog, i, e.Timestamp, prev)
		}
		prev = e.Timestamp
	}
	return nil
}

// Sorted returns a copy of the log, stably sorted by timestamp. Useful for
// logs produced by external arrangers, which need not be ordered.
func (l EventLog) Sorted() EventLog {
	ret := l.Copy()
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].Timestamp < ret[j].Timestamp })
	return ret
}

// Span returns the timestamp of the last event in milliseconds.
func (l EventLog) Span() float64 {
	if len(l) == 0 {
		return 0
	}
	return l[len(l)-1].Timestamp
}

// UniqueSounds returns the set of sounds appearing in the log.
func (l EventLog) UniqueSounds() map[SoundID]struct{} {
	ret := make(map[SoundID]struct{}, len(l))
	for _, e := range l {
		ret[e.Sound] = struct{}{}
	}
	return ret
}

func (l EventLog) Copy() EventLog {
	if l == nil {
		return nil
	}
	ret := make(EventLog, len(l))
	copy(ret, l)
	return ret
}
