package engine

import (
	"fmt"
	"time"

	"github.com/doodlejam/doodlejam"
)

// BounceOptions control an offline render.
type BounceOptions struct {
	Palette     doodlejam.Palette
	Mix         doodlejam.MixingPreset
	AutoRelease time.Duration
	Tail        time.Duration // rendered after the last event, for the release and reverb
}

func DefaultBounceOptions() BounceOptions {
	return BounceOptions{
		Palette:     doodlejam.DefaultPalette,
		Mix:         doodlejam.DefaultMixingPreset(),
		AutoRelease: DefaultAutoRelease,
		Tail:        2 * time.Second,
	}
}

// Bounce renders an event log offline, sample accurately, with a new synth.
// Every event is played as an auto-released note, as when replaying. The log
// does not need to be in order.
func Bounce(synther doodlejam.Synther, log doodlejam.EventLog, opts BounceOptions) (doodlejam.AudioBuffer, error) {
	synth, err := synther.Synth(opts.Palette)
	if err != nil {
		return nil, fmt.Errorf("building %s synth: %w", synther.Name(), err)
	}
	player := NewPlayer(nil, synth, opts.Palette, doodlejam.FramesForMillis(float64(opts.AutoRelease)/float64(time.Millisecond)))
	player.SetMix(opts.Mix)
	log = log.Sorted()
	total := doodlejam.FramesForMillis(log.Span()) + doodlejam.FramesForMillis(float64(opts.Tail)/float64(time.Millisecond))
	buffer := make(doodlejam.AudioBuffer, total)
	pos := 0
	for _, e := range log {
		frame := doodlejam.FramesForMillis(e.Timestamp)
		if err := player.Render(buffer[pos:frame]); err != nil {
			return nil, fmt.Errorf("bounce failed at %v ms: %w", e.Timestamp, err)
		}
		pos = frame
		player.Trigger(e.Sound, doodlejam.ParseSound(e.Sound), true)
	}
	if err := player.Render(buffer[pos:]); err != nil {
		return nil, fmt.Errorf("bounce failed in the tail: %w", err)
	}
	return buffer, nil
}
