package recording

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/doodlejam/doodlejam"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type (
	// SMFOptions control the Standard MIDI File export.
	SMFOptions struct {
		BPM        float64       // tempo written to the file; timing is exact for any tempo
		Resolution uint16        // ticks per quarter note
		NoteLength time.Duration // gate length of every note
		Velocity   uint8
		Name       string // track name
	}

	smfEvent struct {
		tick uint32
		off  bool // note offs sort before note ons on the same tick
		msg  midi.Message
	}
)

const drumChannel = 9

func DefaultSMFOptions() SMFOptions {
	return SMFOptions{BPM: 120, Resolution: 960, NoteLength: 250 * time.Millisecond, Velocity: 100, Name: "doodlejam"}
}

// WriteSMF writes the event log as a single-track Standard MIDI File. Drum
// sounds go to channel 10 on their General MIDI keys, every other family gets
// its own channel.
func WriteSMF(w io.Writer, log doodlejam.EventLog, opts SMFOptions) error {
	if opts.BPM <= 0 || opts.Resolution == 0 {
		return fmt.Errorf("invalid SMF options: bpm %v, resolution %v", opts.BPM, opts.Resolution)
	}
	ticksPerMs := float64(opts.Resolution) * opts.BPM / 60000
	toTicks := func(ms float64) uint32 {
		if ms < 0 {
			ms = 0
		}
		return uint32(ms*ticksPerMs + 0.5)
	}
	gate := toTicks(float64(opts.NoteLength) / float64(time.Millisecond))
	if gate == 0 {
		gate = 1
	}
	var events []smfEvent
	for _, e := range log {
		ch, key := channelKey(doodlejam.ParseSound(e.Sound))
		start := toTicks(e.Timestamp)
		events = append(events,
			smfEvent{tick: start, msg: midi.NoteOn(ch, key, opts.Velocity)},
			smfEvent{tick: start + gate, off: true, msg: midi.NoteOff(ch, key)},
		)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(opts.Name))
	tr.Add(0, smf.MetaTempo(opts.BPM))
	var last uint32
	for _, e := range events {
		tr.Add(e.tick-last, e.msg)
		last = e.tick
	}
	tr.Close(0)
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(opts.Resolution)
	if err := s.Add(tr); err != nil {
		return fmt.Errorf("adding track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("writing SMF: %w", err)
	}
	return nil
}

func channelKey(s doodlejam.Sound) (channel, key uint8) {
	if s.Family.IsDrum() {
		return drumChannel, s.Note
	}
	ch := uint8(s.Family)
	if ch >= drumChannel {
		ch++ // skip the drum channel
	}
	return ch, s.Note
}
