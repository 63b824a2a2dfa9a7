// Package synth is a pure-Go synthesizer for the voice families of
// doodlejam: drums, melodic, plucked strings, mono bass and pads, mixed
// through a master effects chain.
package synth

import (
	"fmt"

	"github.com/doodlejam/doodlejam"
)

type (
	// GoSynth renders a palette of voices. Each voice plays the family of the
	// palette instrument owning it; all voices are summed into the master
	// chain. GoSynth is not safe for concurrent use: Trigger, Release, SetMix
	// and Render must be called from the same goroutine, which is the case
	// when driven by engine.Player.
	GoSynth struct {
		palette doodlejam.Palette
		voices  []voice
		master  *master
	}

	// GoSynther is a Synther implementation that builds GoSynths.
	GoSynther struct {
	}
)

func (s GoSynther) Name() string { return "Go" }

func (s GoSynther) Synth(palette doodlejam.Palette) (doodlejam.Synth, error) {
	if err := palette.Validate(); err != nil {
		return nil, fmt.Errorf("error building synth: %w", err)
	}
	ret := &GoSynth{
		palette: palette.Copy(),
		voices:  make([]voice, palette.NumVoices()),
		master:  newMaster(),
	}
	v := 0
	for _, instr := range palette {
		for j := 0; j < instr.NumVoices; j++ {
			ret.voices[v].family = instr.Family
			ret.voices[v].noise = noise(v + 1)
			v++
		}
	}
	return ret, nil
}

func (s *GoSynth) Trigger(voiceIndex int, note byte) {
	if voiceIndex < 0 || voiceIndex >= len(s.voices) {
		return
	}
	s.voices[voiceIndex].trigger(note)
}

func (s *GoSynth) Release(voiceIndex int) {
	if voiceIndex < 0 || voiceIndex >= len(s.voices) {
		return
	}
	s.voices[voiceIndex].sustain = false
}

func (s *GoSynth) SetMix(mix doodlejam.MixingPreset) {
	s.master.set(mix)
}

// Mix returns the master chain parameters currently in use, after clamping.
func (s *GoSynth) Mix() doodlejam.MixingPreset {
	return s.master.mix
}

// Palette returns the palette the synth was built for.
func (s *GoSynth) Palette() doodlejam.Palette {
	return s.palette
}

// ActiveVoices returns the number of voices still producing sound.
func (s *GoSynth) ActiveVoices() int {
	n := 0
	for i := range s.voices {
		if s.voices[i].active {
			n++
		}
	}
	return n
}

func (s *GoSynth) Render(buffer doodlejam.AudioBuffer) (renderError error) {
	defer func() {
		if err := recover(); err != nil {
			renderError = fmt.Errorf("render panicced: %v", err)
		}
	}()
	for i := range buffer {
		var mono, left, right float32
		for j := range s.voices {
			v := &s.voices[j]
			if !v.active {
				continue
			}
			mono = v.next()
			pan := familyParams[v.family].pan
			left += mono * (1 - pan)
			right += mono * pan
		}
		buffer[i] = s.master.process([2]float32{left, right})
	}
	return nil
}
