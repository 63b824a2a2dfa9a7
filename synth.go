package doodlejam

import (
	"errors"
	"fmt"
)

type (
	// Synth renders the voices of a palette through the master effects chain.
	// Voices are indexed from 0 to Palette.NumVoices()-1; the palette given to
	// the Synther decides which family each voice plays.
	Synth interface {
		// Render fills the whole buffer with audio. A render that panics is
		// reported as an error and the synth should not be used afterwards.
		Render(buffer AudioBuffer) error
		// Trigger starts a voice with a new note, resetting all its state.
		Trigger(voice int, note byte)
		// Release puts the voice into release stage.
		Release(voice int)
		// SetMix changes the master chain parameters. Takes effect from the
		// next rendered sample.
		SetMix(mix MixingPreset)
	}

	// Synther builds Synths for a palette.
	Synther interface {
		Name() string
		Synth(palette Palette) (Synth, error)
	}

	// Voices is what plays sounds by id: the audio engine, or anything
	// standing in for it, e.g. when replaying an event log.
	Voices interface {
		// StartNote starts a sustained note; it keeps sounding until StopNote.
		StartNote(id SoundID)
		// StopNote releases a note started with StartNote.
		StopNote(id SoundID)
		// Play triggers a note that is released automatically.
		Play(id SoundID)
		// StopAll releases every voice and cancels pending replays.
		StopAll()
	}
)

// Render renders a buffer of given length with the synth. Convenience for
// tests and offline rendering.
func Render(synth Synth, frames int) (AudioBuffer, error) {
	if frames < 0 {
		return nil, errors.New("cannot render a negative number of frames")
	}
	buffer := make(AudioBuffer, frames)
	if err := synth.Render(buffer); err != nil {
		return nil, fmt.Errorf("doodlejam.Render failed: %w", err)
	}
	return buffer, nil
}
