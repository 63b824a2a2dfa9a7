package engine

import (
	"fmt"

	"github.com/doodlejam/doodlejam"
)

type (
	// NoteOnMsg triggers a voice for the sound. AutoRelease voices are
	// released by the player after Player.AutoRelease samples.
	NoteOnMsg struct {
		ID          doodlejam.SoundID
		Sound       doodlejam.Sound
		AutoRelease bool
	}

	// NoteOffMsg releases the voice playing the sound, if any.
	NoteOffMsg struct {
		ID doodlejam.SoundID
	}

	// MixMsg sets the master chain parameters.
	MixMsg struct {
		Mix doodlejam.MixingPreset
	}

	// StopAllMsg releases every voice.
	StopAllMsg struct{}

	// Alert is a problem reported by the player from the audio thread.
	Alert struct {
		Name     string
		Message  string
		Priority AlertPriority
	}

	AlertPriority int
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

func (p AlertPriority) String() string {
	switch p {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("AlertPriority(%d)", int(p))
}

func (a Alert) Error() string {
	return fmt.Sprintf("%s: %s", a.Name, a.Message)
}
