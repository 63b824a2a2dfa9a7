package doodlejam

import (
	"errors"
	"fmt"
)

type (
	// Palette is the fixed set of instruments of the voice engine, each owning
	// a contiguous range of voices.
	Palette []Instrument

	// Instrument is one voice family and the number of polyphonic voices it
	// owns. An instrument with one voice is monophonic: every new note steals
	// the voice.
	Instrument struct {
		Family    Family
		NumVoices int
	}
)

// MaxVoices is the largest total number of voices a palette may have.
const MaxVoices = 64

// DefaultPalette has every family of the engine: drums, melodic and plucked
// polyphonic voices, a mono bass and a pad.
var DefaultPalette = Palette{
	{Family: FamilyKick, NumVoices: 2},
	{Family: FamilySnare, NumVoices: 2},
	{Family: FamilyHihat, NumVoices: 4},
	{Family: FamilyCrash, NumVoices: 2},
	{Family: FamilyTomHigh, NumVoices: 2},
	{Family: FamilyTomMid, NumVoices: 2},
	{Family: FamilyTomLow, NumVoices: 2},
	{Family: FamilyMelodic, NumVoices: 8},
	{Family: FamilyPluck, NumVoices: 8},
	{Family: FamilyBass, NumVoices: 1},
	{Family: FamilyPad, NumVoices: 4},
}

var ErrInvalidPalette = errors.New("invalid palette")

// NumVoices returns the total number of voices of the palette.
func (p Palette) NumVoices() int {
	ret := 0
	for _, i := range p {
		ret += i.NumVoices
	}
	return ret
}

// Validate checks that every family appears at most once, with at least one
// voice, and that the palette fits in MaxVoices.
func (p Palette) Validate() error {
	var seen [NumFamilies]bool
	for _, instr := range p {
		if instr.Family < 0 || instr.Family >= NumFamilies {
			return fmt.Errorf("%w: unknown family %d", ErrInvalidPalette, instr.Family)
		}
		if seen[instr.Family] {
			return fmt.Errorf("%w: family %v appears twice", ErrInvalidPalette, instr.Family)
		}
		seen[instr.Family] = true
		if instr.NumVoices < 1 {
			return fmt.Errorf("%w: family %v has no voices", ErrInvalidPalette, instr.Family)
		}
	}
	if n := p.NumVoices(); n > MaxVoices {
		return fmt.Errorf("%w: %d voices, at most %d allowed", ErrInvalidPalette, n, MaxVoices)
	}
	return nil
}

// VoicesForFamily returns the half-open voice range [start, end) of a family.
// ok is false if the palette has no instrument for the family.
func (p Palette) VoicesForFamily(f Family) (start, end int, ok bool) {
	for _, instr := range p {
		if instr.Family == f {
			return start, start + instr.NumVoices, true
		}
		start += instr.NumVoices
	}
	return 0, 0, false
}

// FamilyForVoice returns the family owning the voice.
func (p Palette) FamilyForVoice(voice int) (Family, error) {
	if voice < 0 {
		return 0, errors.New("voice cannot be negative")
	}
	for _, instr := range p {
		if voice < instr.NumVoices {
			return instr.Family, nil
		}
		voice -= instr.NumVoices
	}
	return 0, errors.New("voice number is beyond the total voices of the palette")
}

// Copy returns a copy of the palette.
func (p Palette) Copy() Palette {
	ret := make(Palette, len(p))
	copy(ret, p)
	return ret
}
