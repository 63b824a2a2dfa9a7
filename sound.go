package doodlejam

import (
	"regexp"
	"strconv"
	"strings"
)

type (
	// SoundID is the key a hit zone sounds. It may be prefixed with an
	// instrument-family tag, e.g. "harp:c4", "drum:kick", "bass_e2".
	SoundID string

	// Family is the voice family a sound is routed to.
	Family int

	// Sound is a parsed SoundID: the voice family and the MIDI note to play.
	Sound struct {
		Family Family
		Note   byte
	}
)

const (
	FamilyMelodic Family = iota
	FamilyKick
	FamilySnare
	FamilyHihat
	FamilyCrash
	FamilyTomHigh
	FamilyTomMid
	FamilyTomLow
	FamilyPluck
	FamilyBass
	FamilyPad
	NumFamilies
)

var familyNames = [NumFamilies]string{
	FamilyMelodic: "melodic",
	FamilyKick:    "kick",
	FamilySnare:   "snare",
	FamilyHihat:   "hihat",
	FamilyCrash:   "crash",
	FamilyTomHigh: "tom-high",
	FamilyTomMid:  "tom-mid",
	FamilyTomLow:  "tom-low",
	FamilyPluck:   "pluck",
	FamilyBass:    "bass",
	FamilyPad:     "pad",
}

// General MIDI percussion keys, also used as the "note" of drum voices.
var drumKeys = map[Family]byte{
	FamilyKick:    36,
	FamilySnare:   38,
	FamilyHihat:   42,
	FamilyCrash:   49,
	FamilyTomHigh: 50,
	FamilyTomMid:  47,
	FamilyTomLow:  43,
}

func (f Family) String() string {
	if f < 0 || f >= NumFamilies {
		return "unknown"
	}
	return familyNames[f]
}

// IsDrum reports whether the family is one of the percussion voices.
func (f Family) IsDrum() bool {
	_, ok := drumKeys[f]
	return ok
}

// OneShot reports whether sounds of the family are onset-only: they are
// triggered on touch and released by a timer, never by lifting the finger.
// Drums and plucked strings are one-shot; melodic, bass and pad voices
// sustain while touched.
func (f Family) OneShot() bool {
	return f.IsDrum() || f == FamilyPluck
}

// DefaultNote is the MIDI note used when a SoundID carries no pitch name.
func (f Family) DefaultNote() byte {
	if k, ok := drumKeys[f]; ok {
		return k
	}
	if f == FamilyBass {
		return 36
	}
	return 60
}

var notePattern = regexp.MustCompile(`([a-g])(#|b|s)?(-?[0-9])$`)

var noteOffsets = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// ParseSound routes a SoundID to exactly one voice family. Family prefixes
// ("harp:", "drum:", "bass", "pad") are checked first, then the bare id is
// matched by substring ("kick", "snare", "hihat", "crash", "tom"). Anything
// else is melodic. A trailing pitch name such as "c4" or "f#3" selects the
// note.
func ParseSound(id SoundID) Sound {
	s := strings.ToLower(strings.TrimSpace(string(id)))
	family, bare, tagged := familyFromPrefix(s)
	if !tagged {
		family = familyFromSubstring(bare)
	}
	note, ok := parseNote(bare)
	if !ok || family.IsDrum() {
		note = family.DefaultNote()
	}
	return Sound{Family: family, Note: note}
}

func familyFromPrefix(s string) (family Family, bare string, ok bool) {
	switch {
	case strings.HasPrefix(s, "harp:"):
		return FamilyPluck, strings.TrimPrefix(s, "harp:"), true
	case strings.HasPrefix(s, "drum:"):
		bare = strings.TrimPrefix(s, "drum:")
		return familyFromSubstring(bare), bare, true
	case strings.HasPrefix(s, "bass"):
		return FamilyBass, strings.TrimLeft(strings.TrimPrefix(s, "bass"), ":_-"), true
	case strings.HasPrefix(s, "pad"):
		return FamilyPad, strings.TrimLeft(strings.TrimPrefix(s, "pad"), ":_-"), true
	}
	return FamilyMelodic, s, false
}

func familyFromSubstring(bare string) Family {
	switch {
	case strings.Contains(bare, "kick"):
		return FamilyKick
	case strings.Contains(bare, "snare"):
		return FamilySnare
	case strings.Contains(bare, "hihat"):
		return FamilyHihat
	case strings.Contains(bare, "crash"):
		return FamilyCrash
	case strings.Contains(bare, "tom"):
		rest := strings.Replace(bare, "tom", "", 1)
		switch {
		case strings.Contains(rest, "low"), strings.Contains(rest, "floor"):
			return FamilyTomLow
		case strings.Contains(rest, "hi"):
			return FamilyTomHigh
		}
		return FamilyTomMid
	}
	return FamilyMelodic
}

func parseNote(bare string) (byte, bool) {
	if i := strings.LastIndexAny(bare, ":_- "); i >= 0 {
		bare = bare[i+1:]
	}
	m := notePattern.FindStringSubmatch(bare)
	if m == nil || len(m[0]) != len(bare) {
		return 0, false
	}
	octave, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, false
	}
	n := (octave+1)*12 + noteOffsets[m[1][0]]
	switch m[2] {
	case "#", "s":
		n++
	case "b":
		n--
	}
	if n < 0 || n > 127 {
		return 0, false
	}
	return byte(n), true
}

// Sound parses the id; shorthand for ParseSound(id).
func (id SoundID) Sound() Sound {
	return ParseSound(id)
}
