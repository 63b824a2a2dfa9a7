// Package resolver maps fingertip points onto hit zones, frame by frame, and
// turns the changes of the touched set into onset and release effects.
package resolver

import (
	"maps"
	"slices"
	"time"

	"github.com/doodlejam/doodlejam"
)

type (
	// FrameState is everything the resolver remembers between frames. It is
	// threaded through Step by its owner; Step never mutates the state it is
	// given.
	FrameState struct {
		// Active is the set of ids touched in the last frame, in zone order.
		Active []doodlejam.SoundID
		// LastOnset is the time of the last accepted onset per id.
		LastOnset map[doodlejam.SoundID]time.Duration
		// Debounce is the minimum time between accepted onsets of one id.
		Debounce time.Duration
	}

	Effect struct {
		Kind  EffectKind
		Sound doodlejam.SoundID
	}

	EffectKind int
)

const (
	Onset EffectKind = iota
	Release
)

// DefaultDebounce filters detector jitter on a finger resting on a zone
// edge.
const DefaultDebounce = 15 * time.Millisecond

func NewFrameState(debounce time.Duration) FrameState {
	return FrameState{LastOnset: map[doodlejam.SoundID]time.Duration{}, Debounce: debounce}
}

func (k EffectKind) String() string {
	if k == Release {
		return "release"
	}
	return "onset"
}

// Step resolves one frame. now is the time of the frame on any monotonic
// time base shared by all the frames of a session.
//
// Every zone containing any of the points is hit. Ids hit now but not in the
// previous frame are onsets, unless the last onset of the id is less than
// Debounce ago. Ids hit in the previous frame but not now are releases,
// except for one-shot families, which are never released by the resolver.
// Effects are ordered releases first, then onsets in zone order.
func Step(state FrameState, points []doodlejam.Point, zones doodlejam.Zones, now time.Duration) (FrameState, []Effect) {
	var frameHits []doodlejam.SoundID
	for _, z := range zones {
		if slices.Contains(frameHits, z.Sound) {
			continue
		}
		for _, p := range points {
			if z.Contains(p) {
				frameHits = append(frameHits, z.Sound)
				break
			}
		}
	}
	var effects []Effect
	for _, id := range state.Active {
		if !slices.Contains(frameHits, id) && !id.Sound().Family.OneShot() {
			effects = append(effects, Effect{Kind: Release, Sound: id})
		}
	}
	lastOnset := state.LastOnset
	copied := false
	for _, id := range frameHits {
		if slices.Contains(state.Active, id) {
			continue
		}
		if last, ok := lastOnset[id]; ok && now-last < state.Debounce {
			continue
		}
		if !copied {
			lastOnset = maps.Clone(lastOnset)
			if lastOnset == nil {
				lastOnset = map[doodlejam.SoundID]time.Duration{}
			}
			copied = true
		}
		lastOnset[id] = now
		effects = append(effects, Effect{Kind: Onset, Sound: id})
	}
	return FrameState{Active: frameHits, LastOnset: lastOnset, Debounce: state.Debounce}, effects
}

// IsActive reports whether the id was touched in the last frame.
func (s FrameState) IsActive(id doodlejam.SoundID) bool {
	return slices.Contains(s.Active, id)
}
