package landmark

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/doodlejam/doodlejam"
	"gopkg.in/yaml.v3"
)

type (
	// ScriptedDetector replays a scripted landmark track instead of looking
	// at the frames. Each keyframe holds until the next one; the last
	// keyframe holds forever.
	ScriptedDetector struct {
		keys []Keyframe
	}

	// Keyframe sets the hands visible from At milliseconds on. Touch is a
	// shorthand for hands whose every landmark sits on one point.
	Keyframe struct {
		At    float64           `yaml:"at"`
		Hands []Hand            `yaml:"hands,omitempty"`
		Touch []doodlejam.Point `yaml:"touch,omitempty"`
	}

	script struct {
		Keyframes []Keyframe `yaml:"keyframes"`
	}
)

// NewScripted builds a scripted detector; keyframes are sorted by time.
func NewScripted(keys []Keyframe) *ScriptedDetector {
	ret := make([]Keyframe, len(keys))
	copy(ret, keys)
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].At < ret[j].At })
	for i := range ret {
		ret[i].Hands = append(ret[i].Hands, touchHands(ret[i].Touch)...)
		ret[i].Touch = nil
	}
	return &ScriptedDetector{keys: ret}
}

// ReadScript reads a YAML script of the form
//
//	keyframes:
//	  - at: 0
//	    touch: [{x: 0.2, y: 0.3}]
//	  - at: 250
//	    touch: []
func ReadScript(r io.Reader) (*ScriptedDetector, error) {
	var s script
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("could not decode landmark script: %w", err)
	}
	for i, k := range s.Keyframes {
		if k.At < 0 {
			return nil, fmt.Errorf("keyframe %d has negative time %v", i, k.At)
		}
	}
	return NewScripted(s.Keyframes), nil
}

func (s *ScriptedDetector) Detect(_ Frame, timestampMs float64) (Detection, error) {
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i].At > timestampMs })
	if i == 0 {
		return Detection{}, nil
	}
	return Detection{Hands: s.keys[i-1].Hands}, nil
}

// Length returns the time of the last keyframe in milliseconds.
func (s *ScriptedDetector) Length() float64 {
	if len(s.keys) == 0 {
		return 0
	}
	return s.keys[len(s.keys)-1].At
}

func touchHands(points []doodlejam.Point) []Hand {
	var ret []Hand
	for _, p := range points {
		h := make(Hand, NumLandmarks)
		for i := range h {
			h[i] = Landmark{X: p.X, Y: p.Y}
		}
		ret = append(ret, h)
	}
	return ret
}

// Tour scripts a finger visiting the center of every zone in order, resting
// dwell on each and lifting for gap in between. The finger stays lifted
// after the last zone.
func Tour(zones doodlejam.Zones, dwell, gap time.Duration) *ScriptedDetector {
	var keys []Keyframe
	var at time.Duration
	for _, z := range zones {
		keys = append(keys, Keyframe{At: millis(at), Touch: []doodlejam.Point{z.Center()}})
		at += dwell
		keys = append(keys, Keyframe{At: millis(at)})
		at += gap
	}
	return NewScripted(keys)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
