package doodlejam

import (
	"errors"
	"fmt"
)

type (
	// HitZone is a labeled rectangle on a drawing that sounds Sound when
	// touched. Coordinates are percentages (0-100) of the drawing's width and
	// height; X, Y is the top-left corner.
	HitZone struct {
		Sound  SoundID `yaml:"sound" json:"sound"`
		Label  string  `yaml:"label,omitempty" json:"label,omitempty"`
		X      float64 `yaml:"x" json:"x"`
		Y      float64 `yaml:"y" json:"y"`
		Width  float64 `yaml:"width" json:"width"`
		Height float64 `yaml:"height" json:"height"`
	}

	// Zones is the ordered zone list of one instrument. Zones may overlap;
	// every zone containing a point fires.
	Zones []HitZone

	// Point is a position in normalized image space, both coordinates in
	// [0,1].
	Point struct {
		X, Y float64
	}
)

// containmentEpsilon absorbs float rounding when scaling normalized points to
// percent, so that points exactly on an edge are inside.
const containmentEpsilon = 1e-9

// Contains reports whether the normalized point p lies inside the zone. Both
// edges are inclusive. Points outside [0,1] never match.
func (z HitZone) Contains(p Point) bool {
	if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
		return false
	}
	px, py := p.X*100, p.Y*100
	return px >= z.X-containmentEpsilon && px <= z.X+z.Width+containmentEpsilon &&
		py >= z.Y-containmentEpsilon && py <= z.Y+z.Height+containmentEpsilon
}

// Center returns the normalized center point of the zone.
func (z HitZone) Center() Point {
	return Point{X: (z.X + z.Width/2) / 100, Y: (z.Y + z.Height/2) / 100}
}

var ErrInvalidZone = errors.New("invalid hit zone")

// Validate checks that every zone has a sound and a positive size inside the
// 0-100 square.
func (zs Zones) Validate() error {
	for i, z := range zs {
		switch {
		case z.Sound == "":
			return fmt.Errorf("%w: zone %d has no sound", ErrInvalidZone, i)
		case z.Width <= 0 || z.Height <= 0:
			return fmt.Errorf("%w: zone %d (%s) has non-positive size", ErrInvalidZone, i, z.Sound)
		case z.X < 0 || z.Y < 0 || z.X+z.Width > 100 || z.Y+z.Height > 100:
			return fmt.Errorf("%w: zone %d (%s) is outside the drawing", ErrInvalidZone, i, z.Sound)
		}
	}
	return nil
}

// Hits appends the sounds of all zones containing p to dst, in zone order.
func (zs Zones) Hits(dst []SoundID, p Point) []SoundID {
	for _, z := range zs {
		if z.Contains(p) {
			dst = append(dst, z.Sound)
		}
	}
	return dst
}

// Find returns the first zone with the given sound.
func (zs Zones) Find(id SoundID) (HitZone, bool) {
	for _, z := range zs {
		if z.Sound == id {
			return z, true
		}
	}
	return HitZone{}, false
}

// Copy returns a deep copy of the zone list.
func (zs Zones) Copy() Zones {
	ret := make(Zones, len(zs))
	copy(ret, zs)
	return ret
}
