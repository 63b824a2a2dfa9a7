// Package feedback keeps the particle bursts drawn where a zone is hit. It
// only simulates; drawing the particles is up to the front end.
package feedback

import (
	"image/color"
	"math"
	"math/rand"
	"sync"
	"time"

	"gioui.org/f32"
	"github.com/doodlejam/doodlejam"
)

type (
	// Particle positions are in normalized image space until projected.
	Particle struct {
		Pos   f32.Point
		Vel   f32.Point
		Age   float32 // seconds
		Life  float32 // seconds
		Size  float32
		Color color.NRGBA
		Sound doodlejam.SoundID
	}

	// Field is a particle system. It is safe for concurrent use.
	Field struct {
		mu        sync.Mutex
		particles []Particle
		rng       *rand.Rand
		max       int
	}
)

const (
	DefaultMaxParticles = 512
	gravity             = 0.9 // normalized units per second squared
	drag                = 1.8 // per second
)

var familyColors = [doodlejam.NumFamilies]color.NRGBA{
	doodlejam.FamilyMelodic: {R: 0x4f, G: 0xc3, B: 0xf7, A: 0xff},
	doodlejam.FamilyKick:    {R: 0xff, G: 0x52, B: 0x52, A: 0xff},
	doodlejam.FamilySnare:   {R: 0xff, G: 0xab, B: 0x40, A: 0xff},
	doodlejam.FamilyHihat:   {R: 0xff, G: 0xee, B: 0x58, A: 0xff},
	doodlejam.FamilyCrash:   {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	doodlejam.FamilyTomHigh: {R: 0xf0, G: 0x62, B: 0x92, A: 0xff},
	doodlejam.FamilyTomMid:  {R: 0xba, G: 0x68, B: 0xc8, A: 0xff},
	doodlejam.FamilyTomLow:  {R: 0x95, G: 0x75, B: 0xcd, A: 0xff},
	doodlejam.FamilyPluck:   {R: 0x81, G: 0xc7, B: 0x84, A: 0xff},
	doodlejam.FamilyBass:    {R: 0x79, G: 0x86, B: 0xcb, A: 0xff},
	doodlejam.FamilyPad:     {R: 0x4d, G: 0xd0, B: 0xe1, A: 0xff},
}

// NewField returns an empty field. The seed makes bursts reproducible.
func NewField(seed int64) *Field {
	return &Field{rng: rand.New(rand.NewSource(seed)), max: DefaultMaxParticles}
}

// Color returns the particle colour of the family of a sound.
func Color(id doodlejam.SoundID) color.NRGBA {
	return familyColors[id.Sound().Family]
}

// Spawn bursts particles from the point. Drums burst bigger. When the field
// is full the oldest particles make room.
func (f *Field) Spawn(at doodlejam.Point, id doodlejam.SoundID) {
	sound := id.Sound()
	n, speed := 8, float32(0.35)
	if sound.Family.IsDrum() {
		n, speed = 14, 0.55
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	origin := f32.Pt(float32(at.X), float32(at.Y))
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * (float64(i) + f.rng.Float64()) / float64(n)
		v := speed * (0.5 + f.rng.Float32())
		f.particles = append(f.particles, Particle{
			Pos:   origin,
			Vel:   f32.Pt(v*float32(math.Cos(angle)), v*float32(math.Sin(angle))),
			Life:  0.6 + 0.4*f.rng.Float32(),
			Size:  0.008 + 0.008*f.rng.Float32(),
			Color: familyColors[sound.Family],
			Sound: id,
		})
	}
	if over := len(f.particles) - f.max; over > 0 {
		f.particles = append(f.particles[:0], f.particles[over:]...)
	}
}

// Step advances the simulation and removes expired particles.
func (f *Field) Step(dt time.Duration) {
	s := float32(dt.Seconds())
	if s <= 0 {
		return
	}
	damp := float32(math.Exp(-drag * float64(s)))
	f.mu.Lock()
	defer f.mu.Unlock()
	alive := f.particles[:0]
	for _, p := range f.particles {
		p.Age += s
		if p.Age >= p.Life {
			continue
		}
		p.Vel = p.Vel.Mul(damp).Add(f32.Pt(0, gravity*s))
		p.Pos = p.Pos.Add(p.Vel.Mul(s))
		fade := 1 - p.Age/p.Life
		p.Color.A = uint8(255 * fade)
		alive = append(alive, p)
	}
	f.particles = alive
}

// Particles returns a snapshot of the live particles.
func (f *Field) Particles() []Particle {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([]Particle, len(f.particles))
	copy(ret, f.particles)
	return ret
}

func (f *Field) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.particles)
}

// Project returns a snapshot with positions, velocities and sizes mapped to
// a w by h pixel viewport.
func (f *Field) Project(w, h float32) []Particle {
	tr := f32.Affine2D{}.Scale(f32.Point{}, f32.Pt(w, h))
	ret := f.Particles()
	for i := range ret {
		ret[i].Pos = tr.Transform(ret[i].Pos)
		ret[i].Vel = tr.Transform(ret[i].Vel)
		ret[i].Size *= float32(math.Min(float64(w), float64(h)))
	}
	return ret
}
