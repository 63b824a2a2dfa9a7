package synth

import "math"

const (
	envStateAttack = iota
	envStateDecay
	envStateSustain
	envStateRelease
)

// envelope is a linear ADSR. Attack, decay and release are per-sample slopes
// in nonLinearMap units: 0 is instant, 1 is very slow.
type envelope struct {
	attack, decay, sustain, release float32
}

type envState struct {
	state int
	level float32
}

func (e *envState) next(p envelope, sustain bool) float32 {
	if !sustain {
		e.state = envStateRelease
	}
	switch e.state {
	case envStateAttack:
		e.level += nonLinearMap(p.attack)
		if e.level >= 1 {
			e.level = 1
			e.state = envStateDecay
		}
	case envStateDecay:
		e.level -= nonLinearMap(p.decay)
		if e.level <= p.sustain {
			e.level = p.sustain
			e.state = envStateSustain
		}
	case envStateRelease:
		e.level -= nonLinearMap(p.release)
		if e.level <= 0 {
			e.level = 0
		}
	}
	return e.level
}

// silent reports whether the envelope has run out after its attack.
func (e *envState) silent() bool {
	return e.level <= 0 && e.state != envStateAttack
}

// svf is a two-pole state variable filter; f is the frequency coefficient
// (squared inside, as in the oscillator-to-filter path of the voice).
type svf struct {
	low, band float32
}

func (s *svf) process(in, f, res float32) (low, band, high float32) {
	f2 := f * f
	s.low += f2 * s.band
	high = in - s.low - res*s.band
	s.band += f2 * high
	return s.low, s.band, high
}

// biquad is a peaking EQ filter in transposed direct form II.
type biquad struct {
	b0, b1, b2, a2 float32
}

type biquadState [2]float32

func peaking(freq, q, gainDB float64) biquad {
	omega := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(omega) / (2 * q)
	a := math.Pow(10, gainDB/40)
	den := 1 + alpha/a
	return biquad{
		b0: float32((1 + alpha*a) / den),
		b1: float32(-2 * math.Cos(omega) / den),
		b2: float32((1 - alpha*a) / den),
		a2: float32((1 - alpha/a) / den),
	}
}

func (b biquad) process(s *biquadState, in float32) float32 {
	out := b.b0*in + s[0]
	s[0] = b.b1*in - b.b1*out + s[1]
	s[1] = b.b2*in - b.a2*out
	return out
}

type noise uint32

func (n *noise) next() float32 {
	*n *= 16007
	return float32(int32(*n)) / -2147483648.0
}

func nonLinearMap(value float32) float32 {
	return float32(math.Exp2(float64(-24 * value)))
}

// waveshape is a soft saturator; amount 0.5 is the identity, towards 1 it
// approaches a square.
func waveshape(value, amount float32) float32 {
	absVal := value
	if absVal < 0 {
		absVal = -absVal
	}
	return value * amount / (1 - amount + (2*amount-1)*absVal)
}

func clip(value, limit float32) float32 {
	if value < -limit {
		return -limit
	}
	if value > limit {
		return limit
	}
	return value
}

func sine(phase float32) float32 {
	return float32(math.Sin(2 * math.Pi * float64(phase)))
}

// trisaw morphs from a saw (color near 0 or 1) to a triangle (color 0.5).
func trisaw(phase, color float32) float32 {
	if phase >= color {
		phase = 1 - phase
		color = 1 - color
	}
	return phase/color*2 - 1
}

func wrap(phase float32) float32 {
	return phase - float32(int(phase))
}

func noteFreq(note byte) float64 {
	return 440 * math.Exp2((float64(note)-69)/12)
}
