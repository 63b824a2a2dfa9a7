package synth

import (
	"math"

	"github.com/doodlejam/doodlejam"
)

const (
	sampleRate    = doodlejam.SampleRate
	maxPluckDelay = 4096
)

type (
	voiceParams struct {
		env  envelope
		gain float32
		pan  float32 // 0 = left, 0.5 = center, 1 = right
	}

	voice struct {
		family  doodlejam.Family
		note    byte
		sustain bool
		active  bool
		time    int // samples since trigger
		freq    float64
		env     envState
		phase   [3]float32
		filter  svf
		noise   noise

		pluck     []float32
		pluckLen  int
		pluckPos  int
		pluckPrev float32
	}
)

var familyParams = [doodlejam.NumFamilies]voiceParams{
	doodlejam.FamilyKick:    {env: envelope{attack: 0.23, decay: 0.58, sustain: 0, release: 0.58}, gain: 1.6, pan: 0.5},
	doodlejam.FamilySnare:   {env: envelope{attack: 0.2, decay: 0.55, sustain: 0, release: 0.55}, gain: 0.9, pan: 0.48},
	doodlejam.FamilyHihat:   {env: envelope{attack: 0.2, decay: 0.47, sustain: 0, release: 0.45}, gain: 0.45, pan: 0.62},
	doodlejam.FamilyCrash:   {env: envelope{attack: 0.2, decay: 0.65, sustain: 0, release: 0.62}, gain: 0.4, pan: 0.38},
	doodlejam.FamilyTomHigh: {env: envelope{attack: 0.23, decay: 0.57, sustain: 0, release: 0.57}, gain: 1.1, pan: 0.6},
	doodlejam.FamilyTomMid:  {env: envelope{attack: 0.23, decay: 0.57, sustain: 0, release: 0.57}, gain: 1.1, pan: 0.5},
	doodlejam.FamilyTomLow:  {env: envelope{attack: 0.23, decay: 0.58, sustain: 0, release: 0.58}, gain: 1.2, pan: 0.4},
	doodlejam.FamilyMelodic: {env: envelope{attack: 0.33, decay: 0.55, sustain: 0.6, release: 0.6}, gain: 0.7, pan: 0.5},
	doodlejam.FamilyPluck:   {env: envelope{attack: 0.15, decay: 0.66, sustain: 0, release: 0.6}, gain: 0.9, pan: 0.55},
	doodlejam.FamilyBass:    {env: envelope{attack: 0.3, decay: 0.55, sustain: 0.7, release: 0.55}, gain: 0.9, pan: 0.5},
	doodlejam.FamilyPad:     {env: envelope{attack: 0.59, decay: 0.6, sustain: 0.8, release: 0.64}, gain: 0.45, pan: 0.5},
}

var tomFreqs = map[doodlejam.Family]float64{
	doodlejam.FamilyTomHigh: 220,
	doodlejam.FamilyTomMid:  160,
	doodlejam.FamilyTomLow:  110,
}

func (v *voice) trigger(note byte) {
	pluck := v.pluck
	*v = voice{family: v.family, note: note, sustain: true, active: true, noise: v.noise, pluck: pluck}
	if v.noise == 0 {
		v.noise = 1
	}
	v.freq = noteFreq(note)
	if v.family == doodlejam.FamilyPluck {
		if v.pluck == nil {
			v.pluck = make([]float32, maxPluckDelay)
		}
		v.pluckLen = int(sampleRate/v.freq + 0.5)
		if v.pluckLen < 2 {
			v.pluckLen = 2
		}
		if v.pluckLen > maxPluckDelay {
			v.pluckLen = maxPluckDelay
		}
		for i := 0; i < v.pluckLen; i++ {
			v.pluck[i] = v.noise.next()
		}
	}
}

// next renders one mono sample of the voice.
func (v *voice) next() float32 {
	p := &familyParams[v.family]
	level := v.env.next(p.env, v.sustain)
	if v.env.silent() {
		v.active = false
		return 0
	}
	t := float64(v.time) / sampleRate
	v.time++
	var out float32
	switch v.family {
	case doodlejam.FamilyKick:
		out = v.osc(0, 50+100*math.Exp(-t/0.03), sine)
	case doodlejam.FamilySnare:
		_, _, high := v.filter.process(v.noise.next(), 0.75, 1)
		out = 0.5*v.osc(0, 185, sine) + 0.7*high
	case doodlejam.FamilyHihat:
		_, _, high := v.filter.process(v.noise.next(), 0.95, 0.6)
		out = high
	case doodlejam.FamilyCrash:
		_, band, high := v.filter.process(v.noise.next(), 0.85, 0.8)
		out = high + 0.3*band
	case doodlejam.FamilyTomHigh, doodlejam.FamilyTomMid, doodlejam.FamilyTomLow:
		base := tomFreqs[v.family]
		out = v.osc(0, base*(1+0.5*math.Exp(-t/0.05)), sine)
	case doodlejam.FamilyMelodic:
		tri := v.osc(0, v.freq, func(ph float32) float32 { return trisaw(ph, 0.5) })
		sin := v.osc(1, v.freq*2, sine)
		low, _, _ := v.filter.process(0.7*tri+0.3*sin, 0.55, 0.8)
		out = low
	case doodlejam.FamilyPluck:
		out = v.karplusStrong()
	case doodlejam.FamilyBass:
		saw := v.osc(0, v.freq, func(ph float32) float32 { return trisaw(ph, 0.98) })
		low, _, _ := v.filter.process(saw, 0.3, 0.5)
		out = low
	case doodlejam.FamilyPad:
		for i, detune := range [3]float64{0.996, 1, 1.004} {
			out += v.osc(i, v.freq*detune, func(ph float32) float32 { return trisaw(ph, 0.3) })
		}
		low, _, _ := v.filter.process(out/3, 0.35, 0.7)
		out = low
	}
	return out * level * p.gain
}

func (v *voice) osc(i int, freq float64, wave func(float32) float32) float32 {
	v.phase[i] = wrap(v.phase[i] + float32(freq/sampleRate))
	return wave(v.phase[i])
}

// karplusStrong reads the plucked string delay line, averaging adjacent
// samples so high harmonics die first.
func (v *voice) karplusStrong() float32 {
	cur := v.pluck[v.pluckPos]
	v.pluck[v.pluckPos] = 0.996 * 0.5 * (cur + v.pluckPrev)
	v.pluckPrev = cur
	v.pluckPos++
	if v.pluckPos >= v.pluckLen {
		v.pluckPos = 0
	}
	return cur
}
