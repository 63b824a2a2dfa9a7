package synth

import (
	"math"

	"github.com/doodlejam/doodlejam"
)

const (
	compressorRatio   = 4.0
	compressorAttack  = 1.0 / 220  // ~5 ms smoothing of the power follower
	compressorRelease = 1.0 / 4410 // ~100 ms
	limiterCeiling    = 0.8912509  // -1 dBFS
	reverbFeedback    = 0.84
	reverbDamp        = 0.2
	reverbInputGain   = 0.015
	allpassFeedback   = 0.5
	stereoSpread      = 23
)

var (
	eqFreqs     = [3]float64{100, 1000, 8000}
	combTimes   = [4]int{1116, 1188, 1277, 1356}
	allpassTime = [2]int{556, 441}
)

type (
	// master is the effects chain every voice is summed into: three-band EQ,
	// distortion, compressor, reverb and a brickwall limiter.
	master struct {
		mix doodlejam.MixingPreset

		eq      [3]biquad
		eqState [3][2]biquadState

		shape float32 // waveshaper amount; 0.5 is bypass

		threshold2 float32
		exponent   float32
		level      float32

		combs     [2][4]delayline
		allpasses [2][2]delayline
		wet, dry  float32
	}

	// delayline is a circular buffer with a one-pole damping filter in the
	// feedback path.
	delayline struct {
		buffer    []float32
		pos       int
		dampState float32
	}
)

func newMaster() *master {
	m := &master{}
	for c := 0; c < 2; c++ {
		for i, t := range combTimes {
			m.combs[c][i].buffer = make([]float32, t+c*stereoSpread)
		}
		for i, t := range allpassTime {
			m.allpasses[c][i].buffer = make([]float32, t+c*stereoSpread)
		}
	}
	m.set(doodlejam.DefaultMixingPreset())
	return m
}

func (m *master) set(mix doodlejam.MixingPreset) {
	mix = mix.Clamp()
	m.mix = mix
	boosts := [3]float64{mix.BassBoost, mix.MidBoost, mix.TrebleBoost}
	for i := range m.eq {
		m.eq[i] = peaking(eqFreqs[i], 0.9, boosts[i])
	}
	m.shape = float32(0.5 + 0.49*mix.DistortionAmount)
	threshold := math.Pow(10, mix.CompressionThreshold/20)
	m.threshold2 = float32(threshold * threshold)
	m.exponent = float32(1 - 1/compressorRatio)
	m.wet = float32(mix.ReverbAmount)
	m.dry = 1 - 0.5*m.wet
}

func (m *master) process(frame [2]float32) [2]float32 {
	for c := range frame {
		for i := range m.eq {
			frame[c] = m.eq[i].process(&m.eqState[i][c], frame[c])
		}
		if m.shape != 0.5 {
			frame[c] = waveshape(clip(frame[c], 1), m.shape)
		}
	}
	// feed-forward compressor on the summed power of both channels
	power := frame[0]*frame[0] + frame[1]*frame[1]
	alpha := float32(compressorAttack)
	if power < m.level {
		alpha = compressorRelease
	}
	m.level += (power - m.level) * alpha
	if m.level > m.threshold2 {
		gain := float32(math.Pow(float64(m.threshold2/m.level), float64(m.exponent/2)))
		frame[0] *= gain
		frame[1] *= gain
	}
	input := (frame[0] + frame[1]) * reverbInputGain
	for c := range frame {
		var rev float32
		for i := range m.combs[c] {
			rev += m.combs[c][i].comb(input)
		}
		for i := range m.allpasses[c] {
			rev = m.allpasses[c][i].allpass(rev)
		}
		frame[c] = clip(frame[c]*m.dry+rev*m.wet*3, limiterCeiling)
	}
	return frame
}

func (d *delayline) comb(in float32) float32 {
	out := d.buffer[d.pos]
	d.dampState = reverbDamp*d.dampState + (1-reverbDamp)*out
	d.buffer[d.pos] = reverbFeedback*d.dampState + in
	d.advance()
	return out
}

func (d *delayline) allpass(in float32) float32 {
	delayed := d.buffer[d.pos]
	d.buffer[d.pos] = in + delayed*allpassFeedback
	d.advance()
	return delayed - in
}

func (d *delayline) advance() {
	d.pos++
	if d.pos >= len(d.buffer) {
		d.pos = 0
	}
}
