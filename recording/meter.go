package recording

import (
	"math"

	"github.com/doodlejam/doodlejam"
	"github.com/viterin/vek/vek32"
)

type (
	// Meter measures the K-weighted integrated loudness (EBU R128 gating on
	// 400 ms blocks every 100 ms) and the sample peak of everything written
	// to it.
	Meter struct {
		states  [2][2]biquadState
		pending doodlejam.AudioBuffer
		window  [4]float32 // last four 100 ms powers
		blocks  int
		powers  []float32 // momentary power of every 400 ms block
		peak    float32

		tmp, tmp2 []float32
		tmpbool   []bool
	}

	biquadState struct {
		x1, x2, y1, y2 float32
	}

	biquadCoeff struct {
		b0, b1, b2, a1, a2 float32
	}
)

const (
	meterChunk      = doodlejam.SampleRate / 10
	maxMeterBlocks  = 10 * 60 * 60 // one hour of 100 ms blocks
	kWeightOffset   = -0.691
	absoluteGate    = -70
	SilenceDecibels = -120
)

var kWeighting = [2]biquadCoeff{
	{b0: 1.5308412300503476, b1: -2.6509799951547293, b2: 1.1690790799215869, a1: -1.6636551132560204, a2: 0.7125954280732254},
	{b0: 0.9995600645425144, b1: -1.9991201290850289, b2: 0.9995600645425144, a1: -1.9891696736297957, a2: 0.9891990357870394},
}

func NewMeter() *Meter {
	return &Meter{}
}

// Write feeds audio to the meter. Audio is analyzed in 100 ms chunks; a
// partial chunk is kept until more audio arrives.
func (m *Meter) Write(buf doodlejam.AudioBuffer) {
	for len(buf) > 0 {
		n := min(len(buf), meterChunk-len(m.pending))
		m.pending = append(m.pending, buf[:n]...)
		buf = buf[n:]
		if len(m.pending) == meterChunk {
			m.update(m.pending)
			m.pending = m.pending[:0]
		}
	}
}

func (m *Meter) update(chunk doodlejam.AudioBuffer) {
	setSliceLength(&m.tmp, len(chunk))
	setSliceLength(&m.tmp2, len(chunk))
	var total float32
	for chn := 0; chn < 2; chn++ {
		for i := range chunk {
			m.tmp[i] = chunk[i][chn]
		}
		vek32.Abs_Into(m.tmp2, m.tmp)
		if p := vek32.Max(m.tmp2); p > m.peak {
			m.peak = p
		}
		for k := range kWeighting {
			m.states[chn][k].filter(m.tmp, kWeighting[k])
		}
		squares := vek32.Mul_Into(m.tmp2, m.tmp, m.tmp)
		total += vek32.Mean(squares)
	}
	m.window[m.blocks%len(m.window)] = total
	m.blocks++
	if m.blocks >= len(m.window) && len(m.powers) < maxMeterBlocks {
		m.powers = append(m.powers, vek32.Mean(m.window[:]))
	}
}

// Loudness returns the measurement so far. Less than 400 ms of audio, or only
// silence, gives SilenceDecibels.
func (m *Meter) Loudness() doodlejam.Loudness {
	ret := doodlejam.Loudness{Integrated: SilenceDecibels, Peak: SilenceDecibels}
	if m.peak > 0 {
		ret.Peak = float32(20 * math.Log10(float64(m.peak)))
	}
	if len(m.powers) == 0 {
		return ret
	}
	setSliceLength(&m.tmp, len(m.powers))
	setSliceLength(&m.tmp2, len(m.powers))
	setSliceLength(&m.tmpbool, len(m.powers))
	gated := vek32.Select_Into(m.tmp, m.powers, vek32.GtNumber_Into(m.tmpbool, m.powers, loudness2power(absoluteGate)))
	if len(gated) == 0 {
		return ret
	}
	relative := vek32.Mean(gated) / 10 // 10 dB below the absolute-gated mean
	gated = vek32.Select_Into(m.tmp2, gated, vek32.GtNumber_Into(m.tmpbool, gated, relative))
	if len(gated) == 0 {
		return ret
	}
	ret.Integrated = power2loudness(vek32.Mean(gated))
	return ret
}

// Reset forgets everything measured so far.
func (m *Meter) Reset() {
	*m = Meter{tmp: m.tmp, tmp2: m.tmp2, tmpbool: m.tmpbool, pending: m.pending[:0], powers: m.powers[:0]}
}

func power2loudness(power float32) float32 {
	if power <= 0 {
		return SilenceDecibels
	}
	return max(float32(10*math.Log10(float64(power)))+kWeightOffset, SilenceDecibels)
}

func loudness2power(loudness float32) float32 {
	return float32(math.Pow(10, (float64(loudness)-kWeightOffset)/10))
}

func (state *biquadState) filter(buffer []float32, coeff biquadCoeff) {
	s := *state
	for i := 0; i < len(buffer); i++ {
		x := buffer[i]
		y := coeff.b0*x + coeff.b1*s.x1 + coeff.b2*s.x2 - coeff.a1*s.y1 - coeff.a2*s.y2
		s.x2, s.x1 = s.x1, x
		s.y2, s.y1 = s.y1, y
		buffer[i] = y
	}
	*state = s
}

func setSliceLength[T any](slice *[]T, length int) {
	if len(*slice) < length {
		*slice = append(*slice, make([]T, length-len(*slice))...)
	}
	*slice = (*slice)[:length]
}
