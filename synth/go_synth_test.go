package synth_test

import (
	"testing"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSynth(t *testing.T) *synth.GoSynth {
	t.Helper()
	s, err := synth.GoSynther{}.Synth(doodlejam.DefaultPalette)
	require.NoError(t, err)
	return s.(*synth.GoSynth)
}

func TestRenderWithoutNotesIsSilent(t *testing.T) {
	s := newSynth(t)
	buf, err := doodlejam.Render(s, 4096)
	require.NoError(t, err)
	assert.Equal(t, float32(0), buf.Peak())
}

func TestEveryFamilyMakesSound(t *testing.T) {
	for _, instr := range doodlejam.DefaultPalette {
		t.Run(instr.Family.String(), func(t *testing.T) {
			s := newSynth(t)
			start, _, ok := doodlejam.DefaultPalette.VoicesForFamily(instr.Family)
			require.True(t, ok)
			s.Trigger(start, instr.Family.DefaultNote())
			buf, err := doodlejam.Render(s, doodlejam.SampleRate/10)
			require.NoError(t, err)
			assert.Greater(t, buf.Peak(), float32(0.01))
		})
	}
}

func TestReleasedVoiceFadesOut(t *testing.T) {
	s := newSynth(t)
	start, _, _ := doodlejam.DefaultPalette.VoicesForFamily(doodlejam.FamilyMelodic)
	s.Trigger(start, 60)
	_, err := doodlejam.Render(s, doodlejam.SampleRate/2)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ActiveVoices())
	s.Release(start)
	_, err = doodlejam.Render(s, 2*doodlejam.SampleRate)
	require.NoError(t, err)
	assert.Equal(t, 0, s.ActiveVoices())
	tail, err := doodlejam.Render(s, 4096)
	require.NoError(t, err)
	assert.Less(t, tail.Peak(), float32(1e-3))
}

func TestOneShotDecaysWithoutRelease(t *testing.T) {
	s := newSynth(t)
	start, _, _ := doodlejam.DefaultPalette.VoicesForFamily(doodlejam.FamilyKick)
	s.Trigger(start, 36)
	_, err := doodlejam.Render(s, doodlejam.SampleRate)
	require.NoError(t, err)
	assert.Equal(t, 0, s.ActiveVoices())
}

func TestOutputNeverExceedsLimiterCeiling(t *testing.T) {
	s := newSynth(t)
	s.SetMix(doodlejam.MixingPreset{DistortionAmount: 1, BassBoost: 20, MidBoost: 20, TrebleBoost: 20})
	for v := 0; v < doodlejam.DefaultPalette.NumVoices(); v++ {
		s.Trigger(v, 48)
	}
	buf, err := doodlejam.Render(s, doodlejam.SampleRate/4)
	require.NoError(t, err)
	assert.LessOrEqual(t, buf.Peak(), float32(0.8912509))
	assert.Greater(t, buf.Peak(), float32(0.1))
}

func TestSetMixIsClamped(t *testing.T) {
	s := newSynth(t)
	s.SetMix(doodlejam.MixingPreset{ReverbAmount: 150, CompressionThreshold: 12, BassBoost: -40})
	mix := s.Mix()
	assert.Equal(t, 1.0, mix.ReverbAmount)
	assert.Equal(t, 0.0, mix.CompressionThreshold)
	assert.Equal(t, -20.0, mix.BassBoost)
}

func TestOutOfRangeVoicesAreIgnored(t *testing.T) {
	s := newSynth(t)
	s.Trigger(-1, 60)
	s.Trigger(1000, 60)
	s.Release(1000)
	assert.Equal(t, 0, s.ActiveVoices())
}

func TestInvalidPaletteIsRejected(t *testing.T) {
	_, err := synth.GoSynther{}.Synth(doodlejam.Palette{
		{Family: doodlejam.FamilyKick, NumVoices: 1},
		{Family: doodlejam.FamilyKick, NumVoices: 1},
	})
	assert.ErrorIs(t, err, doodlejam.ErrInvalidPalette)
}
