package doodlejam_test

import (
	"math"
	"testing"

	"github.com/doodlejam/doodlejam"
	"github.com/stretchr/testify/assert"
)

func TestMixingPresetClamp(t *testing.T) {
	got := doodlejam.MixingPreset{
		ReverbAmount:         150,
		DistortionAmount:     -5,
		CompressionThreshold: -500,
		BassBoost:            25,
		MidBoost:             -30,
		TrebleBoost:          3,
	}.Clamp()
	assert.Equal(t, doodlejam.MixingPreset{
		ReverbAmount:         1,
		DistortionAmount:     0,
		CompressionThreshold: -100,
		BassBoost:            20,
		MidBoost:             -20,
		TrebleBoost:          3,
	}, got)
}

func TestMixingPresetPercentages(t *testing.T) {
	got := doodlejam.MixingPreset{ReverbAmount: 40, DistortionAmount: 0.3, CompressionThreshold: 6}.Clamp()
	assert.InDelta(t, 0.4, got.ReverbAmount, 1e-12)
	assert.Equal(t, 0.3, got.DistortionAmount)
	assert.Equal(t, 0.0, got.CompressionThreshold)
}

func TestMixingPresetNaN(t *testing.T) {
	got := doodlejam.MixingPreset{ReverbAmount: math.NaN(), BassBoost: math.NaN()}.Clamp()
	assert.Equal(t, 0.0, got.ReverbAmount)
	assert.Equal(t, -20.0, got.BassBoost)
}

func TestDefaultMixingPresetIsInRange(t *testing.T) {
	d := doodlejam.DefaultMixingPreset()
	assert.Equal(t, d, d.Clamp())
}
