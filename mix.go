package doodlejam

// MixingPreset is the set of knobs of the master effects chain. Reverb and
// distortion are 0..1 amounts, the compression threshold is in dBFS and the
// three EQ bands are boosts (or cuts) in dB.
type MixingPreset struct {
	ReverbAmount         float64 `yaml:"reverbAmount" json:"reverbAmount"`
	CompressionThreshold float64 `yaml:"compressionThreshold" json:"compressionThreshold"`
	BassBoost            float64 `yaml:"bassBoost" json:"bassBoost"`
	MidBoost             float64 `yaml:"midBoost" json:"midBoost"`
	TrebleBoost          float64 `yaml:"trebleBoost" json:"trebleBoost"`
	DistortionAmount     float64 `yaml:"distortionAmount" json:"distortionAmount"`
}

const (
	MinCompressionThreshold = -100.0
	MaxCompressionThreshold = 0.0
	MaxEQBoost              = 20.0
)

// DefaultMixingPreset is the mix used until a preset is applied.
func DefaultMixingPreset() MixingPreset {
	return MixingPreset{
		ReverbAmount:         0.25,
		CompressionThreshold: -18,
		DistortionAmount:     0,
	}
}

// Clamp returns the preset limited to the ranges the master chain accepts.
// Reverb and distortion amounts above 1 are read as percentages.
func (p MixingPreset) Clamp() MixingPreset {
	return MixingPreset{
		ReverbAmount:         clampAmount(p.ReverbAmount),
		CompressionThreshold: clampFloat(p.CompressionThreshold, MinCompressionThreshold, MaxCompressionThreshold),
		BassBoost:            clampFloat(p.BassBoost, -MaxEQBoost, MaxEQBoost),
		MidBoost:             clampFloat(p.MidBoost, -MaxEQBoost, MaxEQBoost),
		TrebleBoost:          clampFloat(p.TrebleBoost, -MaxEQBoost, MaxEQBoost),
		DistortionAmount:     clampAmount(p.DistortionAmount),
	}
}

func clampAmount(v float64) float64 {
	if v > 1 {
		v /= 100
	}
	return clampFloat(v, 0, 1)
}

func clampFloat(v, min, max float64) float64 {
	if v != v { // NaN
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
