// Package advisor holds the contracts of the collaborators that look at a
// drawing or a finished performance and suggest something: hit zones for a
// photographed instrument, a mix for a recording. Implementations usually
// call a remote model; Static is an offline one.
package advisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/doodlejam/doodlejam"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type (
	// Scanner finds the hit zones of a photographed drawing. The result is
	// raw: callers sanitise it before use.
	Scanner interface {
		ScanDrawing(ctx context.Context, instrument string, image []byte) ([]doodlejam.HitZone, error)
	}

	// MixAdvisor suggests a mix for a finished performance and may return a
	// reinterpreted, usually longer, event log to replay instead of the
	// original.
	MixAdvisor interface {
		GenerateMixSettings(ctx context.Context, log doodlejam.EventLog, instrument string) (Advice, error)
	}

	Advice struct {
		Mix              doodlejam.MixingPreset `json:"mix" yaml:"mix"`
		Genre            string                 `json:"genre" yaml:"genre"`
		TrackTitle       string                 `json:"trackTitle" yaml:"trackTitle"`
		ExtendedEventLog doodlejam.EventLog     `json:"extendedEventLog,omitempty" yaml:"extendedEventLog,omitempty"`
	}

	ScannerFunc    func(ctx context.Context, instrument string, image []byte) ([]doodlejam.HitZone, error)
	MixAdvisorFunc func(ctx context.Context, log doodlejam.EventLog, instrument string) (Advice, error)

	// Static answers without any model: zones come from a fixed table and
	// mixes from the instrument and the note density of the performance.
	Static struct {
		Zones map[string][]doodlejam.HitZone
	}

	genre struct {
		name string
		mix  doodlejam.MixingPreset
	}
)

var ErrEmptyImage = errors.New("empty drawing image")

// encoreGap is the pause between the original performance and its repeat in
// the extended log, in milliseconds.
const encoreGap = 500.0

var genres = map[string]genre{
	"drums":     {"Garage Rock", doodlejam.MixingPreset{ReverbAmount: 0.15, CompressionThreshold: -24, BassBoost: 4, MidBoost: 1, TrebleBoost: 2, DistortionAmount: 0.35}},
	"harp":      {"Dream Pop", doodlejam.MixingPreset{ReverbAmount: 0.55, CompressionThreshold: -16, TrebleBoost: 3}},
	"bass":      {"Funk", doodlejam.MixingPreset{ReverbAmount: 0.1, CompressionThreshold: -20, BassBoost: 6, MidBoost: -2, DistortionAmount: 0.1}},
	"pad":       {"Ambient", doodlejam.MixingPreset{ReverbAmount: 0.7, CompressionThreshold: -12, BassBoost: 2, TrebleBoost: -2}},
	"xylophone": {"Playground Pop", doodlejam.MixingPreset{ReverbAmount: 0.3, CompressionThreshold: -18, TrebleBoost: 4}},
	"piano":     {"Lo-Fi", doodlejam.MixingPreset{ReverbAmount: 0.35, CompressionThreshold: -18, TrebleBoost: -6, DistortionAmount: 0.15}},
}

func (f ScannerFunc) ScanDrawing(ctx context.Context, instrument string, image []byte) ([]doodlejam.HitZone, error) {
	return f(ctx, instrument, image)
}

func (f MixAdvisorFunc) GenerateMixSettings(ctx context.Context, log doodlejam.EventLog, instrument string) (Advice, error) {
	return f(ctx, log, instrument)
}

func (s Static) ScanDrawing(ctx context.Context, instrument string, image []byte) ([]doodlejam.HitZone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	zs := s.Zones[instrument]
	ret := make([]doodlejam.HitZone, len(zs))
	copy(ret, zs)
	return ret, nil
}

func (s Static) GenerateMixSettings(ctx context.Context, log doodlejam.EventLog, instrument string) (Advice, error) {
	if err := ctx.Err(); err != nil {
		return Advice{}, err
	}
	if err := log.Validate(); err != nil {
		return Advice{}, fmt.Errorf("cannot advise on event log: %w", err)
	}
	g, ok := genres[instrument]
	if !ok {
		g = genres["piano"]
	}
	mix := g.mix
	rate := NoteRate(log)
	if rate > 4 {
		// busy performance: drier and denser
		mix.ReverbAmount /= 2
		mix.CompressionThreshold -= 4
	}
	title := cases.Title(language.English).String(fmt.Sprintf("%s %s", mood(rate), instrument))
	return Advice{
		Mix:              mix.Clamp(),
		Genre:            g.name,
		TrackTitle:       title,
		ExtendedEventLog: encore(log),
	}, nil
}

// NoteRate returns the onsets per second of the log.
func NoteRate(log doodlejam.EventLog) float64 {
	if len(log) < 2 || log.Span() <= 0 {
		return float64(len(log))
	}
	return float64(len(log)) / (log.Span() / 1000)
}

func mood(rate float64) string {
	switch {
	case rate < 1:
		return "sleepy"
	case rate < 3:
		return "happy"
	default:
		return "wild"
	}
}

// encore plays the performance twice, the repeat starting encoreGap after
// the last onset.
func encore(log doodlejam.EventLog) doodlejam.EventLog {
	if len(log) == 0 {
		return nil
	}
	offset := log.Span() + encoreGap
	ret := make(doodlejam.EventLog, 0, 2*len(log))
	ret = append(ret, log...)
	for _, e := range log {
		ret = append(ret, doodlejam.PerformanceEvent{Timestamp: e.Timestamp + offset, Sound: e.Sound})
	}
	return ret
}
