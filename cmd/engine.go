package cmd

import (
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/config"
	"github.com/doodlejam/doodlejam/engine"
)

// NewEngine builds the audio engine of a live performance with the
// configured auto-release and mix. The engine is not initialized yet; the
// session does that on Start. Error alerts from the audio thread are sent to
// Sentry.
func NewEngine(cfg config.Config, synther doodlejam.Synther, open engine.AudioOpener, logger *slog.Logger) (*engine.Engine, error) {
	eng := engine.New(synther, open,
		engine.WithAutoRelease(cfg.Audio.AutoRelease()),
		engine.WithLogger(logger),
		engine.WithAlertHandler(func(a engine.Alert) {
			if a.Priority == engine.Error {
				sentry.CaptureException(a)
			}
		}))
	if _, err := eng.ApplyMixingPreset(cfg.Mix); err != nil {
		eng.Close()
		return nil, err
	}
	return eng, nil
}
