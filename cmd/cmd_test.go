package cmd_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/clock"
	"github.com/doodlejam/doodlejam/cmd"
	"github.com/doodlejam/doodlejam/config"
	"github.com/doodlejam/doodlejam/engine"
	"github.com/doodlejam/doodlejam/landmark"
	"github.com/doodlejam/doodlejam/recording"
	"github.com/doodlejam/doodlejam/session"
	"github.com/doodlejam/doodlejam/synth"
	"github.com/doodlejam/doodlejam/zones"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "takes")
	out := cmd.Output{Dir: dir, Stem: cmd.TakeStem(time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC))}
	path, err := out.Write(".wav", []byte("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "doodlejam-20260314-150926.wav"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))

	_, err = out.WriteWith(".mid", func(w io.Writer) error {
		w.Write([]byte("partial"))
		return errors.New("encoder failed")
	})
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, out.Stem+".mid"))
	assert.True(t, os.IsNotExist(statErr), "no partial file")
}

func TestBufferSource(t *testing.T) {
	buffer := doodlejam.AudioBuffer{{1, 1}, {2, 2}, {3, 3}}
	render, done := cmd.BufferSource(buffer)
	buf := make(doodlejam.AudioBuffer, 2)
	require.NoError(t, render(buf))
	assert.Equal(t, doodlejam.AudioBuffer{{1, 1}, {2, 2}}, buf)
	select {
	case <-done:
		t.Fatal("done before the end")
	default:
	}
	require.NoError(t, render(buf))
	assert.Equal(t, doodlejam.AudioBuffer{{3, 3}, {0, 0}}, buf)
	<-done
	require.NoError(t, render(buf), "silence after the end")
	assert.Equal(t, doodlejam.AudioBuffer{{0, 0}, {0, 0}}, buf)

	_, done = cmd.BufferSource(nil)
	<-done
}

func TestFindSynther(t *testing.T) {
	s, err := cmd.FindSynther("")
	require.NoError(t, err)
	assert.Equal(t, "Go", s.Name())
	s, err = cmd.FindSynther("go")
	require.NoError(t, err)
	assert.Equal(t, "Go", s.Name())
	_, err = cmd.FindSynther("4klang")
	assert.Error(t, err)
}

func TestNewLoggerToFile(t *testing.T) {
	cfg := config.Default()
	cfg.Log.File = filepath.Join(t.TempDir(), "live.log")
	logger, closer, err := cmd.NewLogger(cfg, true)
	require.NoError(t, err)
	logger.Info("hello", "sound", "c4")
	require.NoError(t, closer.Close())
	data, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello sound=c4")

	cfg.Log.Level = "loud"
	_, _, err = cmd.NewLogger(cfg, false)
	assert.Error(t, err)
}

// mixSynther builds Go synths and remembers the last mix set on them.
type mixSynther struct {
	mu  sync.Mutex
	mix []doodlejam.MixingPreset
}

type mixSynth struct {
	doodlejam.Synth
	owner *mixSynther
}

func (s *mixSynther) Name() string { return "mix" }

func (s *mixSynther) Synth(p doodlejam.Palette) (doodlejam.Synth, error) {
	inner, err := synth.GoSynther{}.Synth(p)
	if err != nil {
		return nil, err
	}
	return &mixSynth{Synth: inner, owner: s}, nil
}

func (s *mixSynther) Mixes() []doodlejam.MixingPreset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]doodlejam.MixingPreset(nil), s.mix...)
}

func (s *mixSynth) SetMix(m doodlejam.MixingPreset) {
	s.owner.mu.Lock()
	s.owner.mix = append(s.owner.mix, m)
	s.owner.mu.Unlock()
	s.Synth.SetMix(m)
}

// TestLiveStartOrder builds the engine and the session in the order of the
// live binary: the configured mix is applied before the session starts
// and initializes the engine.
func TestLiveStartOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Mix = doodlejam.MixingPreset{ReverbAmount: 0.3, CompressionThreshold: -12, TrebleBoost: 4}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	synther := &mixSynther{}
	audio := &engine.ManualContext{}
	eng, err := cmd.NewEngine(cfg, synther, engine.ManualOpener(audio), logger)
	require.NoError(t, err)
	defer eng.Close()
	assert.Empty(t, synther.Mixes(), "no synth before the session starts")

	zs, err := zones.Preset(cfg.Instrument)
	require.NoError(t, err)
	sess, err := session.New(session.Options{
		Engine:   eng,
		Source:   landmark.NewSynthetic(640, 480),
		Detector: landmark.Tour(zs, 50*time.Millisecond, 10*time.Millisecond),
		Zones:    zs,
		Recorder: recording.NewRecorder(clock.Real(), recording.WithFlushDelay(0)),
		Logger:   logger,
	})
	require.NoError(t, err)
	require.NoError(t, sess.Start(context.Background()))
	assert.Equal(t, session.Live, sess.State())
	_, err = audio.Pump(64)
	require.NoError(t, err)
	assert.Equal(t, []doodlejam.MixingPreset{cfg.Mix.Clamp()}, synther.Mixes())
	assert.Equal(t, cfg.Mix.Clamp(), eng.Mix())
	_, err = sess.Finish(context.Background())
	require.NoError(t, err)
}
