package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/clock"
	"github.com/doodlejam/doodlejam/engine"
	"github.com/doodlejam/doodlejam/recording"
	"github.com/doodlejam/doodlejam/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSynth struct {
	mu        sync.Mutex
	frame     int
	events    []string
	renderErr error
	mix       doodlejam.MixingPreset
}

func (s *mockSynth) Render(buf doodlejam.AudioBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renderErr != nil {
		return s.renderErr
	}
	s.frame += len(buf)
	return nil
}

func (s *mockSynth) Trigger(voice int, note byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("%d:on:%d:%d", s.frame, voice, note))
}

func (s *mockSynth) Release(voice int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("%d:off:%d", s.frame, voice))
}

func (s *mockSynth) SetMix(mix doodlejam.MixingPreset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mix = mix
}

func (s *mockSynth) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

type countingSynther struct {
	calls int
	synth doodlejam.Synth
	err   error
}

func (s *countingSynther) Name() string { return "counting" }

func (s *countingSynther) Synth(p doodlejam.Palette) (doodlejam.Synth, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.synth != nil {
		return s.synth, nil
	}
	return synth.GoSynther{}.Synth(p)
}

// lastVoice is where a family's first note lands: among equally old free
// voices, the player takes the last one.
func lastVoice(f doodlejam.Family) int {
	_, end, _ := doodlejam.DefaultPalette.VoicesForFamily(f)
	return end - 1
}

func newEngine(t *testing.T, synther doodlejam.Synther, opts ...engine.Option) (*engine.Engine, *engine.ManualContext) {
	t.Helper()
	ctx := &engine.ManualContext{}
	e := engine.New(synther, engine.ManualOpener(ctx), opts...)
	t.Cleanup(func() { e.Close() })
	return e, ctx
}

func TestInitIsIdempotent(t *testing.T) {
	synther := &countingSynther{}
	e, audio := newEngine(t, synther)
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Init(context.Background()))
	}
	assert.Equal(t, 1, synther.calls)
	assert.Equal(t, 1, e.SynthCount())
	assert.True(t, e.Initialized())
	assert.True(t, audio.Playing())
}

func TestInitFailureCanBeRetried(t *testing.T) {
	synther := &countingSynther{}
	audio := &engine.ManualContext{}
	fail := true
	e := engine.New(synther, func() (doodlejam.AudioContext, error) {
		if fail {
			return nil, errors.New("no device")
		}
		return audio, nil
	})
	defer e.Close()
	err := e.Init(context.Background())
	require.Error(t, err)
	assert.False(t, e.Initialized())
	fail = false
	require.NoError(t, e.Init(context.Background()))
	assert.True(t, e.Initialized())
	assert.Equal(t, 2, synther.calls)
}

func TestSynthFailureIsReturned(t *testing.T) {
	synthErr := errors.New("broken")
	e, _ := newEngine(t, &countingSynther{err: synthErr})
	assert.ErrorIs(t, e.Init(context.Background()), synthErr)
	assert.False(t, e.Initialized())
}

func TestCallsBeforeInit(t *testing.T) {
	mock := &mockSynth{}
	e, _ := newEngine(t, &countingSynther{synth: mock})
	e.StartNote("c4")
	e.Play("kick")
	e.StopNote("c4")
	e.StopAll()
	require.NoError(t, e.Init(context.Background()))
	assert.Empty(t, mock.Events())
}

func TestMixingPresetBeforeInit(t *testing.T) {
	mock := &mockSynth{}
	e, audio := newEngine(t, &countingSynther{synth: mock})
	got, err := e.ApplyMixingPreset(doodlejam.MixingPreset{ReverbAmount: 0.4, DistortionAmount: -0.5, CompressionThreshold: -18, TrebleBoost: 2})
	require.NoError(t, err)
	want := doodlejam.MixingPreset{ReverbAmount: 0.4, DistortionAmount: 0, CompressionThreshold: -18, TrebleBoost: 2}
	assert.Equal(t, want, got)
	assert.Equal(t, want, e.Mix())
	require.NoError(t, e.Init(context.Background()))
	_, err = audio.Pump(16)
	require.NoError(t, err)
	mock.mu.Lock()
	assert.Equal(t, want, mock.mix, "kept preset reaches the synth on Init")
	mock.mu.Unlock()

	require.NoError(t, e.Close())
	_, err = e.ApplyMixingPreset(want)
	assert.ErrorIs(t, err, engine.ErrClosed)
}

func TestStartNoteSounds(t *testing.T) {
	e, audio := newEngine(t, &countingSynther{})
	require.NoError(t, e.Init(context.Background()))
	e.StartNote("piano_c4")
	buf, err := audio.Pump(doodlejam.SampleRate / 10)
	require.NoError(t, err)
	assert.Greater(t, buf.Peak(), float32(0.01))
}

func TestNoteRouting(t *testing.T) {
	mock := &mockSynth{}
	e, audio := newEngine(t, &countingSynther{synth: mock})
	require.NoError(t, e.Init(context.Background()))
	e.StartNote("harp:c4")
	e.StartNote("drum:kick")
	e.StartNote("bass_e2")
	e.StartNote("mystery")
	_, err := audio.Pump(64)
	require.NoError(t, err)
	pluck := lastVoice(doodlejam.FamilyPluck)
	kick := lastVoice(doodlejam.FamilyKick)
	bass := lastVoice(doodlejam.FamilyBass)
	melodic := lastVoice(doodlejam.FamilyMelodic)
	assert.Equal(t, []string{
		fmt.Sprintf("0:on:%d:60", pluck),
		fmt.Sprintf("0:on:%d:36", kick),
		fmt.Sprintf("0:on:%d:40", bass),
		fmt.Sprintf("0:on:%d:60", melodic),
	}, mock.Events())
}

func TestApplyMixingPresetClamps(t *testing.T) {
	mock := &mockSynth{}
	e, audio := newEngine(t, &countingSynther{synth: mock})
	require.NoError(t, e.Init(context.Background()))
	got, err := e.ApplyMixingPreset(doodlejam.MixingPreset{ReverbAmount: 150, DistortionAmount: -5, CompressionThreshold: -200, TrebleBoost: 30})
	require.NoError(t, err)
	want := doodlejam.MixingPreset{ReverbAmount: 1, DistortionAmount: 0, CompressionThreshold: -100, TrebleBoost: 20}
	assert.Equal(t, want, got)
	assert.Equal(t, want, e.Mix())
	_, err = audio.Pump(16)
	require.NoError(t, err)
	mock.mu.Lock()
	assert.Equal(t, want, mock.mix)
	mock.mu.Unlock()
}

func TestOnsetsAreLoggedToTheRecorder(t *testing.T) {
	c := clock.NewManual(time.Unix(0, 0))
	rec := recording.NewRecorder(c, recording.WithFlushDelay(0))
	e, _ := newEngine(t, &countingSynther{synth: &mockSynth{}}, engine.WithClock(c))
	require.NoError(t, e.Init(context.Background()))
	e.AttachRecorder(rec)
	e.StartNote("c4") // not recording yet
	rec.StartRecording()
	e.StartNote("e4")
	c.Advance(100 * time.Millisecond)
	e.Play("kick")
	e.StopNote("e4")
	res, err := rec.StopRecording(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doodlejam.EventLog{{Timestamp: 0, Sound: "e4"}, {Timestamp: 100, Sound: "kick"}}, res.EventLog)
}

func TestStopAllCancelsReplay(t *testing.T) {
	c := clock.NewManual(time.Unix(0, 0))
	mock := &mockSynth{}
	rec := recording.NewRecorder(c, recording.WithFlushDelay(0))
	e, audio := newEngine(t, &countingSynther{synth: mock}, engine.WithClock(c))
	require.NoError(t, e.Init(context.Background()))
	e.AttachRecorder(rec)
	rec.StartRecording()
	r := e.ReplayEventLog(doodlejam.EventLog{{Timestamp: 0, Sound: "c4"}, {Timestamp: 500, Sound: "e4"}})
	c.Advance(100 * time.Millisecond)
	e.StopAll()
	c.Advance(time.Second)
	<-r.Done()
	_, err := audio.Pump(16)
	require.NoError(t, err)
	melodic := lastVoice(doodlejam.FamilyMelodic)
	assert.Equal(t, []string{
		fmt.Sprintf("0:on:%d:60", melodic),
		fmt.Sprintf("0:off:%d", melodic),
	}, mock.Events())
	assert.Empty(t, rec.EventLog(), "replayed notes are not recorded")
}

func TestStopAllWhileReplaying(t *testing.T) {
	e, _ := newEngine(t, &countingSynther{synth: &mockSynth{}})
	require.NoError(t, e.Init(context.Background()))
	log := make(doodlejam.EventLog, 200)
	for i := range log {
		log[i] = doodlejam.PerformanceEvent{Timestamp: float64(i) / 20, Sound: "drum:kick"}
	}
	r := e.ReplayEventLog(log)
	time.Sleep(2 * time.Millisecond)
	stopped := make(chan struct{})
	go func() {
		e.StopAll()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("StopAll blocked by the replay")
	}
	<-r.Done()
}

func TestRecorderReceivesAudio(t *testing.T) {
	rec := recording.NewRecorder(clock.Real(), recording.WithFlushDelay(0))
	rec.StartRecording()
	e, audio := newEngine(t, &countingSynther{})
	require.NoError(t, e.Init(context.Background()))
	e.AttachRecorder(rec)
	e.Play("drum:snare")
	_, err := audio.Pump(1000)
	require.NoError(t, err)
	// the output tap runs on its own goroutine
	require.Eventually(t, func() bool { return rec.Frames() == 1000 }, time.Second, time.Millisecond)
	res, err := rec.StopRecording(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 44+1000*4, len(res.Audio))
}

func TestRenderErrorBecomesAlert(t *testing.T) {
	mock := &mockSynth{renderErr: errors.New("boom")}
	alerts := make(chan engine.Alert, 1)
	e, audio := newEngine(t, &countingSynther{synth: mock}, engine.WithAlertHandler(func(a engine.Alert) { alerts <- a }))
	require.NoError(t, e.Init(context.Background()))
	buf, err := audio.Pump(32)
	require.NoError(t, err, "render errors do not stop the audio thread")
	assert.Equal(t, float32(0), buf.Peak())
	a, ok := engine.TimeoutReceive(alerts, time.Second)
	require.True(t, ok)
	assert.Equal(t, engine.Error, a.Priority)
	assert.Contains(t, a.Message, "boom")
}

func TestClose(t *testing.T) {
	e, audio := newEngine(t, &countingSynther{})
	require.NoError(t, e.Init(context.Background()))
	require.NoError(t, e.Close())
	assert.False(t, audio.Playing())
	assert.ErrorIs(t, e.Init(context.Background()), engine.ErrClosed)
	assert.NoError(t, e.Close())
}
