package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/clock"
	"github.com/doodlejam/doodlejam/engine"
	"github.com/doodlejam/doodlejam/feedback"
	"github.com/doodlejam/doodlejam/landmark"
	"github.com/doodlejam/doodlejam/recording"
	"github.com/doodlejam/doodlejam/session"
	"github.com/doodlejam/doodlejam/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	mu      sync.Mutex
	initErr error
	calls   []string
	rec     *recording.Recorder
}

func (e *mockEngine) Init(context.Context) error { return e.initErr }

func (e *mockEngine) log(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, s)
}

func (e *mockEngine) StartNote(id doodlejam.SoundID) { e.log("start:" + string(id)) }
func (e *mockEngine) StopNote(id doodlejam.SoundID)  { e.log("stop:" + string(id)) }
func (e *mockEngine) Play(id doodlejam.SoundID)      { e.log("play:" + string(id)) }
func (e *mockEngine) StopAll()                       { e.log("stopall") }

func (e *mockEngine) AttachRecorder(r *recording.Recorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec = r
}

func (e *mockEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

type failingSource struct {
	openErr error
	closed  int
}

func (s *failingSource) Open(context.Context) error       { return s.openErr }
func (s *failingSource) Latest() (landmark.Frame, bool) { return landmark.Frame{}, false }
func (s *failingSource) Close() error                     { s.closed++; return nil }

type detectorFunc func(landmark.Frame, float64) (landmark.Detection, error)

func (f detectorFunc) Detect(frame landmark.Frame, ts float64) (landmark.Detection, error) {
	return f(frame, ts)
}

var testZones = doodlejam.Zones{
	{Sound: "c4", X: 0, Y: 0, Width: 50, Height: 50},
	{Sound: "drum:kick", X: 50, Y: 50, Width: 50, Height: 50},
}

// script touches c4, then moves to the kick, then lifts the finger.
func script() *landmark.ScriptedDetector {
	return landmark.NewScripted([]landmark.Keyframe{
		{At: 0, Touch: []doodlejam.Point{{X: 0.25, Y: 0.25}}},
		{At: 100, Touch: []doodlejam.Point{{X: 0.75, Y: 0.75}}},
		{At: 200},
	})
}

type harness struct {
	clk    *clock.Manual
	anim   *session.ManualAnimator
	frames chan session.FrameView
	exits  chan *doodlejam.RecordingResult
	opts   session.Options
}

func newHarness(eng session.Engine) *harness {
	h := &harness{
		clk:    clock.NewManual(time.Unix(1000, 0)),
		anim:   session.NewManualAnimator(),
		frames: make(chan session.FrameView, 16),
		exits:  make(chan *doodlejam.RecordingResult, 4),
	}
	h.opts = session.Options{
		Engine:   eng,
		Source:   landmark.NewSynthetic(64, 48),
		Detector: script(),
		Zones:    testZones,
		Clock:    h.clk,
		Recorder: recording.NewRecorder(h.clk, recording.WithFlushDelay(0)),
		Animator: func() session.Animator { return h.anim },
		OnFrame:  func(v session.FrameView) { h.frames <- v },
		OnExit: func(r *doodlejam.RecordingResult, _ doodlejam.Stats) {
			h.exits <- r
		},
	}
	return h
}

func (h *harness) frame(t *testing.T) session.FrameView {
	t.Helper()
	h.anim.Tick()
	select {
	case v := <-h.frames:
		return v
	case <-time.After(time.Second):
		t.Fatal("frame was not processed")
	}
	return session.FrameView{}
}

func TestLiveSession(t *testing.T) {
	eng := &mockEngine{}
	h := newHarness(eng)
	h.opts.Feedback = feedback.NewField(1)
	s, err := session.New(h.opts)
	require.NoError(t, err)
	assert.Equal(t, session.Idle, s.State())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, session.Live, s.State())
	assert.NotEmpty(t, s.ID())

	v := h.frame(t)
	assert.Equal(t, uint64(1), v.Seq)
	assert.Equal(t, []doodlejam.SoundID{"c4"}, v.Active)
	assert.NotEmpty(t, v.Fingertips)
	assert.NotEmpty(t, v.Particles, "an onset spawns particles")
	assert.Equal(t, []string{"start:c4"}, eng.Calls())

	h.clk.Advance(100 * time.Millisecond)
	v = h.frame(t)
	assert.Equal(t, []doodlejam.SoundID{"drum:kick"}, v.Active)
	assert.ElementsMatch(t, []string{"start:c4", "stop:c4", "play:drum:kick"}, eng.Calls(), "drums are one-shots")

	h.clk.Advance(100 * time.Millisecond)
	v = h.frame(t)
	assert.Empty(t, v.Active)
	assert.Len(t, eng.Calls(), 3, "one-shots are never released by the resolver")

	stats := s.Stats()
	assert.Equal(t, 2, stats.NoteCount)
	assert.Len(t, stats.UniqueNotes, 2)

	res, err := s.Finish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.Idle, s.State())
	require.NotNil(t, res.Recording)
	assert.InDelta(t, 0.2, res.Recording.Duration, 1e-9)
	assert.Equal(t, 2, res.Stats.NoteCount)
	assert.InDelta(t, 0.2, res.Stats.Duration, 1e-9)
	assert.Equal(t, "stopall", eng.Calls()[len(eng.Calls())-1])
	assert.Nil(t, eng.rec, "recorder is detached")

	require.Len(t, h.exits, 1)
	assert.Same(t, res.Recording, <-h.exits)

	assert.False(t, h.anim.TryTick(50*time.Millisecond), "frame loop has stopped")
	_, err = s.Finish(context.Background())
	assert.ErrorIs(t, err, session.ErrNotLive)
	assert.Empty(t, h.exits)
}

func TestStartTwice(t *testing.T) {
	h := newHarness(&mockEngine{})
	s, err := session.New(h.opts)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), session.ErrAlreadyStarted)
	_, err = s.Finish(context.Background())
	require.NoError(t, err)

	first := s.ID()
	require.NoError(t, s.Start(context.Background()), "a finished session can go live again")
	assert.NotEqual(t, first, s.ID())
	_, err = s.Finish(context.Background())
	require.NoError(t, err)
}

func TestPerformAgainWithCameraMailbox(t *testing.T) {
	eng := &mockEngine{}
	h := newHarness(eng)
	camera := landmark.NewMailbox()
	h.opts.Source = camera
	s, err := session.New(h.opts)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Start(context.Background()), "performance %d", i)
		camera.Publish(landmark.Frame{Width: 64, Height: 48})
		v := h.frame(t)
		assert.Equal(t, []doodlejam.SoundID{"c4"}, v.Active, "performance %d", i)
		res, err := s.Finish(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, res.Stats.NoteCount)
		<-h.exits
		assert.Equal(t, session.Idle, s.State())
	}
	camera.Publish(landmark.Frame{Width: 64, Height: 48})
	assert.Equal(t, landmark.MailboxStats{Published: 3, Dropped: 1}, camera.Stats(), "frames after Finish are dropped")
	assert.Equal(t, []string{"start:c4", "stopall", "start:c4", "stopall"}, eng.Calls())
}

func TestSourceFailure(t *testing.T) {
	eng := &mockEngine{}
	h := newHarness(eng)
	src := &failingSource{openErr: errors.New("camera permission denied")}
	h.opts.Source = src
	s, err := session.New(h.opts)
	require.NoError(t, err)

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, src.openErr)
	assert.Equal(t, session.Idle, s.State())
	assert.Nil(t, eng.rec, "recorder attached only once live")

	res, err := s.Finish(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Recording)
	assert.Zero(t, res.Stats.NoteCount)
	require.Len(t, h.exits, 1)
	assert.Nil(t, <-h.exits)

	_, err = s.Finish(context.Background())
	assert.ErrorIs(t, err, session.ErrNotLive)
}

func TestEngineInitFailure(t *testing.T) {
	eng := &mockEngine{initErr: errors.New("no audio device")}
	h := newHarness(eng)
	src := &failingSource{}
	h.opts.Source = src
	s, err := session.New(h.opts)
	require.NoError(t, err)

	err = s.Start(context.Background())
	assert.ErrorIs(t, err, eng.initErr)
	assert.Equal(t, session.Idle, s.State())
	assert.Equal(t, 1, src.closed, "source is released")
}

func TestDetectionErrorsSkipFrames(t *testing.T) {
	eng := &mockEngine{}
	h := newHarness(eng)
	h.opts.Detector = detectorFunc(func(landmark.Frame, float64) (landmark.Detection, error) {
		return landmark.Detection{}, errors.New("model crashed")
	})
	s, err := session.New(h.opts)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	// the second tick is only taken once the first frame is done
	h.anim.Tick()
	h.anim.Tick()
	assert.Empty(t, h.frames)
	assert.Empty(t, eng.Calls())
	assert.Equal(t, session.Live, s.State())

	_, err = s.Finish(context.Background())
	require.NoError(t, err)
}

func TestNewRequiresParts(t *testing.T) {
	h := newHarness(&mockEngine{})
	opts := h.opts
	opts.Engine = nil
	_, err := session.New(opts)
	assert.Error(t, err)

	opts = h.opts
	opts.Zones = doodlejam.Zones{{Sound: "", Width: 10, Height: 10}}
	_, err = session.New(opts)
	assert.Error(t, err)
}

func TestSessionRecordsThroughEngine(t *testing.T) {
	h := newHarness(nil)
	mc := &engine.ManualContext{}
	eng := engine.New(synth.GoSynther{}, engine.ManualOpener(mc), engine.WithClock(h.clk))
	t.Cleanup(func() { eng.Close() })
	h.opts.Engine = eng
	s, err := session.New(h.opts)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	h.frame(t)
	_, err = mc.Pump(512)
	require.NoError(t, err)
	h.clk.Advance(100 * time.Millisecond)
	h.frame(t)
	_, err = mc.Pump(512)
	require.NoError(t, err)

	res, err := s.Finish(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Recording)
	assert.Equal(t, doodlejam.EventLog{
		{Timestamp: 0, Sound: "c4"},
		{Timestamp: 100, Sound: "drum:kick"},
	}, res.Recording.EventLog)
	assert.Equal(t, res.Recording.EventLog, res.Stats.EventLog)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting permission", session.AwaitingPermission.String())
	assert.Equal(t, "State(9)", session.State(9).String())
}
