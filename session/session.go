// Package session drives a performance: it opens the frame source, warms up
// the audio engine, runs the frame loop that turns detected fingertips into
// notes while recording, and tears everything down when the performance is
// finished.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/clock"
	"github.com/doodlejam/doodlejam/engine"
	"github.com/doodlejam/doodlejam/feedback"
	"github.com/doodlejam/doodlejam/landmark"
	"github.com/doodlejam/doodlejam/recording"
	"github.com/doodlejam/doodlejam/resolver"
	"github.com/google/uuid"
)

type (
	// Engine is the part of the audio engine a session uses; *engine.Engine
	// implements it.
	Engine interface {
		doodlejam.Voices
		Init(ctx context.Context) error
		AttachRecorder(r *recording.Recorder)
	}

	Options struct {
		Engine   Engine
		Source   landmark.FrameSource
		Detector landmark.Detector
		Zones    doodlejam.Zones
		// Recorder defaults to a new recorder on Clock.
		Recorder *recording.Recorder
		// Animator is called on every Start; defaults to a 60 fps ticker.
		Animator func() Animator
		Clock    clock.Clock
		// Feedback receives a particle burst for every onset; nil disables
		// particles.
		Feedback *feedback.Field
		Debounce time.Duration
		Logger   *slog.Logger
		// OnFrame is called from the frame loop after every processed
		// frame. It must not block.
		OnFrame func(FrameView)
		// OnExit is called once per finished session.
		OnExit func(recording *doodlejam.RecordingResult, stats doodlejam.Stats)
	}

	// Session owns the frame loop of one performance at a time. Start and
	// Finish may be called again to perform again with the same zones.
	Session struct {
		opts  Options
		state atomic.Int32
		id    atomic.Value // string

		mu          sync.Mutex
		frameState  resolver.FrameState
		start       time.Time
		lastFrame   time.Duration
		seq         uint64
		noteCount   int
		unique      map[doodlejam.SoundID]struct{}
		detectErrs  int
		failedStart bool
		quit        chan struct{}
		done        chan struct{}
		animator    Animator
	}

	// Result is what Finish returns. Recording is nil when nothing was
	// recorded.
	Result struct {
		Recording *doodlejam.RecordingResult
		Stats     doodlejam.Stats
	}

	// FrameView is a read-only projection of a processed frame for drawing
	// zone highlights, fingertip markers and particles.
	FrameView struct {
		Seq        uint64
		Time       time.Duration
		Active     []doodlejam.SoundID
		Fingertips []doodlejam.Point
		Effects    []resolver.Effect
		Particles  []feedback.Particle
	}

	State int32
)

const (
	Idle State = iota
	AwaitingPermission
	WarmingUp
	Live
	Stopping
)

// loopStopTimeout bounds how long Finish waits for a frame still being
// detected.
const loopStopTimeout = 2 * time.Second

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotLive        = errors.New("session is not live")
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingPermission:
		return "awaiting permission"
	case WarmingUp:
		return "warming up"
	case Live:
		return "live"
	case Stopping:
		return "stopping"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

func New(opts Options) (*Session, error) {
	switch {
	case opts.Engine == nil:
		return nil, errors.New("session needs an audio engine")
	case opts.Source == nil:
		return nil, errors.New("session needs a frame source")
	case opts.Detector == nil:
		return nil, errors.New("session needs a detector")
	}
	if err := opts.Zones.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Animator == nil {
		opts.Animator = func() Animator { return Ticker(60) }
	}
	if opts.Debounce <= 0 {
		opts.Debounce = resolver.DefaultDebounce
	}
	if opts.Recorder == nil {
		opts.Recorder = recording.NewRecorder(opts.Clock, recording.WithLogger(opts.Logger))
	}
	opts.Zones = opts.Zones.Copy()
	s := &Session{opts: opts}
	s.id.Store(uuid.NewString())
	return s, nil
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// ID identifies the current, or last, performance of the session.
func (s *Session) ID() string {
	return s.id.Load().(string)
}

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.opts.Logger.Debug("session state", "id", s.ID(), "from", prev, "to", st)
	}
}

// Start opens the frame source, initializes the engine and goes live. On
// any failure the session returns to Idle and the error is returned.
func (s *Session) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Idle), int32(AwaitingPermission)) {
		return ErrAlreadyStarted
	}
	s.id.Store(uuid.NewString())
	fail := func(err error) error {
		s.mu.Lock()
		s.failedStart = true
		s.mu.Unlock()
		s.setState(Idle)
		s.opts.Logger.Error("session failed to start", "id", s.ID(), "error", err)
		return err
	}
	if err := s.opts.Source.Open(ctx); err != nil {
		return fail(fmt.Errorf("opening frame source: %w", err))
	}
	s.setState(WarmingUp)
	if err := s.opts.Engine.Init(ctx); err != nil {
		if cerr := s.opts.Source.Close(); cerr != nil {
			s.opts.Logger.Warn("closing frame source", "error", cerr)
		}
		return fail(fmt.Errorf("initializing audio engine: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameState = resolver.NewFrameState(s.opts.Debounce)
	s.start = s.opts.Clock.Now()
	s.lastFrame = 0
	s.seq = 0
	s.noteCount = 0
	s.unique = map[doodlejam.SoundID]struct{}{}
	s.detectErrs = 0
	s.failedStart = false
	s.opts.Engine.AttachRecorder(s.opts.Recorder)
	s.opts.Recorder.StartRecording()
	s.quit = make(chan struct{})
	s.done = make(chan struct{}, 1)
	s.animator = s.opts.Animator()
	s.setState(Live)
	go s.loop(s.animator, s.quit, s.done)
	s.opts.Logger.Info("session live", "id", s.ID(), "zones", len(s.opts.Zones))
	return nil
}

// Finish stops the frame loop, silences every voice, stops the recording
// (waiting for its flush delay) and closes the frame source. OnExit is
// called before Finish returns.
//
// Finish after a failed Start reports an empty session with a nil
// recording. Otherwise it returns ErrNotLive unless the session is live.
func (s *Session) Finish(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.State() != Live {
		failed := s.failedStart
		s.failedStart = false
		s.mu.Unlock()
		if failed && s.State() == Idle {
			res := Result{Stats: doodlejam.Stats{UniqueNotes: map[doodlejam.SoundID]struct{}{}}}
			s.exit(res)
			return res, nil
		}
		return Result{}, ErrNotLive
	}
	s.setState(Stopping)
	close(s.quit)
	done, anim := s.done, s.animator
	s.mu.Unlock()

	if _, ok := engine.TimeoutReceive[struct{}](done, loopStopTimeout); !ok {
		s.opts.Logger.Warn("frame loop did not stop in time", "id", s.ID())
	}
	anim.Stop()
	s.opts.Engine.StopAll()
	rec, err := s.opts.Recorder.StopRecording(ctx)
	s.opts.Engine.AttachRecorder(nil)
	if cerr := s.opts.Source.Close(); cerr != nil {
		s.opts.Logger.Warn("closing frame source", "error", cerr)
	}

	s.mu.Lock()
	stats := s.statsLocked()
	s.mu.Unlock()
	if rec != nil {
		stats.Duration = rec.Duration
		stats.EventLog = rec.EventLog
	}
	res := Result{Recording: rec, Stats: stats}
	s.setState(Idle)
	s.opts.Logger.Info("session finished", "id", s.ID(), "notes", stats.NoteCount, "unique", len(stats.UniqueNotes), "duration", stats.Duration)
	s.exit(res)
	if err != nil {
		return res, fmt.Errorf("stopping recording: %w", err)
	}
	return res, nil
}

func (s *Session) exit(res Result) {
	if s.opts.OnExit != nil {
		s.opts.OnExit(res.Recording, res.Stats)
	}
}

// Stats returns the numbers of the running, or last, performance.
func (s *Session) Stats() doodlejam.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Session) statsLocked() doodlejam.Stats {
	unique := make(map[doodlejam.SoundID]struct{}, len(s.unique))
	for k := range s.unique {
		unique[k] = struct{}{}
	}
	ret := doodlejam.Stats{
		NoteCount:   s.noteCount,
		UniqueNotes: unique,
		EventLog:    s.opts.Recorder.EventLog(),
	}
	if !s.start.IsZero() {
		ret.Duration = s.opts.Clock.Since(s.start).Seconds()
	}
	return ret
}

func (s *Session) loop(anim Animator, quit <-chan struct{}, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	frames := anim.Frames()
	for {
		select {
		case <-quit:
			return
		case _, ok := <-frames:
			if !ok {
				return
			}
			s.step()
		}
	}
}

// step processes one animation frame: detect, resolve, then act.
func (s *Session) step() {
	s.mu.Lock()
	now := s.opts.Clock.Since(s.start)
	s.mu.Unlock()
	var det landmark.Detection
	frame, fresh := s.opts.Source.Latest()
	if fresh {
		var err error
		det, err = s.opts.Detector.Detect(frame, float64(now)/float64(time.Millisecond))
		if err != nil {
			s.detectError(err)
			return
		}
	}

	s.mu.Lock()
	if s.State() != Live {
		// finished while detecting
		s.mu.Unlock()
		return
	}
	dt := now - s.lastFrame
	s.lastFrame = now
	var view FrameView
	if fresh {
		tips := landmark.Fingertips(det.Hands)
		next, effects := resolver.Step(s.frameState, tips, s.opts.Zones, now)
		s.frameState = next
		s.act(effects, tips)
		s.seq++
		view = FrameView{Seq: s.seq, Time: now, Active: next.Active, Fingertips: tips, Effects: effects}
	} else {
		view = FrameView{Seq: s.seq, Time: now, Active: s.frameState.Active}
	}
	if fb := s.opts.Feedback; fb != nil {
		fb.Step(dt)
		view.Particles = fb.Particles()
	}
	s.mu.Unlock()
	if s.opts.OnFrame != nil {
		s.opts.OnFrame(view)
	}
}

func (s *Session) act(effects []resolver.Effect, tips []doodlejam.Point) {
	for _, e := range effects {
		switch e.Kind {
		case resolver.Release:
			s.opts.Engine.StopNote(e.Sound)
		case resolver.Onset:
			if e.Sound.Sound().Family.OneShot() {
				s.opts.Engine.Play(e.Sound)
			} else {
				s.opts.Engine.StartNote(e.Sound)
			}
			s.noteCount++
			s.unique[e.Sound] = struct{}{}
			if s.opts.Feedback != nil {
				s.opts.Feedback.Spawn(s.touchPoint(e.Sound, tips), e.Sound)
			}
		}
	}
}

// touchPoint returns the first fingertip inside the zone of the sound, or
// the zone's center.
func (s *Session) touchPoint(id doodlejam.SoundID, tips []doodlejam.Point) doodlejam.Point {
	z, ok := s.opts.Zones.Find(id)
	if !ok {
		return doodlejam.Point{X: 0.5, Y: 0.5}
	}
	for _, p := range tips {
		if z.Contains(p) {
			return p
		}
	}
	return z.Center()
}

func (s *Session) detectError(err error) {
	s.mu.Lock()
	s.detectErrs++
	n := s.detectErrs
	s.mu.Unlock()
	if n == 1 || n%100 == 0 {
		s.opts.Logger.Warn("frame skipped, detection failed", "id", s.ID(), "error", err, "failures", n)
	}
}
