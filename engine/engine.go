// Package engine is the audio voice engine: it turns sound ids into voices
// of a synth, runs the player on the audio thread and feeds the rendered
// audio to a recorder.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/clock"
	"github.com/doodlejam/doodlejam/recording"
)

type (
	// Engine is the entry point for playing sounds. It is explicitly
	// constructed and owned by its caller; nothing is shared between engines.
	// The methods are safe for concurrent use.
	Engine struct {
		synther     doodlejam.Synther
		open        AudioOpener
		palette     doodlejam.Palette
		autoRelease time.Duration
		clock       clock.Clock
		logger      *slog.Logger
		onAlert     func(Alert)

		mu          sync.Mutex
		initialized bool
		closed      bool
		synthCount  int
		broker      *Broker
		stream      doodlejam.CloserWaiter
		recorder    *recording.Recorder
		mix         doodlejam.MixingPreset
		replays     []*recording.Replay
		quit        chan struct{}
		pumps       sync.WaitGroup
	}

	// AudioOpener opens the audio output. It is called once, by Init.
	AudioOpener func() (doodlejam.AudioContext, error)

	Option func(*Engine)

	// voicesNoRecord plays through the engine without logging onsets; used
	// when replaying.
	voicesNoRecord struct{ e *Engine }
)

// DefaultAutoRelease is how long one-shot and replayed notes sound before
// they are released.
const DefaultAutoRelease = 600 * time.Millisecond

var ErrClosed = errors.New("audio engine is closed")

func WithPalette(p doodlejam.Palette) Option {
	return func(e *Engine) { e.palette = p }
}

func WithAutoRelease(d time.Duration) Option {
	return func(e *Engine) { e.autoRelease = d }
}

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithAlertHandler sets a function called, from the engine's alert goroutine,
// for every alert of the player.
func WithAlertHandler(f func(Alert)) Option {
	return func(e *Engine) { e.onAlert = f }
}

// ManualOpener returns an AudioOpener always opening the given context.
func ManualOpener(c *ManualContext) AudioOpener {
	return func() (doodlejam.AudioContext, error) { return c, nil }
}

func New(synther doodlejam.Synther, open AudioOpener, opts ...Option) *Engine {
	e := &Engine{
		synther:     synther,
		open:        open,
		palette:     doodlejam.DefaultPalette,
		autoRelease: DefaultAutoRelease,
		clock:       clock.Real(),
		logger:      slog.Default(),
		mix:         doodlejam.DefaultMixingPreset(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Init builds the synth, opens the audio output and starts rendering. It is
// idempotent: once initialized, later calls return nil without doing
// anything. On failure the engine stays uninitialized and Init may be
// retried.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.initialized {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.synthCount++
	synth, err := e.synther.Synth(e.palette)
	if err != nil {
		return fmt.Errorf("building %s synth: %w", e.synther.Name(), err)
	}
	synth.SetMix(e.mix)
	audioContext, err := e.open()
	if err != nil {
		return fmt.Errorf("opening audio output: %w", err)
	}
	broker := NewBroker()
	player := NewPlayer(broker, synth, e.palette, doodlejam.FramesForMillis(float64(e.autoRelease)/float64(time.Millisecond)))
	e.broker = broker
	e.quit = make(chan struct{})
	e.pumps.Add(2)
	go e.tapPump(broker, e.quit)
	go e.alertPump(broker, e.quit)
	e.stream = audioContext.Play(func(buf doodlejam.AudioBuffer) error {
		player.Process(buf)
		return nil
	})
	e.initialized = true
	e.logger.Info("audio engine initialized", "synth", e.synther.Name(), "voices", e.palette.NumVoices())
	return nil
}

// Initialized reports whether Init has succeeded.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// SynthCount returns how many times a synth has been built. It stays at one
// no matter how many times Init is called.
func (e *Engine) SynthCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.synthCount
}

// AttachRecorder makes the engine log the onsets it plays to r, and feed r
// with the rendered audio. nil detaches.
func (e *Engine) AttachRecorder(r *recording.Recorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder = r
}

// StartNote starts a sustained note. One-shot families are released
// automatically even when started with StartNote.
func (e *Engine) StartNote(id doodlejam.SoundID) {
	e.noteOn(id, false, true)
}

// StopNote releases a note started with StartNote.
func (e *Engine) StopNote(id doodlejam.SoundID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		e.logger.Debug("note dropped, engine not initialized", "sound", id)
		return
	}
	e.send(NoteOffMsg{ID: id})
}

// Play triggers a note that is released after the auto-release time.
func (e *Engine) Play(id doodlejam.SoundID) {
	e.noteOn(id, true, true)
}

func (e *Engine) noteOn(id doodlejam.SoundID, autoRelease, record bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		e.logger.Debug("note dropped, engine not initialized", "sound", id)
		return
	}
	sound := doodlejam.ParseSound(id)
	e.send(NoteOnMsg{ID: id, Sound: sound, AutoRelease: autoRelease || sound.Family.OneShot()})
	if record && e.recorder != nil {
		e.recorder.Append(id)
	}
}

func (e *Engine) send(msg any) {
	if !TrySend(e.broker.ToPlayer, msg) {
		e.logger.Warn("player message queue full, message dropped", "message", fmt.Sprintf("%T", msg))
	}
}

// ApplyMixingPreset clamps the preset, applies it to the master chain and
// returns the clamped values. Before Init the preset is kept and applied
// when the synth is created.
func (e *Engine) ApplyMixingPreset(p doodlejam.MixingPreset) (doodlejam.MixingPreset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return doodlejam.MixingPreset{}, ErrClosed
	}
	e.mix = p.Clamp()
	if e.initialized {
		e.send(MixMsg{Mix: e.mix})
	}
	e.logger.Debug("mixing preset applied", "mix", e.mix)
	return e.mix, nil
}

// Mix returns the master chain parameters last applied.
func (e *Engine) Mix() doodlejam.MixingPreset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mix
}

// StopAll cancels every pending replay and releases all voices.
func (e *Engine) StopAll() {
	e.cancelReplays()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		e.send(StopAllMsg{})
	}
}

// ReplayEventLog plays the log back through the engine, each event at its
// timestamp from now. Replayed notes are auto-released and are not logged to
// the attached recorder. StopAll cancels the replay.
func (e *Engine) ReplayEventLog(log doodlejam.EventLog) *recording.Replay {
	r := recording.NewReplay(e.clock, voicesNoRecord{e}, log)
	e.mu.Lock()
	defer e.mu.Unlock()
	live := e.replays[:0]
	for _, old := range e.replays {
		select {
		case <-old.Done():
		default:
			live = append(live, old)
		}
	}
	e.replays = append(live, r)
	return r
}

// cancelReplays cancels the pending replays. A replay plays its events
// holding its own lock, so it is cancelled without holding e.mu.
func (e *Engine) cancelReplays() {
	e.mu.Lock()
	replays := e.replays
	e.replays = nil
	e.mu.Unlock()
	for _, r := range replays {
		r.Cancel()
	}
}

// Close stops the audio output, the replays and the engine's goroutines. The
// engine cannot be used afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	wasInitialized := e.initialized
	e.initialized = false
	stream, quit := e.stream, e.quit
	e.mu.Unlock()
	e.cancelReplays()
	if !wasInitialized {
		return nil
	}
	// the pumps take the lock, so they are stopped without holding it
	err := stream.Close()
	stream.Wait()
	close(quit)
	e.pumps.Wait()
	e.logger.Info("audio engine closed")
	return err
}

// tapPump moves rendered audio from the player to the attached recorder.
func (e *Engine) tapPump(b *Broker, quit <-chan struct{}) {
	defer e.pumps.Done()
	for {
		select {
		case <-quit:
			return
		case buf := <-b.ToRecorder:
			e.mu.Lock()
			r := e.recorder
			e.mu.Unlock()
			if r != nil {
				r.WriteAudio(*buf)
			}
			b.PutAudioBuffer(buf)
		}
	}
}

func (e *Engine) alertPump(b *Broker, quit <-chan struct{}) {
	defer e.pumps.Done()
	for {
		select {
		case <-quit:
			return
		case a := <-b.ToEngine:
			level := slog.LevelInfo
			switch a.Priority {
			case Warning:
				level = slog.LevelWarn
			case Error:
				level = slog.LevelError
			}
			e.logger.Log(context.Background(), level, "audio alert", "name", a.Name, "message", a.Message)
			if e.onAlert != nil {
				e.onAlert(a)
			}
		}
	}
}

func (v voicesNoRecord) StartNote(id doodlejam.SoundID) { v.e.noteOn(id, false, false) }
func (v voicesNoRecord) StopNote(id doodlejam.SoundID)  { v.e.StopNote(id) }
func (v voicesNoRecord) Play(id doodlejam.SoundID)      { v.e.noteOn(id, true, false) }
func (v voicesNoRecord) StopAll()                       { v.e.StopAll() }
