package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/advisor"
	"github.com/doodlejam/doodlejam/clock"
	"github.com/doodlejam/doodlejam/cmd"
	"github.com/doodlejam/doodlejam/config"
	"github.com/doodlejam/doodlejam/engine"
	"github.com/doodlejam/doodlejam/feedback"
	"github.com/doodlejam/doodlejam/landmark"
	"github.com/doodlejam/doodlejam/oto"
	"github.com/doodlejam/doodlejam/recording"
	"github.com/doodlejam/doodlejam/report"
	"github.com/doodlejam/doodlejam/session"
	"github.com/doodlejam/doodlejam/tui"
	"github.com/doodlejam/doodlejam/version"
	"github.com/doodlejam/doodlejam/zones"
)

const (
	demoDwell = 350 * time.Millisecond
	demoGap   = 150 * time.Millisecond
	// demoTail keeps a demo running after the script ends, for the release
	// and reverb to be recorded.
	demoTail = time.Second
)

var (
	configPath     = flag.String("config", "", "YAML configuration file. Environment variables DOODLEJAM_* override it.")
	instrumentFlag = flag.String("i", "", "Instrument preset to play; overrides the configuration.")
	noTUI          = flag.Bool("no-tui", false, "Do not show the terminal overlay; log to stderr instead.")
	versionFlag    = flag.Bool("v", false, "Print version.")
)

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *instrumentFlag != "" {
		cfg.Instrument = *instrumentFlag
	}
	logger, logCloser, err := cmd.NewLogger(cfg, !*noTUI)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)
	flush := cmd.InitSentry(cfg.SentryDSN, version.VersionOrHash, logger)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zs, err := loadZones(cfg)
	if err != nil {
		cmd.Report(logger, "could not load hit zones", err)
		return err
	}
	detector, length, closeDetector, err := newDetector(ctx, cfg, zs, logger)
	if err != nil {
		cmd.Report(logger, "could not start detector", err)
		return err
	}
	defer closeDetector()

	opener, pumpCancel := newOpener(cfg)
	defer pumpCancel()
	eng, err := cmd.NewEngine(cfg, cmd.Synthers[0], opener, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	frames := make(chan session.FrameView, 1)
	sess, err := session.New(session.Options{
		Engine:   eng,
		Source:   landmark.NewSynthetic(640, 480),
		Detector: detector,
		Zones:    zs,
		Recorder: recording.NewRecorder(clock.Real(),
			recording.WithFlushDelay(cfg.Session.FlushDelay()),
			recording.WithLogger(logger)),
		Animator: func() session.Animator { return session.Ticker(cfg.Session.FPS) },
		Feedback: feedback.NewField(time.Now().UnixNano()),
		Debounce: cfg.Session.Debounce(),
		Logger:   logger,
		OnFrame:  func(v session.FrameView) { engine.TrySend(frames, v) },
	})
	if err != nil {
		return err
	}
	if err := sess.Start(ctx); err != nil {
		cmd.Report(logger, "could not start session", err)
		return err
	}

	limit := cfg.Session.Duration()
	if limit == 0 && length > 0 {
		limit = length + demoTail
	}
	if *noTUI {
		waitUntil(ctx, limit)
	} else {
		p := tea.NewProgram(tui.NewModel(cfg.Instrument, zs, frames, nil), tea.WithAltScreen())
		go func() {
			waitUntil(ctx, limit)
			p.Send(tui.DoneMsg{})
		}()
		if _, err := p.Run(); err != nil {
			logger.Error("terminal overlay failed", "error", err)
		}
	}

	res, err := sess.Finish(context.Background())
	if err != nil {
		cmd.Report(logger, "could not finish session", err)
	}
	return writeTake(cfg, res, logger)
}

func loadZones(cfg config.Config) (doodlejam.Zones, error) {
	if cfg.ZonesFile == "" {
		return zones.Preset(cfg.Instrument)
	}
	f, err := os.Open(cfg.ZonesFile)
	if err != nil {
		return nil, fmt.Errorf("could not open zones file: %w", err)
	}
	defer f.Close()
	return zones.Read(f)
}

// newDetector returns the configured detector and, for scripted runs, the
// length of the script.
func newDetector(ctx context.Context, cfg config.Config, zs doodlejam.Zones, logger *slog.Logger) (landmark.Detector, time.Duration, func(), error) {
	switch cfg.Detector.Kind {
	case config.DetectorPython:
		py, err := landmark.StartPython(ctx, landmark.PythonConfig{
			Command: cfg.Detector.Command,
			Args:    cfg.Detector.Args,
			Logger:  logger,
		})
		if err != nil {
			return nil, 0, nil, err
		}
		closer := func() {
			if err := py.Close(); err != nil {
				logger.Warn("closing detector", "error", err)
			}
		}
		return landmark.WithROI(py, logger), 0, closer, nil
	default:
		var det *landmark.ScriptedDetector
		if cfg.Detector.Script == "" {
			det = landmark.Tour(zs, demoDwell, demoGap)
		} else {
			f, err := os.Open(cfg.Detector.Script)
			if err != nil {
				return nil, 0, nil, fmt.Errorf("could not open landmark script: %w", err)
			}
			det, err = landmark.ReadScript(f)
			f.Close()
			if err != nil {
				return nil, 0, nil, err
			}
		}
		return det, time.Duration(det.Length() * float64(time.Millisecond)), func() {}, nil
	}
}

// newOpener opens the audio device, or with no output a manual context
// pumped in real time so that takes still get recorded.
func newOpener(cfg config.Config) (engine.AudioOpener, context.CancelFunc) {
	if cfg.Audio.Output == config.OutputDevice {
		return func() (doodlejam.AudioContext, error) {
			c, err := oto.NewContext()
			if err != nil {
				return nil, err
			}
			return c, nil
		}, func() {}
	}
	mc := &engine.ManualContext{}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		const period = 10 * time.Millisecond
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := mc.Pump(doodlejam.FramesForMillis(float64(period / time.Millisecond))); err != nil && !errors.Is(err, engine.ErrNotPlaying) {
					return
				}
			}
		}
	}()
	return engine.ManualOpener(mc), cancel
}

func waitUntil(ctx context.Context, limit time.Duration) {
	if limit <= 0 {
		<-ctx.Done()
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(limit):
	}
}

func writeTake(cfg config.Config, res session.Result, logger *slog.Logger) error {
	reporter, err := report.New()
	if err != nil {
		return err
	}
	var advice *advisor.Advice
	if log := res.Stats.EventLog; len(log) > 0 {
		a, err := advisor.Static{}.GenerateMixSettings(context.Background(), log, cfg.Instrument)
		if err != nil {
			logger.Warn("no mix advice", "error", err)
		} else {
			advice = &a
		}
	}
	recap := report.NewRecap(cfg.Instrument, res.Stats, res.Recording, advice)
	text, err := reporter.String(recap)
	if err != nil {
		return err
	}
	fmt.Print(text)
	if res.Recording == nil {
		return nil
	}
	out := cmd.Output{Dir: cfg.Recording.OutputDir, Stem: cmd.TakeStem(time.Now())}
	var paths []string
	write := func(path string, err error) error {
		if err == nil {
			paths = append(paths, path)
		}
		return err
	}
	if err := write(out.Write(".wav", res.Recording.Audio)); err != nil {
		return err
	}
	if cfg.Recording.EventLog {
		if err := write(out.WriteWith(".yml", func(w io.Writer) error {
			return recording.WriteEventLog(w, res.Recording.EventLog)
		})); err != nil {
			return err
		}
	}
	if cfg.Recording.SMF {
		if err := write(out.WriteWith(".mid", func(w io.Writer) error {
			return recording.WriteSMF(w, res.Recording.EventLog, recording.DefaultSMFOptions())
		})); err != nil {
			return err
		}
	}
	if err := write(out.WriteWith(".md", func(w io.Writer) error {
		return reporter.Render(w, report.Markdown, recap)
	})); err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println("wrote", p)
	}
	return nil
}
