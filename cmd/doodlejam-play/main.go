package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/advisor"
	"github.com/doodlejam/doodlejam/cmd"
	"github.com/doodlejam/doodlejam/config"
	"github.com/doodlejam/doodlejam/engine"
	"github.com/doodlejam/doodlejam/oto"
	"github.com/doodlejam/doodlejam/recording"
	"github.com/doodlejam/doodlejam/report"
	"github.com/doodlejam/doodlejam/version"
)

func main() {
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. By default, files are placed next to the event log.")
	play := flag.Bool("p", false, "Play the event logs (default behaviour when no other output is defined).")
	wavOut := flag.Bool("w", false, "Output the rendered take as 16-bit .wav file.")
	midiOut := flag.Bool("m", false, "Output the event log as Standard MIDI File.")
	recapOut := flag.Bool("r", false, "Output a markdown recap of the take.")
	instrument := flag.String("i", "piano", "Instrument the take was played on; picks the mix and the recap labels.")
	advise := flag.Bool("a", false, "Mix the take with the instrument's suggested mix instead of the default mix.")
	encore := flag.Bool("e", false, "Render the take twice, as suggested by the mix advisor. Implies -a.")
	synthName := flag.String("synth", "", "Synth to render with.")
	tail := flag.Duration("tail", 2*time.Second, "Audio rendered after the last note.")
	logLevel := flag.String("log", "warn", "Log level: debug, info, warn or error.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*wavOut && !*midiOut && !*recapOut {
		*play = true
	}
	cfg := config.Default()
	cfg.Log.Level = *logLevel
	logger, logCloser, err := cmd.NewLogger(cfg, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logCloser.Close()
	synther, err := cmd.FindSynther(*synthName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	reporter, err := report.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var audioContext doodlejam.AudioContext
	if *play {
		audioContext, err = oto.NewContext()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
			os.Exit(1)
		}
	}
	process := func(filename string) error {
		f, err := os.Open(filename)
		if err != nil {
			return fmt.Errorf("could not open event log %v: %w", filename, err)
		}
		log, err := recording.ReadEventLog(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("could not read event log %v: %w", filename, err)
		}
		opts := engine.DefaultBounceOptions()
		opts.Tail = *tail
		var advice *advisor.Advice
		if *advise || *encore {
			a, err := advisor.Static{}.GenerateMixSettings(context.Background(), log, *instrument)
			if err != nil {
				return fmt.Errorf("could not get mix advice: %w", err)
			}
			advice = &a
			opts.Mix = a.Mix
			if *encore {
				log = a.ExtendedEventLog
			}
		}
		logger.Info("rendering take", "file", filename, "events", len(log), "synth", synther.Name())
		buffer, err := engine.Bounce(synther, log, opts)
		if err != nil {
			return fmt.Errorf("could not render %v: %w", filename, err)
		}
		dir := *directory
		if dir == "" {
			dir = filepath.Dir(filename)
		}
		out := cmd.Output{Dir: dir, Stem: strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))}
		if *wavOut {
			wav, err := buffer.Wav(true)
			if err != nil {
				return fmt.Errorf("could not generate .wav file: %w", err)
			}
			if _, err := out.Write(".wav", wav); err != nil {
				return err
			}
		}
		if *midiOut {
			if _, err := out.WriteWith(".mid", func(w io.Writer) error {
				return recording.WriteSMF(w, log, recording.DefaultSMFOptions())
			}); err != nil {
				return err
			}
		}
		if *recapOut {
			meter := recording.NewMeter()
			meter.Write(buffer)
			stats := doodlejam.Stats{
				NoteCount:   len(log),
				UniqueNotes: log.UniqueSounds(),
				Duration:    log.Span() / 1000,
				EventLog:    log,
			}
			recap := report.NewRecap(*instrument, stats, &doodlejam.RecordingResult{Loudness: meter.Loudness()}, advice)
			if _, err := out.WriteWith(".md", func(w io.Writer) error {
				return reporter.Render(w, report.Markdown, recap)
			}); err != nil {
				return err
			}
		}
		if *play {
			stream, done := cmd.PlayBuffer(audioContext, buffer)
			<-done
			if err := stream.Close(); err != nil {
				return fmt.Errorf("error playing: %w", err)
			}
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		files, err := filepath.Glob(param)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not glob the path %v: %v\n", param, err)
			retval = 1
			continue
		}
		for _, file := range files {
			if err := process(file); err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
				retval = 1
			}
		}
	}
	os.Exit(retval)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "doodlejam-play renders and plays recorded doodlejam takes.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
