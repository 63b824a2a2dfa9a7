// Package config holds the settings of the doodlejam binaries: a YAML file
// on top of the defaults, then DOODLEJAM_* environment variables on top of
// the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/doodlejam/doodlejam"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Instrument string                 `yaml:"instrument"`
	ZonesFile  string                 `yaml:"zones_file,omitempty"` // overrides the instrument preset
	Mix        doodlejam.MixingPreset `yaml:"mix"`
	Audio      AudioConfig            `yaml:"audio"`
	Session    SessionConfig          `yaml:"session"`
	Detector   DetectorConfig         `yaml:"detector"`
	Recording  RecordingConfig        `yaml:"recording"`
	Log        LogConfig              `yaml:"log"`
	SentryDSN  string                 `yaml:"sentry_dsn,omitempty"`
}

type AudioConfig struct {
	Output        string `yaml:"output"` // device or none
	AutoReleaseMS int    `yaml:"auto_release_ms"`
}

type SessionConfig struct {
	FPS          int `yaml:"fps"`
	DebounceMS   int `yaml:"debounce_ms"`
	FlushDelayMS int `yaml:"flush_delay_ms"`
	// DurationS ends the session automatically; 0 runs until interrupted.
	DurationS int `yaml:"duration_s"`
}

type DetectorConfig struct {
	Kind string `yaml:"kind"` // scripted or python
	// Script is the landmark script of the scripted detector; empty plays
	// the built-in demo.
	Script  string   `yaml:"script,omitempty"`
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

type RecordingConfig struct {
	OutputDir string `yaml:"output_dir"`
	SMF       bool   `yaml:"smf"`
	EventLog  bool   `yaml:"event_log"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

const (
	OutputDevice = "device"
	OutputNone   = "none"

	DetectorScripted = "scripted"
	DetectorPython   = "python"
)

const envPrefix = "DOODLEJAM_"

var ErrInvalid = errors.New("invalid configuration")

func Default() Config {
	return Config{
		Instrument: "piano",
		Mix:        doodlejam.DefaultMixingPreset(),
		Audio:      AudioConfig{Output: OutputDevice, AutoReleaseMS: 600},
		Session:    SessionConfig{FPS: 60, DebounceMS: 15, FlushDelayMS: 300},
		Detector:   DetectorConfig{Kind: DetectorScripted},
		Recording:  RecordingConfig{OutputDir: ".", EventLog: true},
		Log:        LogConfig{Level: "info"},
	}
}

// Load reads the file at path over the defaults, applies the environment
// and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from DOODLEJAM_* variables. SENTRY_DSN is also
// accepted without the prefix.
func (c *Config) ApplyEnv() error {
	c.Instrument = getEnv("INSTRUMENT", c.Instrument)
	c.ZonesFile = getEnv("ZONES_FILE", c.ZonesFile)
	c.Audio.Output = getEnv("AUDIO_OUTPUT", c.Audio.Output)
	c.Detector.Kind = getEnv("DETECTOR", c.Detector.Kind)
	c.Detector.Script = getEnv("DETECTOR_SCRIPT", c.Detector.Script)
	c.Detector.Command = getEnv("DETECTOR_COMMAND", c.Detector.Command)
	if args := os.Getenv(envPrefix + "DETECTOR_ARGS"); args != "" {
		c.Detector.Args = strings.Fields(args)
	}
	c.Recording.OutputDir = getEnv("OUTPUT_DIR", c.Recording.OutputDir)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
	c.SentryDSN = getEnv("SENTRY_DSN", os.Getenv("SENTRY_DSN"), c.SentryDSN)
	for key, dst := range map[string]*int{
		"FPS":             &c.Session.FPS,
		"DEBOUNCE_MS":     &c.Session.DebounceMS,
		"FLUSH_DELAY_MS":  &c.Session.FlushDelayMS,
		"DURATION_S":      &c.Session.DurationS,
		"AUTO_RELEASE_MS": &c.Audio.AutoReleaseMS,
	} {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q is not an integer", ErrInvalid, envPrefix, key, v)
			}
			*dst = n
		}
	}
	return nil
}

// getEnv returns the first non-empty of the prefixed variable and the
// fallbacks.
func getEnv(key string, fallbacks ...string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	for _, f := range fallbacks {
		if f != "" {
			return f
		}
	}
	return ""
}

func (c *Config) Validate() error {
	var errs []error
	if c.Instrument == "" && c.ZonesFile == "" {
		errs = append(errs, errors.New("either instrument or zones_file must be set"))
	}
	if c.Audio.Output != OutputDevice && c.Audio.Output != OutputNone {
		errs = append(errs, fmt.Errorf("audio.output must be %q or %q, got %q", OutputDevice, OutputNone, c.Audio.Output))
	}
	if c.Audio.AutoReleaseMS <= 0 {
		errs = append(errs, errors.New("audio.auto_release_ms must be positive"))
	}
	if c.Session.FPS <= 0 || c.Session.FPS > 240 {
		errs = append(errs, fmt.Errorf("session.fps must be in 1..240, got %d", c.Session.FPS))
	}
	if c.Session.DebounceMS < 0 || c.Session.FlushDelayMS < 0 || c.Session.DurationS < 0 {
		errs = append(errs, errors.New("session durations cannot be negative"))
	}
	switch c.Detector.Kind {
	case DetectorScripted:
	case DetectorPython:
		if c.Detector.Command == "" {
			errs = append(errs, errors.New("detector.command is required for the python detector"))
		}
	default:
		errs = append(errs, fmt.Errorf("detector.kind must be %q or %q, got %q", DetectorScripted, DetectorPython, c.Detector.Kind))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

func (s SessionConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(s.FPS)
}

func (s SessionConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

func (s SessionConfig) FlushDelay() time.Duration {
	return time.Duration(s.FlushDelayMS) * time.Millisecond
}

func (s SessionConfig) Duration() time.Duration {
	return time.Duration(s.DurationS) * time.Second
}

func (a AudioConfig) AutoRelease() time.Duration {
	return time.Duration(a.AutoReleaseMS) * time.Millisecond
}
