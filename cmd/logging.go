package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/doodlejam/doodlejam/config"
	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

// NewLogger builds the text logger of the binaries. When the log
// configuration names a file, or quiet is set because a terminal UI owns
// stdout, logs go to the file, or nowhere; otherwise to stderr. The
// returned closer closes the log file.
func NewLogger(cfg config.Config, quiet bool) (*slog.Logger, io.Closer, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	switch {
	case cfg.Log.File != "":
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open log file: %w", err)
		}
		w, closer = f, f
	case quiet:
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

// InitSentry enables error reporting when a DSN is configured. The returned
// function flushes pending reports and must be called before exiting.
func InitSentry(dsn, release string, logger *slog.Logger) func() {
	if dsn == "" {
		logger.Debug("sentry not configured")
		return func() {}
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:     dsn,
		Release: "doodlejam@" + release,
	}); err != nil {
		logger.Warn("failed to initialize sentry", "error", err)
		return func() {}
	}
	logger.Info("sentry initialized", "release", release)
	return func() { sentry.Flush(sentryFlushTimeout) }
}

// Report logs the error and sends it to sentry, if enabled.
func Report(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	sentry.CaptureException(err)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
