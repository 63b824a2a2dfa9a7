package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/doodlejam/doodlejam"
)

// Output writes the files of one take next to each other: <Dir>/<Stem><ext>.
type Output struct {
	Dir  string
	Stem string
}

// TakeStem names a take recorded at t.
func TakeStem(t time.Time) string {
	return "doodlejam-" + t.Format("20060102-150405")
}

// Write writes the contents to the file with the given extension, creating
// the directory if needed, and returns its path.
func (o Output) Write(ext string, contents []byte) (string, error) {
	dir := o.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("could not create output directory %v: %w", dir, err)
	}
	path := filepath.Join(dir, o.Stem+ext)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return "", fmt.Errorf("could not write file %v: %w", path, err)
	}
	return path, nil
}

// WriteWith renders the file with f before writing it, so that a failing
// encoder leaves no partial file behind.
func (o Output) WriteWith(ext string, f func(w io.Writer) error) (string, error) {
	var buf bytes.Buffer
	if err := f(&buf); err != nil {
		return "", fmt.Errorf("could not encode %v file: %w", ext, err)
	}
	return o.Write(ext, buf.Bytes())
}

// PlayBuffer plays the buffer once on the audio context. The returned
// channel is closed when the whole buffer has been rendered.
func PlayBuffer(c doodlejam.AudioContext, buffer doodlejam.AudioBuffer) (doodlejam.CloserWaiter, <-chan struct{}) {
	render, done := BufferSource(buffer)
	return c.Play(render), done
}

// BufferSource returns a render callback reading through the buffer, and
// silence after it, and a channel closed once the end has been reached.
func BufferSource(buffer doodlejam.AudioBuffer) (func(buf doodlejam.AudioBuffer) error, <-chan struct{}) {
	done := make(chan struct{})
	pos := 0
	finished := len(buffer) == 0
	if finished {
		close(done)
	}
	return func(buf doodlejam.AudioBuffer) error {
		n := copy(buf, buffer[pos:])
		clear(buf[n:])
		pos += n
		if !finished && pos >= len(buffer) {
			finished = true
			close(done)
		}
		return nil
	}, done
}
