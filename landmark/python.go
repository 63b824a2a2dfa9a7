package landmark

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type (
	// StreamDetector talks to a detector process over a pair of streams.
	// Every message is a 4-byte big-endian length followed by that many
	// bytes of msgpack. Requests and responses strictly alternate; a
	// transport or framing error breaks the stream for good.
	StreamDetector struct {
		mu     sync.Mutex
		r      io.Reader
		w      io.Writer
		seq    uint64
		broken error
	}

	// PythonDetector runs a detector worker as a subprocess and speaks the
	// StreamDetector protocol over its stdin and stdout. The worker's
	// stderr is forwarded to the logger.
	PythonDetector struct {
		*StreamDetector
		cmd       *exec.Cmd
		stdin     io.WriteCloser
		logger    *slog.Logger
		wg        sync.WaitGroup
		closeOnce sync.Once
		exited    chan struct{}
	}

	PythonConfig struct {
		// Command is the executable, usually a wrapper script activating
		// the worker's virtual environment.
		Command string
		Args    []string
		// StopTimeout is how long Close waits for the worker to exit after
		// closing its stdin before killing it.
		StopTimeout time.Duration
		Logger      *slog.Logger
	}

	// DetectRequest is the message sent for every frame.
	DetectRequest struct {
		Type        string  `msgpack:"type"`
		Seq         uint64  `msgpack:"seq"`
		TimestampMs float64 `msgpack:"timestamp_ms"`
		Width       int     `msgpack:"width"`
		Height      int     `msgpack:"height"`
		Frame       []byte  `msgpack:"frame"`
		ROI         *ROI    `msgpack:"roi,omitempty"`
	}

	// DetectResponse is the worker's answer to one DetectRequest. Code is
	// empty on success.
	DetectResponse struct {
		Seq   uint64 `msgpack:"seq"`
		Hands []Hand `msgpack:"hands"`
		Code  string `msgpack:"code,omitempty"`
		Error string `msgpack:"error,omitempty"`
	}
)

const (
	RequestDetect    = "detect"
	RequestDetectROI = "detect_roi"

	CodeROIUnsupported = "roi_unsupported"
	CodeFailed         = "failed"
)

// MaxMessageSize bounds a single framed message.
const MaxMessageSize = 64 << 20

// WriteMessage marshals v with msgpack and writes it with its length prefix.
func WriteMessage(w io.Writer, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal msgpack message: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds the %d byte limit", len(data), MaxMessageSize)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write msgpack data: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed message and unmarshals it into v.
func ReadMessage(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return fmt.Errorf("failed to read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds the %d byte limit", n, MaxMessageSize)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("failed to read msgpack data: %w", err)
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal msgpack message: %w", err)
	}
	return nil
}

func NewStreamDetector(r io.Reader, w io.Writer) *StreamDetector {
	return &StreamDetector{r: r, w: w}
}

func (d *StreamDetector) Detect(frame Frame, timestampMs float64) (Detection, error) {
	return d.call(DetectRequest{Type: RequestDetect, TimestampMs: timestampMs, Width: frame.Width, Height: frame.Height, Frame: frame.Data})
}

func (d *StreamDetector) DetectROI(frame Frame, timestampMs float64, roi ROI) (Detection, error) {
	return d.call(DetectRequest{Type: RequestDetectROI, TimestampMs: timestampMs, Width: frame.Width, Height: frame.Height, Frame: frame.Data, ROI: &roi})
}

func (d *StreamDetector) call(req DetectRequest) (Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.broken != nil {
		return Detection{}, d.broken
	}
	d.seq++
	req.Seq = d.seq
	if err := WriteMessage(d.w, &req); err != nil {
		return Detection{}, d.breakWith(err)
	}
	var resp DetectResponse
	if err := ReadMessage(d.r, &resp); err != nil {
		return Detection{}, d.breakWith(err)
	}
	if resp.Seq != req.Seq {
		return Detection{}, d.breakWith(fmt.Errorf("response for request %d, expected %d", resp.Seq, req.Seq))
	}
	switch resp.Code {
	case "":
		return Detection{Hands: resp.Hands}, nil
	case CodeROIUnsupported:
		return Detection{}, ErrROIUnsupported
	default:
		return Detection{}, fmt.Errorf("detector failed (%s): %s", resp.Code, resp.Error)
	}
}

func (d *StreamDetector) breakWith(err error) error {
	d.broken = fmt.Errorf("%w: %v", ErrDetectorClosed, err)
	return d.broken
}

// StartPython spawns the worker. The worker is killed when ctx is done.
func StartPython(ctx context.Context, cfg PythonConfig) (*PythonDetector, error) {
	if cfg.Command == "" {
		return nil, errors.New("python detector: no command configured")
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start python process: %w", err)
	}
	cfg.Logger.Info("python detector spawned", "command", cfg.Command, "pid", cmd.Process.Pid)
	p := &PythonDetector{
		StreamDetector: NewStreamDetector(bufio.NewReader(stdout), stdin),
		cmd:            cmd,
		stdin:          stdin,
		logger:         cfg.Logger,
		exited:         make(chan struct{}),
	}
	p.wg.Add(1)
	go p.logStderr(stderr)
	go p.waitProcess(ctx)
	go func() {
		<-p.exited
		p.closeWithTimeout(cfg.StopTimeout)
	}()
	return p, nil
}

// Close closes the worker's stdin, waits for it to exit and kills it if it
// does not. Detect calls after Close return ErrDetectorClosed.
func (p *PythonDetector) Close() error {
	p.closeWithTimeout(2 * time.Second)
	return nil
}

func (p *PythonDetector) closeWithTimeout(timeout time.Duration) {
	p.closeOnce.Do(func() {
		p.stdin.Close()
		select {
		case <-p.exited:
		case <-time.After(timeout):
			p.logger.Warn("python detector stop timeout, killing process", "pid", p.cmd.Process.Pid)
			if err := p.cmd.Process.Kill(); err != nil {
				p.logger.Error("failed to kill python process", "error", err)
			}
			<-p.exited
		}
		p.wg.Wait()
		p.StreamDetector.mu.Lock()
		if p.StreamDetector.broken == nil {
			p.StreamDetector.broken = ErrDetectorClosed
		}
		p.StreamDetector.mu.Unlock()
	})
}

func (p *PythonDetector) logStderr(r io.Reader) {
	defer p.wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]") || strings.Contains(line, "[CRITICAL]"):
			p.logger.Error("python detector error", "log", line)
		case strings.Contains(line, "[WARNING]") || strings.Contains(line, "[WARN]"):
			p.logger.Warn("python detector warning", "log", line)
		default:
			p.logger.Debug("python detector log", "log", line)
		}
	}
}

func (p *PythonDetector) waitProcess(ctx context.Context) {
	err := p.cmd.Wait()
	switch {
	case err == nil:
		p.logger.Info("python detector exited cleanly", "pid", p.cmd.Process.Pid)
	case ctx.Err() != nil:
		p.logger.Debug("python detector exited (shutdown)", "pid", p.cmd.Process.Pid)
	default:
		p.logger.Error("python detector exited unexpectedly", "pid", p.cmd.Process.Pid, "error", err)
	}
	close(p.exited)
}
