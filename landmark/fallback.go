package landmark

import (
	"log/slog"
	"sync"
)

// Fallback detects hands in a region around the hands of the previous frame
// while the wrapped detector supports it. The first failure of the region
// path switches it off for good; that frame and all later ones use the
// unrestricted Detect.
type Fallback struct {
	mu     sync.Mutex
	det    ROIDetector
	margin float64
	logger *slog.Logger
	fallen bool
	last   []Hand
}

// DefaultROIMargin is the margin added around the previous hands, in
// normalized units.
const DefaultROIMargin = 0.15

func NewFallback(det ROIDetector, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{det: det, margin: DefaultROIMargin, logger: logger}
}

// WithROI wraps det in a Fallback if it supports regions of interest, and
// returns it unchanged otherwise.
func WithROI(det Detector, logger *slog.Logger) Detector {
	if r, ok := det.(ROIDetector); ok {
		return NewFallback(r, logger)
	}
	return det
}

func (f *Fallback) Detect(frame Frame, timestampMs float64) (Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.fallen {
		if roi, ok := Bounds(f.last, f.margin); ok {
			d, err := f.det.DetectROI(frame, timestampMs, roi)
			if err == nil {
				f.last = d.Hands
				return d, nil
			}
			f.fallen = true
			f.logger.Warn("region of interest detection failed, using full frames from now on", "error", err)
		}
	}
	d, err := f.det.Detect(frame, timestampMs)
	if err != nil {
		return Detection{}, err
	}
	f.last = d.Hands
	return d, nil
}

// FellBack reports whether the region path has been switched off.
func (f *Fallback) FellBack() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fallen
}
