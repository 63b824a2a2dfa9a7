// Package landmark is the contract between the performance loop and a hand
// pose detector: frames go in, hands made of normalized landmarks come out.
// It also provides frame sources and detector adapters: a latest-frame
// mailbox, a subprocess detector speaking length-prefixed msgpack, a
// detector replaying scripted tracks, and a wrapper that falls back from the
// region-of-interest path.
package landmark

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/doodlejam/doodlejam"
)

type (
	// Landmark is one keypoint of a hand in normalized image space. Z is the
	// relative depth reported by the detector and is not used for hit
	// testing.
	Landmark struct {
		X float64 `msgpack:"x" yaml:"x"`
		Y float64 `msgpack:"y" yaml:"y"`
		Z float64 `msgpack:"z" yaml:"z,omitempty"`
	}

	// Hand is the ordered list of landmarks of one hand; index ThumbTip is
	// the tip of the thumb and IndexTip the tip of the index finger.
	Hand []Landmark

	Detection struct {
		Hands []Hand
	}

	// Frame is one video frame. Data is the encoded image and must not be
	// modified once the frame has been published.
	Frame struct {
		Data     []byte
		Width    int
		Height   int
		Seq      uint64
		Captured time.Time
	}

	// ROI is a region of interest in normalized image space.
	ROI struct {
		X      float64 `msgpack:"x"`
		Y      float64 `msgpack:"y"`
		Width  float64 `msgpack:"w"`
		Height float64 `msgpack:"h"`
	}

	// Detector finds hands in a frame. Calls are synchronous and never
	// overlap.
	Detector interface {
		Detect(frame Frame, timestampMs float64) (Detection, error)
	}

	// ROIDetector can restrict the search to a region, typically around the
	// hands found in the previous frame.
	ROIDetector interface {
		Detector
		DetectROI(frame Frame, timestampMs float64, roi ROI) (Detection, error)
	}

	// FrameSource supplies the most recent video frame.
	FrameSource interface {
		Open(ctx context.Context) error
		// Latest returns the newest frame not yet returned. ok is false
		// when no new frame has arrived since the last call.
		Latest() (frame Frame, ok bool)
		Close() error
	}
)

const (
	ThumbTip     = 4
	IndexTip     = 8
	NumLandmarks = 21
)

var (
	ErrROIUnsupported = errors.New("detector does not support region of interest")
	ErrDetectorClosed = errors.New("detector is closed")
)

// Fingertips returns the thumb and index fingertips of every hand, in hand
// order. Hands too short to have a landmark are skipped for that landmark.
func Fingertips(hands []Hand) []doodlejam.Point {
	ret := make([]doodlejam.Point, 0, 2*len(hands))
	for _, h := range hands {
		for _, i := range [...]int{ThumbTip, IndexTip} {
			if i < len(h) {
				ret = append(ret, doodlejam.Point{X: h[i].X, Y: h[i].Y})
			}
		}
	}
	return ret
}

// Bounds returns the smallest region containing every landmark of the hands,
// grown by margin on each side and clipped to the image. ok is false when
// there are no landmarks.
func Bounds(hands []Hand, margin float64) (roi ROI, ok bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, h := range hands {
		for _, l := range h {
			minX, maxX = math.Min(minX, l.X), math.Max(maxX, l.X)
			minY, maxY = math.Min(minY, l.Y), math.Max(maxY, l.Y)
		}
	}
	if minX > maxX {
		return ROI{}, false
	}
	minX, minY = math.Max(minX-margin, 0), math.Max(minY-margin, 0)
	maxX, maxY = math.Min(maxX+margin, 1), math.Min(maxY+margin, 1)
	if minX >= maxX || minY >= maxY {
		return ROI{}, false
	}
	return ROI{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
