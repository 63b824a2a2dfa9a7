package oto

import (
	"encoding/binary"
	"math"

	"github.com/doodlejam/doodlejam"
)

// AppendInt16LE converts the stereo buffer to interleaved 16-bit
// little-endian samples and appends them to dst. Samples outside [-1,1] are
// clipped.
func AppendInt16LE(dst []byte, buf doodlejam.AudioBuffer) []byte {
	for _, frame := range buf {
		for _, v := range frame {
			var s int16
			switch {
			case v < -1:
				s = -math.MaxInt16
			case v > 1:
				s = math.MaxInt16
			default:
				s = int16(v * math.MaxInt16)
			}
			dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
		}
	}
	return dst
}
