package doodlejam

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

type (
	// riffHeader is the RIFF container header plus the fmt chunk of a
	// stereo WAV file.
	riffHeader struct {
		RIFF          [4]byte
		ChunkSize     uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		Format        uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}

	// floatExtension follows the fmt chunk of IEEE float files: an empty
	// extension and the fact chunk with the number of frames.
	floatExtension struct {
		ExtensionSize uint16
		Fact          [4]byte
		FactSize      uint32
		Frames        uint32
	}

	dataHeader struct {
		Data     [4]byte
		DataSize uint32
	}
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// Wav encodes the buffer as a stereo WAV file at SampleRate. With pcm16 the
// samples are clipped to 16-bit signed integers, otherwise they are written as
// 32-bit floats.
func (buffer AudioBuffer) Wav(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeWavHeader(buf, len(buffer), pcm16); err != nil {
		return nil, fmt.Errorf("could not write WAV header: %w", err)
	}
	if err := buffer.writeSamples(buf, pcm16); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Raw encodes the buffer as headerless interleaved samples, in the same sample
// format as Wav.
func (buffer AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := buffer.writeSamples(buf, pcm16); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (buffer AudioBuffer) writeSamples(buf *bytes.Buffer, pcm16 bool) error {
	var err error
	if pcm16 {
		frames := make([][2]int16, len(buffer))
		for i, s := range buffer {
			frames[i] = [2]int16{toInt16(s[0]), toInt16(s[1])}
		}
		err = binary.Write(buf, binary.LittleEndian, frames)
	} else {
		err = binary.Write(buf, binary.LittleEndian, buffer)
	}
	if err != nil {
		return fmt.Errorf("could not write samples: %w", err)
	}
	return nil
}

func writeWavHeader(buf *bytes.Buffer, frames int, pcm16 bool) error {
	const channels = 2
	sampleBytes, format, fmtSize := 4, wavFormatFloat, 18
	if pcm16 {
		sampleBytes, format, fmtSize = 2, wavFormatPCM, 16
	}
	dataSize := frames * channels * sampleBytes
	chunkSize := 4 + (8 + fmtSize) + 8 + dataSize
	if !pcm16 {
		chunkSize += 12 // fact chunk
	}
	h := riffHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(chunkSize),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       uint32(fmtSize),
		Format:        uint16(format),
		Channels:      channels,
		SampleRate:    SampleRate,
		ByteRate:      uint32(SampleRate * channels * sampleBytes),
		BlockAlign:    uint16(channels * sampleBytes),
		BitsPerSample: uint16(8 * sampleBytes),
	}
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return err
	}
	if !pcm16 {
		ext := floatExtension{Fact: [4]byte{'f', 'a', 'c', 't'}, FactSize: 4, Frames: uint32(frames)}
		if err := binary.Write(buf, binary.LittleEndian, ext); err != nil {
			return err
		}
	}
	return binary.Write(buf, binary.LittleEndian, dataHeader{Data: [4]byte{'d', 'a', 't', 'a'}, DataSize: uint32(dataSize)})
}

func toInt16(v float32) int16 {
	s := int(v * math.MaxInt16)
	if s < math.MinInt16 {
		return math.MinInt16
	}
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(s)
}
