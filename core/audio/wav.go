package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zaf/g711"
)

var (
	ErrMalformedWAV      = errors.New("malformed wav data")
	ErrUnsupportedFormat = errors.New("unsupported wav format")
)

const (
	wavHeaderSize = 44
	// maxWAVSize bounds a single framed unit read from a stream.
	maxWAVSize = 64 << 20

	wavFormatPCM        = 1
	wavFormatALaw       = 6
	wavFormatMulaw      = 7
	wavFormatExtensible = 0xFFFE
)

// DecodeWAV parses a RIFF/WAVE payload and returns its samples as
// little-endian linear16 PCM along with the encoding they play at. G.711
// payloads are expanded to linear16.
func DecodeWAV(data []byte) ([]byte, EncodingInfo, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, EncodingInfo{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrMalformedWAV)
	}

	var (
		format        uint16
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
		haveFormat    bool
		samples       []byte
		haveData      bool
	)

	for offset := 12; offset+8 <= len(data); {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		// Streaming writers leave the size unset, the chunk runs to the end.
		if size < 0 || end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, EncodingInfo{}, fmt.Errorf("%w: fmt chunk too short", ErrMalformedWAV)
			}
			format = binary.LittleEndian.Uint16(data[body:])
			channels = binary.LittleEndian.Uint16(data[body+2:])
			sampleRate = binary.LittleEndian.Uint32(data[body+4:])
			bitsPerSample = binary.LittleEndian.Uint16(data[body+14:])
			if format == wavFormatExtensible && end-body >= 26 {
				format = binary.LittleEndian.Uint16(data[body+24:])
			}
			haveFormat = true
		case "data":
			samples = data[body:end]
			haveData = true
		}

		offset = end
		if size%2 == 1 {
			offset++
		}
	}

	if !haveFormat || !haveData {
		return nil, EncodingInfo{}, fmt.Errorf("%w: missing fmt or data chunk", ErrMalformedWAV)
	}
	if channels == 0 || sampleRate == 0 {
		return nil, EncodingInfo{}, fmt.Errorf("%w: %d channels at %d Hz", ErrMalformedWAV, channels, sampleRate)
	}

	info := EncodingInfo{SampleRate: int(sampleRate), Channels: int(channels), Format: EncodingLinear16}
	switch {
	case format == wavFormatPCM && bitsPerSample == 16:
		return samples[:len(samples)-len(samples)%info.FrameSize()], info, nil
	case format == wavFormatPCM && bitsPerSample == 8:
		pcm := make([]byte, 2*len(samples))
		for i, s := range samples {
			binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(int(s)-128)<<8))
		}
		return pcm, info, nil
	case format == wavFormatMulaw:
		return g711.DecodeUlaw(samples), info, nil
	case format == wavFormatALaw:
		return g711.DecodeAlaw(samples), info, nil
	}

	return nil, EncodingInfo{}, fmt.Errorf("%w: format %d with %d bits per sample", ErrUnsupportedFormat, format, bitsPerSample)
}

// EncodeWAV wraps linear16 PCM into a canonical 44 byte header WAV file.
func EncodeWAV(pcm []byte, info EncodingInfo) []byte {
	channels := info.Channels
	if channels <= 0 {
		channels = 1
	}
	blockAlign := channels * 2

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(wavFormatPCM))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(info.SampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(info.SampleRate*blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// WAVFramer splits a byte stream made of back-to-back WAV files into one
// payload per file, using the RIFF size of each header.
type WAVFramer struct {
	r io.Reader
}

func NewWAVFramer(r io.Reader) *WAVFramer {
	return &WAVFramer{r: r}
}

// Next returns the next complete WAV file. It returns io.EOF once the stream
// ends cleanly on a file boundary and io.ErrUnexpectedEOF if it ends inside
// one.
func (f *WAVFramer) Next() ([]byte, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(f.r, header); err != nil {
		return nil, err
	}
	if string(header[0:4]) != "RIFF" {
		return nil, fmt.Errorf("%w: expected RIFF, got %q", ErrMalformedWAV, header[0:4])
	}

	size := binary.LittleEndian.Uint32(header[4:8])
	if size == 0 || size == 0xFFFFFFFF {
		// Unknown length, only the rest of the stream can hold this file.
		rest, err := io.ReadAll(io.LimitReader(f.r, maxWAVSize))
		if err != nil {
			return nil, err
		}
		return append(header, rest...), nil
	}
	if size > maxWAVSize {
		return nil, fmt.Errorf("%w: riff size %d exceeds limit", ErrMalformedWAV, size)
	}

	unit := make([]byte, 8+int(size))
	copy(unit, header)
	if _, err := io.ReadFull(f.r, unit[8:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return unit, nil
}
