package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var ErrUnsupportedWAV = errors.New("media: unsupported wav encoding")

// Clip is a mono PCM16 slice of a recording. Offset is the clip start within
// the full recording, in seconds.
type Clip struct {
	SampleRate int
	Samples    []int16
	Offset     float64
}

func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// ReadWAV loads a PCM16 WAV file, down-mixing multi-channel audio to mono.
func ReadWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV walks the RIFF chunks of r and returns the mono sample stream.
func DecodeWAV(r io.Reader) (Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Clip{}, fmt.Errorf("reading riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Clip{}, errors.New("media: not a RIFF/WAVE stream")
	}

	var (
		channels   uint16
		sampleRate uint32
		bits       uint16
		haveFmt    bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return Clip{}, fmt.Errorf("reading chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return Clip{}, fmt.Errorf("reading fmt chunk: %w", err)
			}
			if size < 16 {
				return Clip{}, ErrUnsupportedWAV
			}
			format := binary.LittleEndian.Uint16(buf[0:2])
			channels = binary.LittleEndian.Uint16(buf[2:4])
			sampleRate = binary.LittleEndian.Uint32(buf[4:8])
			bits = binary.LittleEndian.Uint16(buf[14:16])
			if format != 1 || bits != 16 || channels == 0 {
				return Clip{}, ErrUnsupportedWAV
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Clip{}, errors.New("media: data chunk before fmt chunk")
			}
			raw := make([]byte, size)
			n, err := io.ReadFull(r, raw)
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
				return Clip{}, fmt.Errorf("reading data chunk: %w", err)
			}
			return Clip{SampleRate: int(sampleRate), Samples: downmix(raw[:n], int(channels))}, nil
		default:
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Clip{}, fmt.Errorf("skipping %q chunk: %w", id, err)
			}
		}
		if id == "fmt " && size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return Clip{}, err
			}
		}
	}
}

func downmix(raw []byte, channels int) []int16 {
	frame := 2 * channels
	frames := len(raw) / frame
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			off := i*frame + 2*c
			sum += int(int16(binary.LittleEndian.Uint16(raw[off : off+2])))
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// EncodeWAV writes c as a mono PCM16 WAV stream.
func EncodeWAV(w io.Writer, c Clip) error {
	dataLen := uint32(len(c.Samples) * 2)
	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	_ = binary.Write(&hdr, binary.LittleEndian, 36+dataLen)
	hdr.WriteString("WAVEfmt ")
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(16))
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(c.SampleRate))
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(c.SampleRate*2))
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(2))
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(16))
	hdr.WriteString("data")
	_ = binary.Write(&hdr, binary.LittleEndian, dataLen)
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, c.Samples)
}

// WAVBytes is EncodeWAV into memory.
func WAVBytes(c Clip) ([]byte, error) {
	var b bytes.Buffer
	if err := EncodeWAV(&b, c); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Sub returns the part of c between start and end seconds of the full
// recording, clamped to the samples available.
func (c Clip) Sub(start, end float64) Clip {
	from := secondsToIndex(start-c.Offset, c.SampleRate, len(c.Samples))
	to := secondsToIndex(end-c.Offset, c.SampleRate, len(c.Samples))
	if to < from {
		to = from
	}
	return Clip{SampleRate: c.SampleRate, Samples: c.Samples[from:to], Offset: c.Offset + float64(from)/float64(c.SampleRate)}
}

func secondsToIndex(sec float64, rate, n int) int {
	i := int(math.Floor(sec * float64(rate)))
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
