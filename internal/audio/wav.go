// Package audio converts between WAV files and the pipeline's AudioClip.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/forPelevin/minutes/internal/types"
)

const (
	// ModelSampleRate is what every speech model in the pipeline expects.
	ModelSampleRate = 16000
	encodeBitDepth  = 16
)

var ErrInvalidWAV = errors.New("audio: not a valid WAV stream")

// LoadWAV decodes a WAV file into a mono clip.
func LoadWAV(path string) (types.AudioClip, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.AudioClip{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a PCM WAV stream, downmixing to mono and normalizing samples
// to [-1, 1].
func Decode(r io.ReadSeeker) (types.AudioClip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return types.AudioClip{}, ErrInvalidWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return types.AudioClip{}, fmt.Errorf("audio: decode pcm: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return types.AudioClip{}, ErrInvalidWAV
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = encodeBitDepth
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = clamp(sum / float32(channels))
	}
	return types.AudioClip{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

// WriteWAV writes clip as 16-bit mono PCM.
func WriteWAV(path string, clip types.AudioClip) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Encode(f, clip)
}

// Encode writes clip as 16-bit mono PCM to a seekable writer.
func Encode(w io.WriteSeeker, clip types.AudioClip) error {
	if clip.SampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", clip.SampleRate)
	}
	enc := wav.NewEncoder(w, clip.SampleRate, encodeBitDepth, 1, 1)
	data := make([]int, len(clip.Samples))
	for i, s := range clip.Samples {
		data[i] = int(clamp(s) * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: clip.SampleRate},
		Data:           data,
		SourceBitDepth: encodeBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode: %w", err)
	}
	return enc.Close()
}

// EncodeBytes returns clip as an in-memory WAV file.
func EncodeBytes(clip types.AudioClip) ([]byte, error) {
	var sb seekBuffer
	if err := Encode(&sb, clip); err != nil {
		return nil, err
	}
	return sb.buf, nil
}

func clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// seekBuffer is an io.WriteSeeker over a byte slice; the WAV encoder seeks
// back to patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	n := copy(s.buf[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("audio: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("audio: negative seek position")
	}
	s.pos = int(abs)
	return abs, nil
}
