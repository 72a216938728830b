// Package stream turns a media URL into raw PCM with a live volume control.
package stream

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	Channels   = 2
	SampleRate = 48000
	FrameSize  = 960 // 20ms at 48kHz

	// FrameBytes is the size of one 20ms frame of s16le stereo PCM.
	FrameBytes = FrameSize * Channels * 2
)

// Source is a streamable audio handle: s16le 48kHz stereo PCM whose volume can
// be changed while it is being read.
type Source interface {
	io.ReadCloser
	SetVolume(v float64)
	Volume() float64
}

// PCMStream applies a volume factor to PCM read from r.
type PCMStream struct {
	r       io.Reader
	cleanup func() error
	volume  atomic.Uint64
	once    sync.Once
	err     error
}

// NewPCMStream wraps r. cleanup runs once on Close and may be nil.
func NewPCMStream(r io.Reader, cleanup func() error, volume float64) *PCMStream {
	s := &PCMStream{r: r, cleanup: cleanup}
	s.SetVolume(volume)
	return s
}

// SetVolume sets the gain, clamped to [0, 1].
func (s *PCMStream) SetVolume(v float64) {
	s.volume.Store(math.Float64bits(clampVolume(v)))
}

// Volume returns the current gain.
func (s *PCMStream) Volume() float64 {
	return math.Float64frombits(s.volume.Load())
}

// Read fills p with whole 16-bit samples scaled by the current volume.
func (s *PCMStream) Read(p []byte) (int, error) {
	buf := p[:len(p)&^1]
	if len(buf) == 0 {
		return 0, io.ErrShortBuffer
	}

	n, err := s.r.Read(buf)
	if n%2 == 1 {
		if _, rerr := io.ReadFull(s.r, buf[n:n+1]); rerr == nil {
			n++
		} else {
			n--
			if err == nil {
				err = rerr
			}
		}
	}

	ScalePCM(buf[:n], s.Volume())
	return n, err
}

// Close releases the decoder. Safe to call more than once.
func (s *PCMStream) Close() error {
	s.once.Do(func() {
		if c, ok := s.r.(io.Closer); ok {
			s.err = c.Close()
		}
		if s.cleanup != nil {
			if err := s.cleanup(); err != nil && s.err == nil {
				s.err = err
			}
		}
	})
	return s.err
}

// ScalePCM multiplies every s16le sample in buf by volume, saturating on overflow.
func ScalePCM(buf []byte, volume float64) {
	if volume == 1 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		sample := float64(int16(uint16(buf[i]) | uint16(buf[i+1])<<8))
		scaled := int16(max(math.MinInt16, min(math.MaxInt16, math.Round(sample*volume))))
		buf[i] = byte(scaled)
		buf[i+1] = byte(uint16(scaled) >> 8)
	}
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(1, v))
}

// FFmpegArgs returns the decoder arguments for input. Network inputs get the
// reconnect options so a dropped CDN connection does not end the track.
func FFmpegArgs(input string) []string {
	var args []string
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	return append(args,
		"-i", input,
		"-vn",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-ac", fmt.Sprintf("%d", Channels),
		"-loglevel", "warning",
		"pipe:1",
	)
}

// Decode starts ffmpeg on input and returns its PCM output. The process lives
// until the stream is closed.
func Decode(input string, volume float64) (*PCMStream, error) {
	if input == "" {
		return nil, errors.New("empty stream input")
	}

	ffmpeg := exec.Command("ffmpeg", FFmpegArgs(input)...)
	reader, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	wait := sync.OnceValue(ffmpeg.Wait)
	cleanup := func() error {
		_ = ffmpeg.Process.Kill()
		_ = wait()
		return nil
	}

	return NewPCMStream(exitReader{r: reader, wait: wait}, cleanup, volume), nil
}

// exitReader replaces the EOF of a decoder's stdout with the decoder's exit
// error, so a rejected input ends the track with an error instead of silence.
type exitReader struct {
	r    io.Reader
	wait func() error
}

func (e exitReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := e.wait(); werr != nil {
			return n, fmt.Errorf("ffmpeg exited: %w", werr)
		}
	}
	return n, err
}
