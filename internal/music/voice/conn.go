// Package voice streams PCM sources into Discord voice channels as Opus.
package voice

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hraban/opus"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/stream"
)

var (
	ErrBusy    = errors.New("voice connection is already playing")
	errStopped = errors.New("playback stopped")
)

const maxPacketBytes = 4000

// Encoder turns one frame of interleaved samples into an Opus packet.
type Encoder interface {
	Encode(pcm []int16, data []byte) (int, error)
}

func newOpusEncoder() (Encoder, error) {
	return opus.NewEncoder(stream.SampleRate, stream.Channels, opus.AppAudio)
}

// link is the transport underneath a Conn.
type link interface {
	ChannelID() string
	ChangeChannel(channelID string) error
	Disconnect() error
	Speaking(on bool) error
	// Send delivers one Opus packet, giving up when stop is closed.
	Send(stop <-chan struct{}, packet []byte) error
}

// Conn plays one source at a time over a voice link.
type Conn struct {
	link       link
	newEncoder func() (Encoder, error)
	log        zerolog.Logger

	mu      sync.Mutex
	playing bool
	paused  bool
	src     stream.Source
	stop    chan struct{} // closed by Stop
	resume  chan struct{} // non-nil while paused; closed by Resume
}

func newConn(l link, newEncoder func() (Encoder, error), log zerolog.Logger) *Conn {
	return &Conn{link: l, newEncoder: newEncoder, log: log}
}

func (c *Conn) ChannelID() string { return c.link.ChannelID() }

func (c *Conn) Move(ctx context.Context, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.link.ChangeChannel(channelID)
}

func (c *Conn) Disconnect(ctx context.Context) error {
	c.Stop()
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.link.Disconnect()
}

// Play starts streaming src on a new goroutine. onComplete is called once
// when the source ends, fails or is stopped.
func (c *Conn) Play(src stream.Source, onComplete func(err error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return ErrBusy
	}
	enc, err := c.newEncoder()
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}

	stop := make(chan struct{})
	c.stop = stop
	c.src = src
	c.playing = true
	c.paused = false
	c.resume = nil

	go c.run(src, enc, stop, onComplete)
	return nil
}

// Stop signals the active playback to end without waiting for it.
func (c *Conn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop == nil {
		return
	}
	select {
	case <-c.stop:
		return
	default:
	}
	close(c.stop)
	if c.resume != nil {
		close(c.resume)
		c.resume = nil
	}
	// Unblocks a read stalled on the network.
	go c.src.Close()
}

func (c *Conn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.playing = false
	c.paused = true
	c.resume = make(chan struct{})
}

func (c *Conn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	c.playing = true
	close(c.resume)
	c.resume = nil
}

func (c *Conn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Conn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Conn) pauseGate() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resume
}

func (c *Conn) run(src stream.Source, enc Encoder, stop chan struct{}, onComplete func(error)) {
	err := c.pump(src, enc, stop)
	_ = src.Close()

	if serr := c.link.Speaking(false); serr != nil {
		c.log.Debug().Err(serr).Msg("[Voice] Failed to clear speaking state")
	}

	stopped := false
	select {
	case <-stop:
		stopped = true
	default:
	}
	if stopped || errors.Is(err, errStopped) {
		err = nil
	}

	c.mu.Lock()
	c.playing = false
	c.paused = false
	c.stop = nil
	c.src = nil
	c.resume = nil
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Msg("[Voice] Playback ended with error")
	}
	if onComplete != nil {
		onComplete(err)
	}
}

// pump encodes 20ms frames until the source is exhausted or stop is closed.
func (c *Conn) pump(src io.Reader, enc Encoder, stop <-chan struct{}) error {
	pcm := make([]byte, stream.FrameBytes)
	samples := make([]int16, stream.FrameSize*stream.Channels)
	packet := make([]byte, maxPacketBytes)

	if err := c.link.Speaking(true); err != nil {
		return fmt.Errorf("speaking: %w", err)
	}

	for {
		if gate := c.pauseGate(); gate != nil {
			select {
			case <-gate:
			case <-stop:
				return errStopped
			}
		}
		select {
		case <-stop:
			return errStopped
		default:
		}

		n, err := io.ReadFull(src, pcm)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			clear(pcm[n:])
		} else if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		}
		size, encErr := enc.Encode(samples, packet)
		if encErr != nil {
			return fmt.Errorf("encode: %w", encErr)
		}
		frame := make([]byte, size)
		copy(frame, packet[:size])

		if sendErr := c.link.Send(stop, frame); sendErr != nil {
			return sendErr
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
	}
}
