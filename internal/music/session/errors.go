package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotInVoiceChannel = errors.New("you need to be in a voice channel")
	ErrConnectionFailed  = errors.New("failed to connect to voice channel")
	ErrNotConnected      = errors.New("not connected to a voice channel")
	ErrResolutionFailed  = errors.New("could not resolve track")
	ErrInvalidState      = errors.New("invalid playback state")
	ErrOutOfRange        = errors.New("volume must be between 0 and 100")
	ErrPlaybackError     = errors.New("playback error")

	ErrNothingPlaying = fmt.Errorf("%w: nothing is playing", ErrInvalidState)
	ErrNotPaused      = fmt.Errorf("%w: not paused", ErrInvalidState)
	ErrSuperseded     = fmt.Errorf("%w: playback was stopped while the request was in flight", ErrInvalidState)
)
