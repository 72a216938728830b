package session

import (
	"context"
	"fmt"

	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/music/track"
)

// Advance starts the next queued track. It does nothing unless the session is
// connected and idle: no track playing, paused, occupying the current slot,
// or being started.
func (s *Session) Advance(ctx context.Context) {
	s.mu.Lock()
	if !s.claimStartLocked() {
		s.mu.Unlock()
		return
	}
	epoch := s.epoch
	s.mu.Unlock()

	_ = s.run(ctx, nil, epoch)
}

// claimStartLocked moves an idle, connected session to Starting. Commands that
// arrive while the claim is held queue behind it.
func (s *Session) claimStartLocked() bool {
	if s.conn == nil || s.conn.IsPlaying() || s.conn.IsPaused() || s.starting || s.current != nil {
		return false
	}
	s.starting = true
	return true
}

// run drives the session from Starting to Playing or Idle. The caller has
// set s.starting, and s.current to first when first is non-nil, while the
// session was at epoch. A stop or leave since then ends the loop untouched.
//
// Failures of first are returned instead of announced, because the command
// that supplied it replies on its own. Every later failure is announced once
// and the loop moves on to the next queued track, giving up after
// maxFailures consecutive failures while tracks remain queued.
func (s *Session) run(ctx context.Context, first *track.Track, epoch uint64) error {
	var (
		candidate = first
		firstErr  error
		failures  int
	)

	for {
		s.mu.Lock()
		if epoch != s.epoch || s.conn == nil {
			s.mu.Unlock()
			if candidate != nil && candidate == first {
				return ErrSuperseded
			}
			return firstErr
		}
		if candidate == nil {
			next, ok := s.popLocked()
			if !ok {
				s.current = nil
				s.starting = false
				s.mu.Unlock()
				if first == nil {
					s.emit(Event{Kind: EventQueueEmpty})
				}
				return firstErr
			}
			candidate = &next
			s.current = candidate
		}
		s.mu.Unlock()

		var src stream.Source
		err := s.runJob(ctx, "open", func(ctx context.Context) error {
			var err error
			src, err = s.env.resolver.Open(ctx, *candidate)
			return err
		})

		s.mu.Lock()
		if epoch != s.epoch || s.conn == nil {
			s.mu.Unlock()
			if src != nil {
				_ = src.Close()
			}
			s.log.Debug().Str("title", candidate.Title).Msg("[Session] Discarded start after reset")
			if candidate == first {
				return ErrSuperseded
			}
			return firstErr
		}
		if err == nil {
			if err = s.startLocked(src); err == nil {
				s.starting = false
				s.mu.Unlock()
				s.log.Info().Str("title", candidate.Title).Msg("[Session] Now playing")
				if candidate != first {
					s.emit(Event{Kind: EventNowPlaying, Track: *candidate})
				}
				return nil
			}
		}

		s.current = nil
		failures++
		giveUp := failures >= s.env.maxFailures && len(s.queue) > 0
		if giveUp {
			s.starting = false
		}
		s.mu.Unlock()

		s.log.Warn().Err(err).Str("title", candidate.Title).Int("failures", failures).Msg("[Session] Track failed to start")
		if candidate == first {
			firstErr = fmt.Errorf("%w: %w", ErrResolutionFailed, err)
		} else {
			s.emit(Event{Kind: EventTrackFailed, Track: *candidate, Err: err})
		}
		if giveUp {
			s.emit(Event{Kind: EventGaveUp, Failures: failures})
			return firstErr
		}
		candidate = nil
	}
}

// startLocked hands src to the connection with the session volume applied.
func (s *Session) startLocked(src stream.Source) error {
	src.SetVolume(s.volume)
	s.playSeq++
	seq := s.playSeq
	err := s.conn.Play(src, func(err error) {
		go s.finished(seq, err)
	})
	if err != nil {
		_ = src.Close()
		return err
	}
	s.active = src
	return nil
}

// finished is the single re-entry point for completion notifications.
func (s *Session) finished(seq uint64, playErr error) {
	s.mu.Lock()
	if seq != s.playSeq {
		// Tracks queued while a stopped stream was winding down start now.
		pending := len(s.queue) > 0
		s.mu.Unlock()
		s.log.Debug().Uint64("seq", seq).Bool("pending", pending).Msg("[Session] Stale completion")
		if pending {
			s.Advance(context.Background())
		}
		return
	}
	ended := s.current
	s.current = nil
	s.active = nil
	next := s.claimStartLocked()
	epoch := s.epoch
	s.mu.Unlock()

	if playErr != nil {
		ev := Event{Kind: EventPlaybackError, Err: fmt.Errorf("%w: %w", ErrPlaybackError, playErr)}
		if ended != nil {
			ev.Track = *ended
		}
		s.log.Warn().Err(playErr).Msg("[Session] Playback ended with error")
		s.emit(ev)
	}
	if next {
		_ = s.run(context.Background(), nil, epoch)
	}
}

func (s *Session) popLocked() (track.Track, bool) {
	if len(s.queue) == 0 {
		return track.Track{}, false
	}
	t := s.queue[0]
	s.queue[0] = track.Track{}
	s.queue = s.queue[1:]
	return t, true
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	ev.GuildID = s.guildID
	ev.ChannelID = s.announce
	s.mu.Unlock()

	s.log.Debug().Stringer("event", ev.Kind).Msg("[Session] Notify")
	s.env.notifier.Notify(ev)
}
