// Package session holds per-guild playback state and the loop that keeps a
// guild's queue draining one track at a time.
package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/music/track"
)

type JoinResult int

const (
	Joined JoinResult = iota
	Moved
	AlreadyConnected
)

type PlayStatus int

const (
	PlayStarted PlayStatus = iota
	PlayQueued
)

// PlayRequest is one play command as seen by the session.
type PlayRequest struct {
	Query          string
	VoiceChannelID string // caller's current voice channel, empty if none
	TextChannelID  string // where playback announcements go
	RequestedBy    string
}

// PlayResult reports what EnqueueOrPlay did with the resolved track.
type PlayResult struct {
	Status   PlayStatus
	Track    track.Track
	Position int // 1-based queue position when Status is PlayQueued
}

type State int

const (
	StateIdle State = iota
	StateStarting
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// Status is a point-in-time copy of a session.
type Status struct {
	GuildID   string
	Connected bool
	ChannelID string
	State     State
	Current   *track.Track
	Queue     []track.Track
	Volume    float64
}

// Session is the playback state of one guild. All methods are safe for
// concurrent use; mutations of one session are serialized by its mutex.
type Session struct {
	guildID string
	env     *environment
	log     zerolog.Logger

	mu       sync.Mutex
	queue    []track.Track
	current  *track.Track
	conn     Connection
	active   stream.Source
	volume   float64
	starting bool
	announce string

	// epoch changes on stop and leave; in-flight resolutions from an older
	// epoch are discarded.
	epoch uint64
	// playSeq identifies the latest Play call; completions carrying an older
	// value are ignored.
	playSeq uint64

	jobSeq atomic.Uint64
}

func newSession(guildID string, env *environment, volume float64) *Session {
	return &Session{
		guildID: guildID,
		env:     env,
		log:     env.log.With().Str("guild", guildID).Logger(),
		volume:  volume,
	}
}

func (s *Session) GuildID() string { return s.guildID }

// Join attaches the session to channelID, moving an existing connection if needed.
func (s *Session) Join(ctx context.Context, channelID string) (JoinResult, error) {
	if channelID == "" {
		return 0, ErrNotInVoiceChannel
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureConnectedLocked(ctx, channelID)
}

func (s *Session) ensureConnectedLocked(ctx context.Context, channelID string) (JoinResult, error) {
	if s.conn != nil {
		if s.conn.ChannelID() == channelID {
			return AlreadyConnected, nil
		}
		if err := s.conn.Move(ctx, channelID); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
		s.log.Info().Str("channel", channelID).Msg("[Session] Moved voice connection")
		return Moved, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.env.connectTimeout)
	defer cancel()
	conn, err := s.env.connector.Connect(connectCtx, s.guildID, channelID)
	if err != nil {
		s.log.Warn().Err(err).Str("channel", channelID).Msg("[Session] Voice connect failed")
		return 0, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	s.conn = conn
	s.log.Info().Str("channel", channelID).Msg("[Session] Joined voice channel")
	return Joined, nil
}

// Leave disconnects and resets the session to idle. Volume survives.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	conn := s.conn
	s.resetLocked()
	s.conn = nil
	conn.Stop()
	if err := conn.Disconnect(ctx); err != nil {
		s.log.Warn().Err(err).Msg("[Session] Disconnect failed")
	}
	s.log.Info().Msg("[Session] Left voice channel")
	return nil
}

// Stop clears the queue and the current track and halts playback. The
// completion of the stopped track does not start anything new.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	s.resetLocked()
	s.conn.Stop()
	return nil
}

// resetLocked returns the session to idle and invalidates in-flight work.
func (s *Session) resetLocked() {
	s.queue = nil
	s.current = nil
	s.active = nil
	s.starting = false
	s.epoch++
	s.playSeq++
	if n := s.env.jobs.StopPrefix(s.guildID + "/"); n > 0 {
		s.log.Debug().Int("jobs", n).Msg("[Session] Cancelled pending resolutions")
	}
}

// Skip stops the current track; its completion advances to the next one. On
// an idle session that still holds a queue it starts draining that queue.
func (s *Session) Skip() error {
	s.mu.Lock()
	if s.conn != nil && s.conn.IsPlaying() {
		s.conn.Stop()
		s.mu.Unlock()
		return nil
	}
	if len(s.queue) == 0 || !s.claimStartLocked() {
		s.mu.Unlock()
		return ErrNothingPlaying
	}
	epoch := s.epoch
	s.mu.Unlock()

	s.log.Info().Msg("[Session] Resuming kept queue")
	_ = s.run(context.Background(), nil, epoch)
	return nil
}

func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || !s.conn.IsPlaying() {
		return ErrNothingPlaying
	}
	s.conn.Pause()
	return nil
}

func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || !s.conn.IsPaused() {
		return ErrNotPaused
	}
	s.conn.Resume()
	return nil
}

// SetVolume sets the volume in percent, applying it to the live stream and
// to every stream started afterwards.
func (s *Session) SetVolume(percent int) error {
	if percent < 0 || percent > 100 {
		return ErrOutOfRange
	}

	s.mu.Lock()
	s.volume = float64(percent) / 100
	if s.active != nil {
		s.active.SetVolume(s.volume)
	}
	s.mu.Unlock()

	if s.env.prefs != nil {
		if err := s.env.prefs.SetGuildVolume(s.guildID, percent); err != nil {
			s.log.Warn().Err(err).Msg("[Session] Failed to persist volume")
		}
	}
	return nil
}

// Volume returns the volume as a fraction in [0, 1].
func (s *Session) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// NowPlaying returns the track occupying the current slot.
func (s *Session) NowPlaying() (track.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return track.Track{}, ErrNothingPlaying
	}
	return *s.current, nil
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		GuildID: s.guildID,
		State:   s.stateLocked(),
		Queue:   slices.Clone(s.queue),
		Volume:  s.volume,
	}
	if s.conn != nil {
		st.Connected = true
		st.ChannelID = s.conn.ChannelID()
	}
	if s.current != nil {
		cur := *s.current
		st.Current = &cur
	}
	return st
}

func (s *Session) stateLocked() State {
	switch {
	case s.conn != nil && s.conn.IsPaused():
		return StatePaused
	case s.conn != nil && s.conn.IsPlaying():
		return StatePlaying
	case s.starting:
		return StateStarting
	default:
		return StateIdle
	}
}

// EnqueueOrPlay resolves req.Query and either starts it or appends it to the
// queue. The session follows the caller into their voice channel first.
// Tracks never start ahead of the queue: an idle session that still holds
// tracks queues the new one and drains from the head.
func (s *Session) EnqueueOrPlay(ctx context.Context, req PlayRequest) (PlayResult, error) {
	if req.VoiceChannelID == "" {
		return PlayResult{}, ErrNotInVoiceChannel
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return PlayResult{}, fmt.Errorf("%w: empty query", ErrResolutionFailed)
	}

	s.mu.Lock()
	if s.conn == nil || s.conn.ChannelID() != req.VoiceChannelID {
		if _, err := s.ensureConnectedLocked(ctx, req.VoiceChannelID); err != nil {
			s.mu.Unlock()
			return PlayResult{}, err
		}
	}
	if req.TextChannelID != "" {
		s.announce = req.TextChannelID
	}
	epoch := s.epoch
	s.mu.Unlock()

	var t track.Track
	err := s.runJob(ctx, "resolve", func(ctx context.Context) error {
		var err error
		t, err = s.env.resolver.Resolve(ctx, query)
		return err
	})
	if err != nil {
		if s.superseded(epoch) {
			return PlayResult{}, ErrSuperseded
		}
		s.log.Warn().Err(err).Str("query", query).Msg("[Session] Resolve failed")
		return PlayResult{}, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}
	t.RequestedBy = req.RequestedBy

	s.mu.Lock()
	if epoch != s.epoch || s.conn == nil {
		s.mu.Unlock()
		return PlayResult{}, ErrSuperseded
	}
	if len(s.queue) > 0 || !s.claimStartLocked() {
		s.queue = append(s.queue, t)
		pos := len(s.queue)
		drain := s.claimStartLocked()
		s.mu.Unlock()
		s.log.Debug().Str("title", t.Title).Int("position", pos).Msg("[Session] Queued track")
		if drain {
			s.log.Info().Msg("[Session] Resuming kept queue")
			_ = s.run(ctx, nil, epoch)
		}
		return PlayResult{Status: PlayQueued, Track: t, Position: pos}, nil
	}
	cur := t
	s.current = &cur
	s.mu.Unlock()

	if err := s.run(ctx, &cur, epoch); err != nil {
		return PlayResult{}, err
	}
	return PlayResult{Status: PlayStarted, Track: t}, nil
}

// runJob executes fn on the shared resolver pool under a name scoped to this
// guild, so that Stop and Leave can cancel it.
func (s *Session) runJob(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.env.resolveTimeout)
	defer cancel()
	name := fmt.Sprintf("%s/%s/%d", s.guildID, kind, s.jobSeq.Add(1))
	return s.env.jobs.Run(ctx, name, fn)
}

func (s *Session) superseded(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return epoch != s.epoch
}

func (s *Session) String() string {
	st := s.Status()
	return fmt.Sprintf("session{guild=%s state=%s queue=%d volume=%.2f}", s.guildID, st.State, len(st.Queue), st.Volume)
}

