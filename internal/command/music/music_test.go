package music

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/session"
	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/pkg/cmd"
)

type stubSource struct{ volume float64 }

func (s *stubSource) Read([]byte) (int, error) { return 0, nil }
func (s *stubSource) Close() error             { return nil }
func (s *stubSource) SetVolume(v float64)      { s.volume = v }
func (s *stubSource) Volume() float64          { return s.volume }

// stubConn plays forever until stopped.
type stubConn struct {
	mu      sync.Mutex
	channel string
	playing bool
	paused  bool
	done    func(error)
}

func (c *stubConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *stubConn) Move(_ context.Context, ch string) error {
	c.mu.Lock()
	c.channel = ch
	c.mu.Unlock()
	return nil
}

func (c *stubConn) Disconnect(context.Context) error { return nil }

func (c *stubConn) Play(_ stream.Source, onComplete func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing, c.paused, c.done = true, false, onComplete
	return nil
}

func (c *stubConn) Stop() {
	c.mu.Lock()
	done := c.done
	c.playing, c.paused, c.done = false, false, nil
	c.mu.Unlock()
	if done != nil {
		done(nil)
	}
}

func (c *stubConn) Pause() {
	c.mu.Lock()
	if c.playing {
		c.playing, c.paused = false, true
	}
	c.mu.Unlock()
}

func (c *stubConn) Resume() {
	c.mu.Lock()
	if c.paused {
		c.playing, c.paused = true, false
	}
	c.mu.Unlock()
}

func (c *stubConn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *stubConn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

type stubConnector struct{ err error }

func (s stubConnector) Connect(_ context.Context, _, ch string) (session.Connection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &stubConn{channel: ch}, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, q string) (track.Track, error) {
	if q == "broken" {
		return track.Track{}, errors.New("no video found")
	}
	return track.Track{Source: q, Title: q, Duration: 90 * time.Second}, nil
}

func (stubResolver) Open(context.Context, track.Track) (stream.Source, error) {
	return &stubSource{}, nil
}

type voiceMap map[string]string

func (v voiceMap) UserVoiceChannel(_, userID string) string { return v[userID] }

func newHandler(t *testing.T, connErr error) *Handler {
	t.Helper()
	reg := session.NewRegistry(session.Options{
		Connector: stubConnector{err: connErr},
		Resolver:  stubResolver{},
	})
	return NewHandler(reg, voiceMap{"u1": "voice-1"}, "!")
}

func caller(user string) command.Caller {
	return command.Caller{GuildID: "g1", ChannelID: "text-1", UserID: user, Username: user}
}

func TestHandlePlayThenQueue(t *testing.T) {
	h := newHandler(t, nil)
	ctx := context.Background()

	r := h.Handle(ctx, caller("u1"), SubPlay, "first song")
	if r.Error || !strings.Contains(r.Title, "Now playing") || !strings.Contains(r.Description, "first song") {
		t.Fatalf("first play reply = %+v", r)
	}

	r = h.Handle(ctx, caller("u1"), SubPlay, "second song")
	if r.Error || !strings.Contains(r.Title, "Added to queue") || !strings.Contains(r.Description, "Position: 1") {
		t.Fatalf("second play reply = %+v", r)
	}

	r = h.Handle(ctx, caller("u1"), SubQueue, "")
	if !strings.Contains(r.Description, "1. **second song** `1:30`") {
		t.Errorf("queue description = %q", r.Description)
	}
	if len(r.Fields) != 2 || r.Fields[0].Value != "1 tracks, 1:30" || r.Fields[1].Value != "50%" {
		t.Errorf("queue fields = %+v", r.Fields)
	}

	r = h.Handle(ctx, caller("u1"), SubNowPlaying, "")
	if !strings.Contains(r.Description, "first song") || !strings.Contains(r.Description, "Duration: 1:30") {
		t.Errorf("nowplaying = %+v", r)
	}
}

func TestHandleErrors(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		sub     string
		arg     string
		connErr error
		want    string
	}{
		{"play outside voice", "u2", SubPlay, "song", nil, "need to be in a voice channel"},
		{"join outside voice", "u2", SubJoin, "", nil, "need to be in a voice channel"},
		{"play without query", "u1", SubPlay, "  ", nil, "Usage: `!play"},
		{"connect failure", "u1", SubPlay, "song", errors.New("timeout"), "Could not connect"},
		{"resolve failure", "u1", SubPlay, "broken", nil, "Could not play that: no video found"},
		{"stop while disconnected", "u1", SubStop, "", nil, "not in a voice channel"},
		{"leave while disconnected", "u1", SubLeave, "", nil, "not in a voice channel"},
		{"skip while idle", "u1", SubSkip, "", nil, "Nothing is playing"},
		{"resume while idle", "u1", SubResume, "", nil, "not paused"},
		{"nowplaying while idle", "u1", SubNowPlaying, "", nil, "Nothing is playing"},
		{"volume too high", "u1", SubVolume, "150", nil, "between 0 and 100"},
		{"volume not a number", "u1", SubVolume, "loud", nil, "between 0 and 100"},
		{"unknown", "u1", "dance", "", nil, "Unknown music command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, tt.connErr)
			r := h.Handle(context.Background(), caller(tt.user), tt.sub, tt.arg)
			if !r.Error {
				t.Fatalf("reply = %+v, want an error", r)
			}
			if !strings.Contains(r.Description, tt.want) {
				t.Errorf("description = %q, want it to contain %q", r.Description, tt.want)
			}
		})
	}
}

func TestHandleVolume(t *testing.T) {
	h := newHandler(t, nil)
	ctx := context.Background()

	if r := h.Handle(ctx, caller("u1"), SubVolume, "30%"); r.Error || r.Description != "Volume set to 30%." {
		t.Errorf("set volume = %+v", r)
	}
	if r := h.Handle(ctx, caller("u1"), SubVolume, ""); r.Description != "Volume is 30%." {
		t.Errorf("show volume = %+v", r)
	}
}

func TestHandleJoinAndPause(t *testing.T) {
	h := newHandler(t, nil)
	ctx := context.Background()

	if r := h.Handle(ctx, caller("u1"), SubJoin, ""); r.Description != "Joined your voice channel." {
		t.Errorf("join = %+v", r)
	}
	if r := h.Handle(ctx, caller("u1"), SubJoin, ""); r.Description != "Already in your voice channel." {
		t.Errorf("second join = %+v", r)
	}

	h.Handle(ctx, caller("u1"), SubPlay, "song")
	if r := h.Handle(ctx, caller("u1"), SubPause, ""); r.Error {
		t.Errorf("pause = %+v", r)
	}
	if r := h.Handle(ctx, caller("u1"), SubQueue, ""); !strings.Contains(r.Description, "Now (paused)") {
		t.Errorf("queue while paused = %q", r.Description)
	}
	if r := h.Handle(ctx, caller("u1"), SubResume, ""); r.Error {
		t.Errorf("resume = %+v", r)
	}
	if r := h.Handle(ctx, caller("u1"), SubStop, ""); r.Error {
		t.Errorf("stop = %+v", r)
	}
	if r := h.Handle(ctx, caller("u1"), SubQueue, ""); r.Description != "The queue is empty." {
		t.Errorf("queue after stop = %q", r.Description)
	}
}

func TestEventReply(t *testing.T) {
	tr := track.Track{Title: "Song_1", URL: "https://example.com/1"}
	tests := []struct {
		ev        session.Event
		wantError bool
		want      string
	}{
		{session.Event{Kind: session.EventNowPlaying, Track: tr}, false, `[Song\_1](https://example.com/1)`},
		{session.Event{Kind: session.EventQueueEmpty}, false, "Nothing left to play."},
		{session.Event{Kind: session.EventTrackFailed, Track: tr, Err: errors.New("gone")}, true, "gone"},
		{session.Event{Kind: session.EventPlaybackError, Track: tr,
			Err: errors.Join(session.ErrPlaybackError, errors.New("decoder died"))}, true, "decoder died"},
		{session.Event{Kind: session.EventGaveUp, Failures: 5}, true, "5 tracks in a row failed"},
	}

	for _, tt := range tests {
		t.Run(tt.ev.Kind.String(), func(t *testing.T) {
			r, ok := EventReply(tt.ev)
			if !ok {
				t.Fatal("EventReply() not announced")
			}
			if r.Error != tt.wantError {
				t.Errorf("Error = %v, want %v", r.Error, tt.wantError)
			}
			if !strings.Contains(r.Description, tt.want) {
				t.Errorf("description = %q, want it to contain %q", r.Description, tt.want)
			}
		})
	}
}

func TestQueueReplyTruncates(t *testing.T) {
	st := session.Status{Volume: 1}
	for i := 0; i < queueListLimit+3; i++ {
		st.Queue = append(st.Queue, track.Track{Title: "t", Duration: time.Minute})
	}
	r := queueReply(st)
	if !strings.Contains(r.Description, "…and 3 more") {
		t.Errorf("description = %q", r.Description)
	}
	if r.Fields[0].Value != "18 tracks, 18:00" {
		t.Errorf("total = %q", r.Fields[0].Value)
	}
}

type recordingContext struct {
	caller   command.Caller
	deferred bool
	replies  []command.Reply
}

func (c *recordingContext) Caller() command.Caller { return c.caller }

func (c *recordingContext) Defer() error {
	c.deferred = true
	return nil
}

func (c *recordingContext) Reply(r command.Reply) error {
	c.replies = append(c.replies, r)
	return nil
}

func TestCommandsReplyOnce(t *testing.T) {
	h := newHandler(t, nil)
	reg := cmd.NewRegistry()
	reg.Register(&MusicCommand{Handler: h})
	for _, a := range Actions(h) {
		reg.Register(a)
	}

	tests := []struct {
		name      string
		args      []string
		wantDefer bool
		want      string
	}{
		{"music", []string{"help"}, false, "Music commands"},
		{"np", nil, false, "Error"},
		{"vol", []string{"40"}, false, "Volume"},
		{"play", []string{"some", "song"}, true, "Now playing"},
		{"q", nil, false, "Queue"},
		{"help_music", nil, false, "Music commands"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := reg.Get(tt.name)
			if !ok {
				t.Fatalf("command %q not registered", tt.name)
			}
			rc := &recordingContext{caller: caller("u1")}
			if err := c.Run(context.Background(), &cmd.Invocation{Args: tt.args, Data: rc}); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(rc.replies) != 1 {
				t.Fatalf("replies = %d, want 1", len(rc.replies))
			}
			if rc.deferred != tt.wantDefer {
				t.Errorf("deferred = %v, want %v", rc.deferred, tt.wantDefer)
			}
			if !strings.Contains(rc.replies[0].Title, tt.want) {
				t.Errorf("title = %q, want it to contain %q", rc.replies[0].Title, tt.want)
			}
		})
	}
}

func TestRunWithoutContext(t *testing.T) {
	c := &MusicCommand{Handler: newHandler(t, nil)}
	if err := c.Run(context.Background(), &cmd.Invocation{Args: []string{"help"}}); err == nil {
		t.Error("Run() without a Discord context succeeded")
	}
}
