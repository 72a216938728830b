package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/pkg/jobmgr"
)

type fakeSource struct {
	name string

	mu     sync.Mutex
	volume float64
	closed int
}

func (f *fakeSource) Read([]byte) (int, error) { return 0, io.EOF }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) SetVolume(v float64) {
	f.mu.Lock()
	f.volume = v
	f.mu.Unlock()
}

func (f *fakeSource) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

type fakeConn struct {
	mu           sync.Mutex
	channel      string
	playing      bool
	paused       bool
	onDone       func(error)
	plays        []*fakeSource
	overlaps     int
	stops        int
	disconnected bool
	moveErr      error
}

func (c *fakeConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *fakeConn) Move(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.moveErr != nil {
		return c.moveErr
	}
	c.channel = channelID
	return nil
}

func (c *fakeConn) Disconnect(context.Context) error {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Play(src stream.Source, onComplete func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing || c.paused {
		c.overlaps++
	}
	c.playing = true
	c.paused = false
	c.onDone = onComplete
	c.plays = append(c.plays, src.(*fakeSource))
	return nil
}

// Stop ends the active playback and fires its completion, like a transport
// whose reader hits a closed pipe.
func (c *fakeConn) Stop() {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
	c.complete(nil)
}

func (c *fakeConn) Pause() {
	c.mu.Lock()
	if c.playing {
		c.playing, c.paused = false, true
	}
	c.mu.Unlock()
}

func (c *fakeConn) Resume() {
	c.mu.Lock()
	if c.paused {
		c.playing, c.paused = true, false
	}
	c.mu.Unlock()
}

func (c *fakeConn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *fakeConn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// complete simulates the end of the active stream.
func (c *fakeConn) complete(err error) {
	c.mu.Lock()
	cb := c.onDone
	c.onDone = nil
	c.playing, c.paused = false, false
	c.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (c *fakeConn) playCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.plays)
}

func (c *fakeConn) overlapCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlaps
}

func (c *fakeConn) lastSource() *fakeSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.plays) == 0 {
		return nil
	}
	return c.plays[len(c.plays)-1]
}

type fakeConnector struct {
	mu    sync.Mutex
	err   error
	conns map[string]*fakeConn
}

func (f *fakeConnector) Connect(_ context.Context, guildID, channelID string) (Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.conns == nil {
		f.conns = make(map[string]*fakeConn)
	}
	c := &fakeConn{channel: channelID}
	f.conns[guildID] = c
	return c, nil
}

func (f *fakeConnector) conn(guildID string) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[guildID]
}

type fakeResolver struct {
	mu           sync.Mutex
	resolveErr   map[string]error
	openErr      map[string]error
	gates        map[string]chan struct{}
	resolveGates map[string]chan struct{}
	opening      chan string
	resolving    chan string
	opened       []string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		resolveErr:   make(map[string]error),
		openErr:      make(map[string]error),
		gates:        make(map[string]chan struct{}),
		resolveGates: make(map[string]chan struct{}),
		opening:      make(chan string, 16),
		resolving:    make(chan string, 16),
	}
}

// Resolve blocks on a resolve gate until it is closed, ignoring cancellation,
// like a lookup that finishes after its caller stopped waiting.
func (r *fakeResolver) Resolve(_ context.Context, query string) (track.Track, error) {
	r.mu.Lock()
	gate := r.resolveGates[query]
	err := r.resolveErr[query]
	r.mu.Unlock()

	if gate != nil {
		r.resolving <- query
		<-gate
	}
	if err != nil {
		return track.Track{}, err
	}
	return track.Track{Source: query, Title: query, Duration: 3 * time.Minute}, nil
}

func (r *fakeResolver) gateResolve(query string) chan struct{} {
	ch := make(chan struct{})
	r.mu.Lock()
	r.resolveGates[query] = ch
	r.mu.Unlock()
	return ch
}

func (r *fakeResolver) Open(ctx context.Context, t track.Track) (stream.Source, error) {
	r.mu.Lock()
	gate := r.gates[t.Source]
	r.mu.Unlock()

	r.opening <- t.Source
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, t.Source)
	if err := r.openErr[t.Source]; err != nil {
		return nil, err
	}
	return &fakeSource{name: t.Source, volume: 1}, nil
}

func (r *fakeResolver) failOpen(source string, err error) {
	r.mu.Lock()
	r.openErr[source] = err
	r.mu.Unlock()
}

func (r *fakeResolver) gate(source string) chan struct{} {
	ch := make(chan struct{})
	r.mu.Lock()
	r.gates[source] = ch
	r.mu.Unlock()
	return ch
}

func (r *fakeResolver) openedSources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event

	// onEvent runs inside Notify, on the goroutine that emitted ev.
	onEvent func(Event)
}

func (r *recorder) Notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	hook := r.onEvent
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) of(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type memPrefs struct {
	mu      sync.Mutex
	volumes map[string]int
}

func (p *memPrefs) GuildVolume(guildID string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.volumes[guildID]
	return v, ok
}

func (p *memPrefs) SetGuildVolume(guildID string, percent int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.volumes == nil {
		p.volumes = make(map[string]int)
	}
	p.volumes[guildID] = percent
	return nil
}

type harness struct {
	reg       *Registry
	connector *fakeConnector
	resolver  *fakeResolver
	events    *recorder
	prefs     *memPrefs
}

func newHarness(t *testing.T, maxFailures int) *harness {
	t.Helper()
	h := &harness{
		connector: &fakeConnector{},
		resolver:  newFakeResolver(),
		events:    &recorder{},
		prefs:     &memPrefs{},
	}
	h.reg = NewRegistry(Options{
		Connector:              h.connector,
		Resolver:               h.resolver,
		Notifier:               h.events,
		Jobs:                   jobmgr.NewManager(4, nil),
		Prefs:                  h.prefs,
		ResolveTimeout:         5 * time.Second,
		MaxConsecutiveFailures: maxFailures,
	})
	return h
}

func (h *harness) play(t *testing.T, s *Session, query string) PlayResult {
	t.Helper()
	res, err := s.EnqueueOrPlay(context.Background(), PlayRequest{
		Query:          query,
		VoiceChannelID: "voice-1",
		TextChannelID:  "text-1",
		RequestedBy:    "user-1",
	})
	if err != nil {
		t.Fatalf("EnqueueOrPlay(%q) error = %v", query, err)
	}
	return res
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func currentIs(s *Session, title string) func() bool {
	return func() bool {
		st := s.Status()
		if title == "" {
			return st.Current == nil && st.State == StateIdle
		}
		return st.Current != nil && st.Current.Title == title && st.State == StatePlaying
	}
}

func queueTitles(st Status) []string {
	out := make([]string, 0, len(st.Queue))
	for _, tr := range st.Queue {
		out = append(out, tr.Title)
	}
	return out
}

var errBroken = errors.New("broken link")
