package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
)

type fakeCommand struct {
	runs int
	err  error
}

func (f *fakeCommand) Name() string        { return "play" }
func (f *fakeCommand) Description() string { return "fake" }
func (f *fakeCommand) Run(context.Context, *cmd.Invocation) error {
	f.runs++
	return f.err
}

type fakeContext struct {
	caller  command.Caller
	replies []command.Reply
}

func (c *fakeContext) Caller() command.Caller { return c.caller }
func (c *fakeContext) Defer() error           { return nil }
func (c *fakeContext) Reply(r command.Reply) error {
	c.replies = append(c.replies, r)
	return nil
}

type fakeStore struct {
	guild string
	recs  []storage.CommandHistoryRecord
}

func (s *fakeStore) AppendCommandToHistory(guildID string, rec storage.CommandHistoryRecord) error {
	s.guild = guildID
	s.recs = append(s.recs, rec)
	return nil
}

func TestWithGuildOnly(t *testing.T) {
	tests := []struct {
		name     string
		guildID  string
		wantRuns int
		wantErr  bool
	}{
		{"guild", "g1", 1, false},
		{"direct message", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &fakeCommand{}
			c := cmd.Apply(inner, WithGuildOnly())
			dc := &fakeContext{caller: command.Caller{GuildID: tt.guildID}}

			if err := c.Run(context.Background(), &cmd.Invocation{Data: dc}); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if inner.runs != tt.wantRuns {
				t.Errorf("runs = %d, want %d", inner.runs, tt.wantRuns)
			}
			if got := len(dc.replies) == 1 && dc.replies[0].Error; got != tt.wantErr {
				t.Errorf("error reply = %v, want %v", got, tt.wantErr)
			}
		})
	}
}

func TestWithCommandLogger(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	runErr := errors.New("boom")
	inner := &fakeCommand{err: runErr}
	store := &fakeStore{}
	c := cmd.Apply(inner, WithCommandLogger(store))

	dc := &fakeContext{caller: command.Caller{
		GuildID: "g1", ChannelID: "c1", ChannelName: "music", UserID: "u1", Username: "alice",
	}}
	err := c.Run(context.Background(), &cmd.Invocation{Args: []string{"never", "gonna"}, Data: dc})
	if !errors.Is(err, runErr) {
		t.Fatalf("Run() error = %v, want %v", err, runErr)
	}

	if store.guild != "g1" || len(store.recs) != 1 {
		t.Fatalf("history = %q %+v", store.guild, store.recs)
	}
	want := storage.CommandHistoryRecord{
		ChannelID: "c1", ChannelName: "music", UserID: "u1", Username: "alice",
		Command: "play", Param: "never gonna", Datetime: fixed,
	}
	if store.recs[0] != want {
		t.Errorf("record = %+v, want %+v", store.recs[0], want)
	}
}

func TestWithCommandLoggerSkipsDirectMessages(t *testing.T) {
	store := &fakeStore{}
	c := cmd.Apply(&fakeCommand{}, WithCommandLogger(store))
	if err := c.Run(context.Background(), &cmd.Invocation{Data: &fakeContext{}}); err != nil {
		t.Fatal(err)
	}
	if len(store.recs) != 0 {
		t.Errorf("recorded %d entries for a direct message", len(store.recs))
	}
}
