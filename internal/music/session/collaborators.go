package session

import (
	"context"

	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/music/track"
)

// Resolver turns user input into tracks and tracks into audio.
type Resolver interface {
	// Resolve accepts a URL or free-text query (first search result wins).
	Resolve(ctx context.Context, query string) (track.Track, error)
	// Open returns a streamable handle; it must not download the whole file.
	Open(ctx context.Context, t track.Track) (stream.Source, error)
}

// Connector opens voice connections. Implementations honour ctx's deadline.
type Connector interface {
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Connection is a live voice channel attachment playing one source at a time.
type Connection interface {
	ChannelID() string
	Move(ctx context.Context, channelID string) error
	Disconnect(ctx context.Context) error

	// Play starts src and owns it from then on; on error the caller keeps it.
	// onComplete runs exactly once per successful Play,
	// on the connection's goroutine, after IsPlaying and IsPaused report false.
	Play(src stream.Source, onComplete func(err error)) error
	Stop()
	Pause()
	Resume()
	IsPlaying() bool
	IsPaused() bool
}

// Preferences persists per-guild settings that outlive the process.
type Preferences interface {
	GuildVolume(guildID string) (percent int, ok bool)
	SetGuildVolume(guildID string, percent int) error
}
