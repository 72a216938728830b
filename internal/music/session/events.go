package session

import "github.com/keshon/jukebox/internal/music/track"

type EventKind int

const (
	EventNowPlaying EventKind = iota
	EventQueueEmpty
	EventTrackFailed
	EventPlaybackError
	EventGaveUp
)

func (k EventKind) String() string {
	switch k {
	case EventNowPlaying:
		return "now_playing"
	case EventQueueEmpty:
		return "queue_empty"
	case EventTrackFailed:
		return "track_failed"
	case EventPlaybackError:
		return "playback_error"
	case EventGaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// Event is an announcement the playback loop makes outside of any command reply.
type Event struct {
	Kind      EventKind
	GuildID   string
	ChannelID string // text channel of the most recent play command
	Track     track.Track
	Err       error
	Failures  int // consecutive failed starts, for EventGaveUp
}

// Notifier receives playback announcements. Notify is never called with a
// session lock held, so implementations may block on network I/O.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
