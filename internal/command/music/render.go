package music

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/session"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/pkg/util"
)

// queueListLimit caps listed entries so the embed stays under Discord's size limit.
const queueListLimit = 15

func joinReply(res session.JoinResult) command.Reply {
	switch res {
	case session.Moved:
		return command.Info("🎧 Moved", "Moved to your voice channel.")
	case session.AlreadyConnected:
		return command.Info("🎧 Connected", "Already in your voice channel.")
	default:
		return command.Info("🎧 Joined", "Joined your voice channel.")
	}
}

func playReply(res session.PlayResult) command.Reply {
	if res.Status == session.PlayQueued {
		return command.Info("➕ Added to queue",
			fmt.Sprintf("%s\nPosition: %d", trackLine(res.Track), res.Position))
	}
	return command.Info("🎶 Now playing", trackLine(res.Track))
}

func nowPlayingReply(t track.Track) command.Reply {
	return command.Info("🎶 Now playing", fmt.Sprintf("%s\nDuration: %s", trackLine(t), t.DurationString()))
}

// queueReply lists the current track and the queue with 1-based positions
// and the total known duration.
func queueReply(st session.Status) command.Reply {
	if st.Current == nil && len(st.Queue) == 0 {
		return command.Info("📜 Queue", "The queue is empty.")
	}

	var b strings.Builder
	if st.Current != nil {
		fmt.Fprintf(&b, "**Now (%s):** %s\n", st.State, trackLine(*st.Current))
	}
	if len(st.Queue) == 0 {
		b.WriteString("Nothing queued.")
	}
	for i, t := range st.Queue {
		if i == queueListLimit {
			fmt.Fprintf(&b, "…and %d more\n", len(st.Queue)-queueListLimit)
			break
		}
		fmt.Fprintf(&b, "%d. %s `%s`\n", i+1, trackLine(t), t.DurationString())
	}

	r := command.Info("📜 Queue", strings.TrimRight(b.String(), "\n"))
	if len(st.Queue) > 0 {
		r.Fields = append(r.Fields, command.Field{
			Name:  "Total",
			Value: fmt.Sprintf("%d tracks, %s", len(st.Queue), util.FormatDuration(track.TotalDuration(st.Queue))),
		})
	}
	r.Fields = append(r.Fields, command.Field{Name: "Volume", Value: fmt.Sprintf("%d%%", percent(st.Volume))})
	return r
}

func helpReply(prefix string) command.Reply {
	lines := []string{
		fmt.Sprintf("`%sjoin` join your voice channel", prefix),
		fmt.Sprintf("`%sleave` leave and clear the queue", prefix),
		fmt.Sprintf("`%splay <link or search>` play now or add to the queue", prefix),
		fmt.Sprintf("`%spause` / `%sresume`", prefix, prefix),
		fmt.Sprintf("`%sstop` stop and clear the queue", prefix),
		fmt.Sprintf("`%sskip` play the next track", prefix),
		fmt.Sprintf("`%squeue` (`%sq`) show the queue", prefix, prefix),
		fmt.Sprintf("`%svolume [0-100]` (`%svol`) show or set the volume", prefix, prefix),
		fmt.Sprintf("`%snowplaying` (`%snp`) show the current track", prefix, prefix),
		"Slash: `/music <subcommand>`",
	}
	return command.Info("🎵 Music commands", strings.Join(lines, "\n"))
}

// errorReply maps session errors to user-facing messages.
func errorReply(err error) command.Reply {
	switch {
	case errors.Is(err, session.ErrNotInVoiceChannel):
		return command.Failure("You need to be in a voice channel.")
	case errors.Is(err, session.ErrConnectionFailed):
		return command.Failure("Could not connect to your voice channel.")
	case errors.Is(err, session.ErrNotConnected):
		return command.Failure("I'm not in a voice channel.")
	case errors.Is(err, session.ErrNothingPlaying):
		return command.Failure("Nothing is playing.")
	case errors.Is(err, session.ErrNotPaused):
		return command.Failure("Playback is not paused.")
	case errors.Is(err, session.ErrSuperseded):
		return command.Failure("Playback was stopped before the track could start.")
	case errors.Is(err, session.ErrOutOfRange):
		return command.Failure("Volume must be a number between 0 and 100.")
	case errors.Is(err, session.ErrResolutionFailed):
		return command.Failure(fmt.Sprintf("Could not play that: %s", rootCause(err)))
	case errors.Is(err, session.ErrInvalidState):
		return command.Failure("That is not possible right now.")
	default:
		return command.Failure(err.Error())
	}
}

// EventReply renders a session announcement. It reports false for events
// that are not announced.
func EventReply(ev session.Event) (command.Reply, bool) {
	switch ev.Kind {
	case session.EventNowPlaying:
		return command.Info("🎶 Now playing", trackLine(ev.Track)), true
	case session.EventQueueEmpty:
		return command.Info("📭 Queue finished", "Nothing left to play."), true
	case session.EventTrackFailed:
		return command.Failure(fmt.Sprintf("Skipped %s: %s", trackLine(ev.Track), rootCause(ev.Err))), true
	case session.EventPlaybackError:
		return command.Failure(fmt.Sprintf("Playback of %s stopped: %s", trackLine(ev.Track), rootCause(ev.Err))), true
	case session.EventGaveUp:
		return command.Failure(fmt.Sprintf("%d tracks in a row failed. The rest of the queue is kept; use play or skip to continue.", ev.Failures)), true
	default:
		return command.Reply{}, false
	}
}

func trackLine(t track.Track) string {
	title := escape(t.DisplayTitle())
	if t.URL != "" && t.URL != t.Title {
		return fmt.Sprintf("[%s](%s)", title, t.URL)
	}
	return "**" + title + "**"
}

// rootCause returns the innermost message of a wrapped error chain. For
// "%w: %w" errors the cause is the last wrapped error.
func rootCause(err error) string {
	if err == nil {
		return "unknown error"
	}
	for {
		var next error
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			if errs := u.Unwrap(); len(errs) > 0 {
				next = errs[len(errs)-1]
			}
		case interface{ Unwrap() error }:
			next = u.Unwrap()
		}
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}

var markdown = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "[", "\\[", "]", "\\]")

func escape(s string) string {
	return markdown.Replace(s)
}
