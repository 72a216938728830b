package music

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/logger"
	"github.com/keshon/jukebox/internal/music/session"
)

// Subcommand names shared by the slash and prefix surfaces.
const (
	SubJoin       = "join"
	SubLeave      = "leave"
	SubPlay       = "play"
	SubPause      = "pause"
	SubResume     = "resume"
	SubStop       = "stop"
	SubSkip       = "skip"
	SubQueue      = "queue"
	SubVolume     = "volume"
	SubNowPlaying = "nowplaying"
	SubHelp       = "help"
)

// VoiceLocator reports the voice channel a member is currently in.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) string
}

// Handler maps music subcommands onto guild sessions.
type Handler struct {
	Sessions *session.Registry
	Voice    VoiceLocator
	Prefix   string

	log zerolog.Logger
}

func NewHandler(sessions *session.Registry, voice VoiceLocator, prefix string) *Handler {
	return &Handler{
		Sessions: sessions,
		Voice:    voice,
		Prefix:   prefix,
		log:      logger.For("music"),
	}
}

// Handle runs one subcommand and returns its single reply.
func (h *Handler) Handle(ctx context.Context, caller command.Caller, sub, arg string) command.Reply {
	if sub == SubHelp {
		return helpReply(h.Prefix)
	}

	s := h.Sessions.GetOrCreate(caller.GuildID)
	voiceChannel := ""
	if h.Voice != nil {
		voiceChannel = h.Voice.UserVoiceChannel(caller.GuildID, caller.UserID)
	}

	switch sub {
	case SubJoin:
		if voiceChannel == "" {
			return errorReply(session.ErrNotInVoiceChannel)
		}
		res, err := s.Join(ctx, voiceChannel)
		if err != nil {
			return errorReply(err)
		}
		return joinReply(res)

	case SubLeave:
		if err := s.Leave(ctx); err != nil {
			return errorReply(err)
		}
		return command.Info("👋 Left", "Disconnected and cleared the queue.")

	case SubPlay:
		query := strings.TrimSpace(arg)
		if query == "" {
			return command.Failure(fmt.Sprintf("Usage: `%splay <link or search>`", h.Prefix))
		}
		res, err := s.EnqueueOrPlay(ctx, session.PlayRequest{
			Query:          query,
			VoiceChannelID: voiceChannel,
			TextChannelID:  caller.ChannelID,
			RequestedBy:    caller.UserID,
		})
		if err != nil {
			h.log.Debug().Err(err).Str("guild", caller.GuildID).Str("query", query).Msg("[Music] Play failed")
			return errorReply(err)
		}
		return playReply(res)

	case SubPause:
		if err := s.Pause(); err != nil {
			return errorReply(err)
		}
		return command.Info("⏸️ Paused", "Use resume to continue.")

	case SubResume:
		if err := s.Resume(); err != nil {
			return errorReply(err)
		}
		return command.Info("▶️ Resumed", "")

	case SubStop:
		if err := s.Stop(); err != nil {
			return errorReply(err)
		}
		return command.Info("⏹️ Stopped", "Playback stopped and queue cleared.")

	case SubSkip:
		if err := s.Skip(); err != nil {
			return errorReply(err)
		}
		return command.Info("⏭️ Skipped", "")

	case SubQueue:
		return queueReply(s.Status())

	case SubVolume:
		arg = strings.TrimSuffix(strings.TrimSpace(arg), "%")
		if arg == "" {
			return command.Info("🔊 Volume", fmt.Sprintf("Volume is %d%%.", percent(s.Volume())))
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return errorReply(session.ErrOutOfRange)
		}
		if err := s.SetVolume(n); err != nil {
			return errorReply(err)
		}
		return command.Info("🔊 Volume", fmt.Sprintf("Volume set to %d%%.", n))

	case SubNowPlaying:
		t, err := s.NowPlaying()
		if err != nil {
			return errorReply(err)
		}
		return nowPlayingReply(t)

	default:
		return command.Failure(fmt.Sprintf("Unknown music command %q.", sub))
	}
}
