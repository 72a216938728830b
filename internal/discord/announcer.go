package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/logger"
	"github.com/keshon/jukebox/internal/music/session"
)

type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Announcer posts session events to the text channel of the latest play
// command. It implements session.Notifier.
type Announcer struct {
	send embedSender
	log  zerolog.Logger
}

func NewAnnouncer(dg *discordgo.Session) *Announcer {
	return newAnnouncer(dg)
}

func newAnnouncer(send embedSender) *Announcer {
	return &Announcer{send: send, log: logger.For("announcer")}
}

func (a *Announcer) Notify(ev session.Event) {
	if ev.ChannelID == "" {
		a.log.Debug().Str("guild", ev.GuildID).Stringer("event", ev.Kind).Msg("[Announcer] No channel to announce in")
		return
	}
	reply, ok := music.EventReply(ev)
	if !ok {
		return
	}
	if _, err := a.send.ChannelMessageSendEmbed(ev.ChannelID, reply.Embed()); err != nil {
		a.log.Warn().Err(err).Str("guild", ev.GuildID).Stringer("event", ev.Kind).Msg("[Announcer] Failed to post")
	}
}
