package command

import (
	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/storage"
)

// Caller identifies who invoked a command and where.
type Caller struct {
	GuildID     string
	GuildName   string
	ChannelID   string
	ChannelName string
	UserID      string
	Username    string
}

// Context is what every Discord runtime context offers a command: the caller
// and a way to answer exactly once.
type Context interface {
	Caller() Caller
	// Defer acknowledges a slow command. Reply still sends the answer.
	Defer() error
	Reply(Reply) error
}

// SlashProvider is implemented by commands registered as slash commands.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// SlashInteractionContext is passed to commands invoked as slash commands.
type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage

	deferred bool
}

func (c *SlashInteractionContext) Caller() Caller {
	e := c.Event
	caller := Caller{GuildID: e.GuildID, ChannelID: e.ChannelID}
	switch {
	case e.Member != nil && e.Member.User != nil:
		caller.UserID, caller.Username = e.Member.User.ID, e.Member.User.Username
	case e.User != nil:
		caller.UserID, caller.Username = e.User.ID, e.User.Username
	}
	caller.GuildName, caller.ChannelName = stateNames(c.Session, e.GuildID, e.ChannelID)
	return caller
}

func (c *SlashInteractionContext) Defer() error {
	if c.deferred {
		return nil
	}
	err := c.Session.InteractionRespond(c.Event.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err == nil {
		c.deferred = true
	}
	return err
}

func (c *SlashInteractionContext) Reply(r Reply) error {
	embed := r.Embed()
	if c.deferred {
		_, err := c.Session.FollowupMessageCreate(c.Event.Interaction, true, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{embed},
		})
		return err
	}

	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if r.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return c.Session.InteractionRespond(c.Event.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// MessageContext is passed to commands invoked with the text prefix.
type MessageContext struct {
	Session *discordgo.Session
	Event   *discordgo.MessageCreate
	Storage *storage.Storage
}

func (c *MessageContext) Caller() Caller {
	m := c.Event
	caller := Caller{GuildID: m.GuildID, ChannelID: m.ChannelID}
	if m.Author != nil {
		caller.UserID, caller.Username = m.Author.ID, m.Author.Username
	}
	caller.GuildName, caller.ChannelName = stateNames(c.Session, m.GuildID, m.ChannelID)
	return caller
}

func (c *MessageContext) Defer() error {
	return c.Session.ChannelTyping(c.Event.ChannelID)
}

func (c *MessageContext) Reply(r Reply) error {
	_, err := c.Session.ChannelMessageSendEmbedReply(c.Event.ChannelID, r.Embed(), c.Event.Reference())
	return err
}

// stateNames reads guild and channel names from the gateway cache only.
func stateNames(s *discordgo.Session, guildID, channelID string) (guild, channel string) {
	if s == nil || s.State == nil {
		return "", ""
	}
	if g, err := s.State.Guild(guildID); err == nil {
		guild = g.Name
	}
	if ch, err := s.State.Channel(channelID); err == nil {
		channel = ch.Name
	}
	return guild, channel
}
