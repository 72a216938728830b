package discord

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/logger"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
)

// Options configures the gateway runtime.
type Options struct {
	Prefix            string
	InitSlashCommands bool
	GuildBlacklist    []string
}

// Bot is a Discord bot: it owns the gateway handlers and dispatches
// interactions and prefixed messages to the command registry.
type Bot struct {
	dg       *discordgo.Session
	storage  *storage.Storage
	commands *cmd.Registry
	opts     Options
	log      zerolog.Logger

	mu          sync.Mutex
	slashHashes map[string]string // guildID -> hash of the last registered set
}

// NewBot wires handlers onto dg. The session is opened by Run.
func NewBot(dg *discordgo.Session, store *storage.Storage, commands *cmd.Registry, opts Options) *Bot {
	b := &Bot{
		dg:          dg,
		storage:     store,
		commands:    commands,
		opts:        opts,
		log:         logger.For("discord"),
		slashHashes: make(map[string]string),
	}

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onMessageCreate)
	return b
}

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("[Discord] Shutdown signal received, closing gateway")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(s, g.ID, g.Name) {
			continue
		}
		b.syncCommands(g.ID)
	}
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("[Discord] Bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.leaveIfBlacklisted(s, g.ID, g.Name) {
		return
	}
	b.syncCommands(g.ID)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	c, ok := b.commands.Get(data.Name)
	if !ok {
		b.log.Warn().Str("command", data.Name).Msg("[Discord] Unknown command")
		return
	}

	ctx := &command.SlashInteractionContext{Session: s, Event: i, Storage: b.storage}
	b.run(c, slashArgs(data.Options), ctx)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	name, args, ok := parsePrefixed(m.Content, b.opts.Prefix)
	if !ok {
		return
	}
	c, ok := b.commands.Get(name)
	if !ok {
		return
	}

	ctx := &command.MessageContext{Session: s, Event: m, Storage: b.storage}
	b.run(c, args, ctx)
}

// run executes c and turns an unhandled error into the single reply.
func (b *Bot) run(c cmd.Command, args []string, dc command.Context) {
	inv := &cmd.Invocation{Args: args, Data: dc}
	if err := c.Run(context.Background(), inv); err != nil {
		b.log.Error().Err(err).Str("command", c.Name()).Msg("[Discord] Command failed")
		if rerr := dc.Reply(command.Failure(fmt.Sprintf("Error running command: %v", err))); rerr != nil {
			b.log.Warn().Err(rerr).Msg("[Discord] Failed to send error reply")
		}
	}
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID, name string) bool {
	if !slices.Contains(b.opts.GuildBlacklist, guildID) {
		return false
	}
	b.log.Info().Str("guild", guildID).Str("name", name).Msg("[Discord] Leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("[Discord] Failed to leave guild")
	}
	return true
}

// UserVoiceChannel returns the voice channel userID is in, from the gateway
// cache, or "" when the user is not in voice.
func (b *Bot) UserVoiceChannel(guildID, userID string) string {
	return userVoiceChannel(b.dg.State, guildID, userID)
}

func userVoiceChannel(state *discordgo.State, guildID, userID string) string {
	if state == nil {
		return ""
	}
	vs, err := state.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}
