package music

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

var errNoContext = errors.New("music: invocation without a Discord context")

// slowSubs resolve tracks or join voice, so the reply is deferred first.
var slowSubs = map[string]bool{SubJoin: true, SubLeave: true, SubPlay: true}

// MusicCommand is the /music slash command. The subcommand and its value
// arrive as the first two invocation arguments.
type MusicCommand struct {
	Handler *Handler
}

func (c *MusicCommand) Name() string        { return "music" }
func (c *MusicCommand) Description() string { return "Control music playback" }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	sub := func(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: desc,
			Options:     opts,
		}
	}
	minVolume, maxVolume := 0.0, 100.0

	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			sub(SubJoin, "Join your voice channel"),
			sub(SubLeave, "Leave the voice channel and clear the queue"),
			sub(SubPlay, "Play a track or add it to the queue", &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "input",
				Description: "Link or search query",
				Required:    true,
			}),
			sub(SubPause, "Pause playback"),
			sub(SubResume, "Resume playback"),
			sub(SubStop, "Stop playback and clear the queue"),
			sub(SubSkip, "Skip to the next track"),
			sub(SubQueue, "Show the queue"),
			sub(SubVolume, "Show or set the volume", &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "percent",
				Description: "Volume from 0 to 100",
				MinValue:    &minVolume,
				MaxValue:    maxVolume,
			}),
			sub(SubNowPlaying, "Show the current track"),
			sub(SubHelp, "List music commands"),
		},
	}
}

func (c *MusicCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	sub := strings.ToLower(inv.Arg(0))
	var arg string
	if len(inv.Args) > 1 {
		arg = strings.Join(inv.Args[1:], " ")
	}
	return run(ctx, c.Handler, inv, sub, arg)
}

// Action is one music subcommand exposed under the text prefix, e.g. !play.
type Action struct {
	handler *Handler
	sub     string
	name    string
	desc    string
	aliases []string
}

func (a *Action) Name() string        { return a.name }
func (a *Action) Description() string { return a.desc }
func (a *Action) Aliases() []string   { return a.aliases }

func (a *Action) Run(ctx context.Context, inv *cmd.Invocation) error {
	return run(ctx, a.handler, inv, a.sub, strings.Join(inv.Args, " "))
}

// Actions returns the prefix commands.
func Actions(h *Handler) []cmd.Command {
	defs := []struct {
		sub, name, desc string
		aliases         []string
	}{
		{SubJoin, "join", "Join your voice channel", nil},
		{SubLeave, "leave", "Leave the voice channel", nil},
		{SubPlay, "play", "Play a track or add it to the queue", nil},
		{SubPause, "pause", "Pause playback", nil},
		{SubResume, "resume", "Resume playback", nil},
		{SubStop, "stop", "Stop playback and clear the queue", nil},
		{SubSkip, "skip", "Skip to the next track", nil},
		{SubQueue, "queue", "Show the queue", []string{"q"}},
		{SubVolume, "volume", "Show or set the volume", []string{"vol"}},
		{SubNowPlaying, "nowplaying", "Show the current track", []string{"np"}},
		{SubHelp, "help_music", "List music commands", nil},
	}

	out := make([]cmd.Command, 0, len(defs))
	for _, d := range defs {
		out = append(out, &Action{handler: h, sub: d.sub, name: d.name, desc: d.desc, aliases: d.aliases})
	}
	return out
}

func run(ctx context.Context, h *Handler, inv *cmd.Invocation, sub, arg string) error {
	dc, ok := inv.Data.(command.Context)
	if !ok {
		return errNoContext
	}
	if slowSubs[sub] {
		if err := dc.Defer(); err != nil {
			h.log.Warn().Err(err).Str("sub", sub).Msg("[Music] Failed to defer reply")
		}
	}
	return dc.Reply(h.Handle(ctx, dc.Caller(), sub, arg))
}
