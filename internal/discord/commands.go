package discord

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

// syncCommands overwrites the guild's slash commands when the local set
// changed since the last registration.
func (b *Bot) syncCommands(guildID string) {
	if !b.opts.InitSlashCommands {
		b.log.Debug().Str("guild", guildID).Msg("[Discord] Registering slash commands skipped")
		return
	}

	defs := slashDefinitions(b.commands)
	hash := hashCommands(defs)

	b.mu.Lock()
	unchanged := b.slashHashes[guildID] == hash
	b.mu.Unlock()
	if unchanged {
		return
	}

	appID := b.dg.State.User.ID
	if _, err := b.dg.ApplicationCommandBulkOverwrite(appID, guildID, defs); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("[Discord] Failed to register slash commands")
		return
	}

	b.mu.Lock()
	b.slashHashes[guildID] = hash
	b.mu.Unlock()
	b.log.Info().Str("guild", guildID).Int("commands", len(defs)).Msg("[Discord] Slash commands registered")
}

// slashDefinitions collects definitions of registered slash commands.
func slashDefinitions(r *cmd.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range r.GetAll() {
		sp, ok := cmd.Root(c).(command.SlashProvider)
		if !ok {
			continue
		}
		def := sp.SlashDefinition()
		if def == nil {
			continue
		}
		if def.Type == 0 {
			def.Type = discordgo.ChatApplicationCommand
		}
		defs = append(defs, def)
	}
	return defs
}

// slashArgs flattens options into invocation arguments: subcommand names
// first, then option values in declaration order.
func slashArgs(opts []*discordgo.ApplicationCommandInteractionDataOption) []string {
	var args []string
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			args = append(args, o.Name)
			args = append(args, slashArgs(o.Options)...)
		default:
			args = append(args, fmt.Sprint(o.Value))
		}
	}
	return args
}

// parsePrefixed splits "!play some song" into "play" and its arguments.
func parsePrefixed(content, prefix string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// hashCommands produces a deterministic digest of the definitions, ignoring
// runtime fields such as IDs and versions.
func hashCommands(defs []*discordgo.ApplicationCommand) string {
	normalized := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		entry := map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"type":        d.Type,
		}
		if len(d.Options) > 0 {
			entry["options"] = normalizeOptions(d.Options)
		}
		normalized = append(normalized, entry)
	}
	sort.Slice(normalized, func(i, j int) bool {
		return normalized[i]["name"].(string) < normalized[j]["name"].(string)
	})

	data, _ := json.Marshal(normalized)
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
			"max":         o.MaxValue,
		}
		if o.MinValue != nil {
			entry["min"] = *o.MinValue
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, c := range o.Choices {
				choices[j] = map[string]any{"name": c.Name, "value": c.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}
