// Package middleware holds cmd.Middleware implementations shared by the
// Discord command surfaces.
package middleware

import (
	"context"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/logger"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
)

// HistoryStore records executed commands.
type HistoryStore interface {
	AppendCommandToHistory(guildID string, rec storage.CommandHistoryRecord) error
}

// WithGuildOnly rejects invocations that do not come from a guild channel.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			dc, ok := inv.Data.(command.Context)
			if ok && dc.Caller().GuildID == "" {
				return dc.Reply(command.Failure("This command only works in a server."))
			}
			return c.Run(ctx, inv)
		})
	}
}

// WithCommandLogger logs each invocation and appends it to the guild's
// command history after it ran.
func WithCommandLogger(store HistoryStore) cmd.Middleware {
	log := logger.For("commands")
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			err := c.Run(ctx, inv)

			dc, ok := inv.Data.(command.Context)
			if !ok {
				return err
			}
			caller := dc.Caller()
			param := joinArgs(inv.Args)

			ev := log.Info()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			ev.Str("guild", caller.GuildID).
				Str("user", caller.Username).
				Str("command", c.Name()).
				Str("param", param).
				Msg("[Commands] Executed")

			if store == nil || caller.GuildID == "" {
				return err
			}
			rec := storage.CommandHistoryRecord{
				ChannelID:   caller.ChannelID,
				ChannelName: caller.ChannelName,
				GuildName:   caller.GuildName,
				UserID:      caller.UserID,
				Username:    caller.Username,
				Command:     c.Name(),
				Param:       param,
				Datetime:    now(),
			}
			if e := store.AppendCommandToHistory(caller.GuildID, rec); e != nil {
				log.Warn().Err(e).Str("command", c.Name()).Msg("[Commands] Failed to record history")
			}
			return err
		})
	}
}
