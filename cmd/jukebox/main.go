// cmd/jukebox/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/discord"
	"github.com/keshon/jukebox/internal/logger"
	"github.com/keshon/jukebox/internal/middleware"
	"github.com/keshon/jukebox/internal/music/session"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/sources/radio"
	"github.com/keshon/jukebox/internal/music/sources/youtube"
	"github.com/keshon/jukebox/internal/music/voice"
	"github.com/keshon/jukebox/internal/storage"
	v "github.com/keshon/jukebox/internal/version"
	"github.com/keshon/jukebox/pkg/cmd"
	"github.com/keshon/jukebox/pkg/jobmgr"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("[Main] Exiting")
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	logCloser, err := logger.Setup(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile}, os.Stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	l := logger.For("main")
	l.Info().Str("version", v.String()).Msg("[Main] Starting")

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Error().Err(err).Msg("[Main] Failed to flush storage")
		}
	}()

	yt, err := youtube.New(youtube.Options{
		Proxy:     cfg.YouTubeProxy,
		YTDLPPath: cfg.YTDLPPath,
		Timeout:   cfg.HTTPTimeout,
	})
	if err != nil {
		return err
	}
	resolver := sources.NewResolver(yt, radio.New(cfg.HTTPTimeout))

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return err
	}

	jobLog := logger.For("jobs")
	sessions := session.NewRegistry(session.Options{
		Connector: voice.NewConnector(dg),
		Resolver:  resolver,
		Notifier:  discord.NewAnnouncer(dg),
		Jobs: jobmgr.NewManager(cfg.ResolverWorkers, func(s string) {
			jobLog.Trace().Msg(s)
		}),
		Prefs:                  store,
		DefaultVolume:          cfg.DefaultVolumeFraction(),
		ConnectTimeout:         cfg.VoiceConnectTimeout,
		ResolveTimeout:         cfg.ResolveTimeout,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFails,
	})

	commands := cmd.NewRegistry()
	bot := discord.NewBot(dg, store, commands, discord.Options{
		Prefix:            cfg.CommandPrefix,
		InitSlashCommands: cfg.InitSlashCommands,
		GuildBlacklist:    cfg.DiscordGuildBlacklist,
	})

	handler := music.NewHandler(sessions, bot, cfg.CommandPrefix)
	mws := []cmd.Middleware{middleware.WithGuildOnly(), middleware.WithCommandLogger(store)}
	commands.Register(cmd.Apply(&music.MusicCommand{Handler: handler}, mws...))
	for _, a := range music.Actions(handler) {
		commands.Register(cmd.Apply(a, mws...))
	}
	l.Info().Strs("sources", resolver.Names()).Int("commands", len(commands.GetAll())).Msg("[Main] Commands registered")

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The gateway stays open until voice sessions are gone.
	runCtx, stopBot := context.WithCancel(context.Background())
	defer stopBot()
	errCh := make(chan error, 1)
	go func() { errCh <- bot.Run(runCtx) }()

	botDone := false
	select {
	case <-sigCtx.Done():
		l.Info().Msg("[Main] Signal received, shutting down")
	case err = <-errCh:
		botDone = true
		if err != nil {
			l.Error().Err(err).Msg("[Main] Discord bot error")
		}
	}

	l.Info().Int("sessions", sessions.Len()).Msg("[Main] Closing voice sessions")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := sessions.Shutdown(shutdownCtx); serr != nil {
		l.Warn().Err(serr).Msg("[Main] Some voice sessions did not close cleanly")
	}
	stopBot()
	if !botDone {
		err = <-errCh
	}

	l.Info().Msg("[Main] Exited cleanly")
	return err
}
