package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/logger"
	"github.com/keshon/jukebox/internal/music/session"
)

const sendTimeout = 5 * time.Second

// Connector joins voice channels through a discordgo session.
type Connector struct {
	dg         *discordgo.Session
	newEncoder func() (Encoder, error)
	log        zerolog.Logger
}

func NewConnector(dg *discordgo.Session) *Connector {
	return &Connector{
		dg:         dg,
		newEncoder: newOpusEncoder,
		log:        logger.For("voice"),
	}
}

// Connect joins channelID deafened, giving up when ctx ends. A join that
// completes after the deadline is disconnected again.
func (c *Connector) Connect(ctx context.Context, guildID, channelID string) (session.Connection, error) {
	type result struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	done := make(chan result, 1)
	go func() {
		vc, err := c.dg.ChannelVoiceJoin(guildID, channelID, false, true)
		done <- result{vc, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if r.vc != nil {
				_ = r.vc.Disconnect()
			}
			return nil, r.err
		}
		l := c.log.With().Str("guild", guildID).Logger()
		return newConn(&discordLink{vc: r.vc}, c.newEncoder, l), nil

	case <-ctx.Done():
		go func() {
			if r := <-done; r.vc != nil {
				_ = r.vc.Disconnect()
			}
		}()
		return nil, fmt.Errorf("voice join: %w", ctx.Err())
	}
}

type discordLink struct {
	vc *discordgo.VoiceConnection
}

func (l *discordLink) ChannelID() string {
	l.vc.RLock()
	defer l.vc.RUnlock()
	return l.vc.ChannelID
}

func (l *discordLink) ChangeChannel(channelID string) error {
	return l.vc.ChangeChannel(channelID, false, true)
}

func (l *discordLink) Disconnect() error { return l.vc.Disconnect() }

func (l *discordLink) Speaking(on bool) error { return l.vc.Speaking(on) }

func (l *discordLink) Send(stop <-chan struct{}, packet []byte) error {
	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	select {
	case l.vc.OpusSend <- packet:
		return nil
	case <-stop:
		return errStopped
	case <-timer.C:
		return errors.New("voice send timed out")
	}
}
