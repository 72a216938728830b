package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/logger"
	"github.com/keshon/jukebox/pkg/jobmgr"
	"github.com/keshon/jukebox/pkg/util"
)

const (
	DefaultVolume                 = 0.5
	DefaultConnectTimeout         = 60 * time.Second
	DefaultResolveTimeout         = 30 * time.Second
	DefaultMaxConsecutiveFailures = 5
)

// Options wires a Registry to its collaborators. Connector and Resolver are
// required; everything else has a default.
type Options struct {
	Connector Connector
	Resolver  Resolver
	Notifier  Notifier
	Jobs      *jobmgr.Manager
	Prefs     Preferences

	DefaultVolume          float64 // fraction in [0, 1]
	ConnectTimeout         time.Duration
	ResolveTimeout         time.Duration
	MaxConsecutiveFailures int
}

// environment is what every session of a registry shares.
type environment struct {
	connector      Connector
	resolver       Resolver
	notifier       Notifier
	jobs           *jobmgr.Manager
	prefs          Preferences
	connectTimeout time.Duration
	resolveTimeout time.Duration
	maxFailures    int
	log            zerolog.Logger
}

// Registry maps guild IDs to sessions. Sessions are created on first use and
// live until the process exits.
type Registry struct {
	env           *environment
	defaultVolume float64

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(opts Options) *Registry {
	env := &environment{
		connector:      opts.Connector,
		resolver:       opts.Resolver,
		notifier:       opts.Notifier,
		jobs:           opts.Jobs,
		prefs:          opts.Prefs,
		connectTimeout: opts.ConnectTimeout,
		resolveTimeout: opts.ResolveTimeout,
		maxFailures:    opts.MaxConsecutiveFailures,
		log:            logger.For("session"),
	}
	if env.notifier == nil {
		env.notifier = nopNotifier{}
	}
	if env.jobs == nil {
		env.jobs = jobmgr.NewManager(4, nil)
	}
	if env.connectTimeout <= 0 {
		env.connectTimeout = DefaultConnectTimeout
	}
	if env.resolveTimeout <= 0 {
		env.resolveTimeout = DefaultResolveTimeout
	}
	if env.maxFailures <= 0 {
		env.maxFailures = DefaultMaxConsecutiveFailures
	}

	vol := opts.DefaultVolume
	if vol <= 0 || vol > 1 {
		vol = DefaultVolume
	}

	return &Registry{
		env:           env,
		defaultVolume: vol,
		sessions:      make(map[string]*Session),
	}
}

// GetOrCreate returns the session for guildID, creating an idle one on first
// access. Concurrent first calls for the same guild get the same session.
func (r *Registry) GetOrCreate(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok {
		return s
	}

	vol := r.defaultVolume
	if r.env.prefs != nil {
		if pct, ok := r.env.prefs.GuildVolume(guildID); ok && pct >= 0 && pct <= 100 {
			vol = float64(pct) / 100
		}
	}
	s := newSession(guildID, r.env, vol)
	r.sessions[guildID] = s
	r.env.log.Debug().Str("guild", guildID).Float64("volume", vol).Msg("[Registry] Created session")
	return s
}

// Lookup returns the session for guildID without creating it.
func (r *Registry) Lookup(guildID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown disconnects every connected session.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	return util.Parallel(ctx, all, 8, func(ctx context.Context, s *Session) error {
		if err := s.Leave(ctx); err != nil && !errors.Is(err, ErrNotConnected) {
			return err
		}
		return nil
	})
}
