// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DiscordToken          string        `env:"DISCORD_TOKEN,required,notEmpty"`
	DiscordGuildBlacklist []string      `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands     bool          `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	CommandPrefix         string        `env:"COMMAND_PREFIX" envDefault:"!"`
	StoragePath           string        `env:"STORAGE_PATH" envDefault:"datastore.json"`
	DefaultVolume         int           `env:"DEFAULT_VOLUME" envDefault:"50"`
	VoiceConnectTimeout   time.Duration `env:"VOICE_CONNECT_TIMEOUT" envDefault:"60s"`
	ResolverWorkers       int           `env:"RESOLVER_WORKERS" envDefault:"4"`
	ResolveTimeout        time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"30s"`
	MaxConsecutiveFails   int           `env:"MAX_CONSECUTIVE_FAILURES" envDefault:"5"`
	YouTubeProxy          string        `env:"YOUTUBE_PROXY"`
	YTDLPPath             string        `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	HTTPTimeout           time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
	LogLevel              string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile               string        `env:"LOG_FILE"`
}

// LoadDotenv reads .env files into the process environment. A missing file is not an error.
func LoadDotenv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Msg("No .env file found, falling back to system environment variables")
			return
		}
		log.Warn().Err(err).Msg("Failed to read .env file")
	}
}

// New loads .env and parses the environment into a validated Config.
func New() (*Config, error) {
	LoadDotenv()
	return Parse(env.Options{})
}

// Parse builds a Config from the environment (or opts.Environment when set).
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that struct tags cannot express.
func (c *Config) Validate() error {
	if c.DefaultVolume < 1 || c.DefaultVolume > 100 {
		return fmt.Errorf("DEFAULT_VOLUME must be between 1 and 100, got %d", c.DefaultVolume)
	}
	if c.ResolverWorkers < 1 {
		return fmt.Errorf("RESOLVER_WORKERS must be at least 1, got %d", c.ResolverWorkers)
	}
	if c.MaxConsecutiveFails < 1 {
		return fmt.Errorf("MAX_CONSECUTIVE_FAILURES must be at least 1, got %d", c.MaxConsecutiveFails)
	}
	if c.VoiceConnectTimeout <= 0 {
		return errors.New("VOICE_CONNECT_TIMEOUT must be positive")
	}
	if c.ResolveTimeout <= 0 {
		return errors.New("RESOLVE_TIMEOUT must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.CommandPrefix == "" {
		return errors.New("COMMAND_PREFIX must not be empty")
	}
	return nil
}

// DefaultVolumeFraction returns DefaultVolume as a fraction in [0, 1].
func (c *Config) DefaultVolumeFraction() float64 {
	return float64(c.DefaultVolume) / 100
}
