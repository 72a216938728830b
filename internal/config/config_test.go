package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func parseWith(t *testing.T, vars map[string]string) (*Config, error) {
	t.Helper()
	return Parse(env.Options{Environment: vars})
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parseWith(t, map[string]string{"DISCORD_TOKEN": "abc"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.DiscordToken != "abc" {
		t.Errorf("DiscordToken = %q, want %q", cfg.DiscordToken, "abc")
	}
	if cfg.CommandPrefix != "!" {
		t.Errorf("CommandPrefix = %q, want %q", cfg.CommandPrefix, "!")
	}
	if cfg.StoragePath != "datastore.json" {
		t.Errorf("StoragePath = %q, want %q", cfg.StoragePath, "datastore.json")
	}
	if cfg.DefaultVolume != 50 {
		t.Errorf("DefaultVolume = %d, want 50", cfg.DefaultVolume)
	}
	if cfg.VoiceConnectTimeout != 60*time.Second {
		t.Errorf("VoiceConnectTimeout = %v, want 60s", cfg.VoiceConnectTimeout)
	}
	if cfg.MaxConsecutiveFails != 5 {
		t.Errorf("MaxConsecutiveFails = %d, want 5", cfg.MaxConsecutiveFails)
	}
	if !cfg.InitSlashCommands {
		t.Error("InitSlashCommands = false, want true")
	}
	if got := cfg.DefaultVolumeFraction(); got != 0.5 {
		t.Errorf("DefaultVolumeFraction() = %v, want 0.5", got)
	}
}

func TestParseMissingToken(t *testing.T) {
	if _, err := parseWith(t, map[string]string{}); err == nil {
		t.Fatal("Parse() without DISCORD_TOKEN succeeded, want error")
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := parseWith(t, map[string]string{
		"DISCORD_TOKEN":           "abc",
		"DISCORD_GUILD_BLACKLIST": "1,2,3",
		"COMMAND_PREFIX":          "?",
		"DEFAULT_VOLUME":          "80",
		"RESOLVER_WORKERS":        "2",
		"VOICE_CONNECT_TIMEOUT":   "5s",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cfg.DiscordGuildBlacklist) != 3 || cfg.DiscordGuildBlacklist[2] != "3" {
		t.Errorf("DiscordGuildBlacklist = %v, want [1 2 3]", cfg.DiscordGuildBlacklist)
	}
	if cfg.CommandPrefix != "?" {
		t.Errorf("CommandPrefix = %q, want %q", cfg.CommandPrefix, "?")
	}
	if cfg.ResolverWorkers != 2 {
		t.Errorf("ResolverWorkers = %d, want 2", cfg.ResolverWorkers)
	}
	if cfg.VoiceConnectTimeout != 5*time.Second {
		t.Errorf("VoiceConnectTimeout = %v, want 5s", cfg.VoiceConnectTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"volume too high", map[string]string{"DEFAULT_VOLUME": "101"}},
		{"volume negative", map[string]string{"DEFAULT_VOLUME": "-1"}},
		{"volume muted", map[string]string{"DEFAULT_VOLUME": "0"}},
		{"no workers", map[string]string{"RESOLVER_WORKERS": "0"}},
		{"no failure budget", map[string]string{"MAX_CONSECUTIVE_FAILURES": "0"}},
		{"zero connect timeout", map[string]string{"VOICE_CONNECT_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.vars["DISCORD_TOKEN"] = "abc"
			if _, err := parseWith(t, tt.vars); err == nil {
				t.Errorf("Parse(%v) succeeded, want validation error", tt.vars)
			}
		})
	}
}
