// Package config loads the relay configuration: the shared core settings
// plus channels, storage and session hygiene.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	coreconfig "github.com/m3rciful/proxyrelay/core/config"
	coredatabase "github.com/m3rciful/proxyrelay/core/database"
	"github.com/m3rciful/proxyrelay/relay/store"
)

const (
	// DefaultFooterTag is appended to every published post.
	DefaultFooterTag = "@config2v"
	// DefaultSessionMaxIdle discards abandoned submissions after a day.
	DefaultSessionMaxIdle = 24 * time.Hour
)

// ChannelsConfig names the broadcast destination and the optional sponsor.
type ChannelsConfig struct {
	Target          string `yaml:"target" envconfig:"TARGET_CHANNEL_ID"`
	SponsorID       string `yaml:"sponsor_id" envconfig:"SPONSOR_CHANNEL_ID"`
	SponsorUsername string `yaml:"sponsor_username" envconfig:"SPONSOR_CHANNEL_USERNAME"`
	FooterTag       string `yaml:"footer_tag" envconfig:"FOOTER_TAG"`
}

// SessionConfig controls cleanup of abandoned submissions. MaxIdle of 0
// keeps them forever.
type SessionConfig struct {
	MaxIdle       *time.Duration `yaml:"max_idle" envconfig:"SESSION_MAX_IDLE"`
	SweepInterval time.Duration  `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL"`
}

// Config is the full relay configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Channels ChannelsConfig      `yaml:"channels"`
	Store    store.Config        `yaml:"store"`
	Database coredatabase.Config `yaml:"database"`
	Session  SessionConfig       `yaml:"session"`
	Metrics  MetricsConfig       `yaml:"metrics"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// CoreConfig exposes the embedded core settings to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.ReadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes defaults and rejects missing required settings.
func (c *Config) Validate() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	ch := &c.Channels
	ch.Target = strings.TrimSpace(ch.Target)
	if ch.Target == "" {
		return fmt.Errorf("broadcast channel is required (TARGET_CHANNEL_ID)")
	}
	ch.SponsorID = strings.TrimSpace(ch.SponsorID)
	ch.SponsorUsername = strings.TrimPrefix(strings.TrimSpace(ch.SponsorUsername), "@")
	if ch.SponsorID != "" && ch.SponsorUsername == "" && strings.HasPrefix(ch.SponsorID, "@") {
		ch.SponsorUsername = strings.TrimPrefix(ch.SponsorID, "@")
	}
	if ch.SponsorID != "" && ch.SponsorUsername == "" {
		return fmt.Errorf("sponsor channel username is required with a numeric SPONSOR_CHANNEL_ID (SPONSOR_CHANNEL_USERNAME)")
	}
	ch.FooterTag = strings.TrimSpace(ch.FooterTag)
	if ch.FooterTag == "" {
		ch.FooterTag = DefaultFooterTag
	}

	if err := c.Store.Normalize(); err != nil {
		return err
	}
	if c.Store.Driver == store.DriverPostgres {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("store driver postgres: %w", err)
		}
	}

	if c.Session.MaxIdle == nil {
		d := DefaultSessionMaxIdle
		c.Session.MaxIdle = &d
	}
	if *c.Session.MaxIdle < 0 {
		return fmt.Errorf("session.max_idle must be >= 0")
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = time.Minute
	}
	return nil
}

// SponsorEnabled reports whether the membership gate is configured.
func (c *Config) SponsorEnabled() bool {
	return c.Channels.SponsorID != ""
}

// SponsorLink returns the join URL of the sponsor channel.
func (c *Config) SponsorLink() string {
	if c.Channels.SponsorUsername == "" {
		return ""
	}
	return "https://t.me/" + c.Channels.SponsorUsername
}

// NeedsDatabase reports whether bootstrap must connect to Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Store.Driver == store.DriverPostgres
}
