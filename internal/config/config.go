package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/internal/session"
)

// Config holds runtime settings for the vaultkeeper CLI
type Config struct {
	DBPath                    string
	LogPath                   string
	LogLevel                  string
	IdleSessionTimeout        time.Duration
	CredentialDisplayDuration time.Duration
}

// LoadDefaults populates c with defaults rooted in the user's home directory
func (c *Config) LoadDefaults() {
	dir := defaultDir()
	c.DBPath = filepath.Join(dir, "vault.db")
	c.LogPath = filepath.Join(dir, "vaultkeeper.log")
	c.LogLevel = "info"
	c.IdleSessionTimeout = session.DefaultIdleTimeout
	c.CredentialDisplayDuration = session.DefaultDisplayDuration
}

// LoadConfig applies defaults, then the JSON file (if any), then flags
// taken from args (usually os.Args[1:]).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the durations against the ranges the session guards accept
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("empty database path: %w", common.ErrConfigurationInvalid)
	}
	if !session.ValidIdleTimeout(c.IdleSessionTimeout) {
		return fmt.Errorf("idle session timeout %s outside [%s, %s]: %w",
			c.IdleSessionTimeout, session.MinIdleTimeout, session.MaxIdleTimeout, common.ErrConfigurationInvalid)
	}
	if !session.ValidDisplayDuration(c.CredentialDisplayDuration) {
		return fmt.Errorf("credential display duration %s outside [%s, %s]: %w",
			c.CredentialDisplayDuration, session.MinDisplayDuration, session.MaxDisplayDuration, common.ErrConfigurationInvalid)
	}
	return nil
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".vaultkeeper"
	}
	return filepath.Join(home, ".vaultkeeper")
}
