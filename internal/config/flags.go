package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/loganmanery/vaultkeeper/internal/flagx"
)

// parseFlags populates cfg from the flags it knows about; other arguments
// (such as -c) are filtered out first.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-l", "-v", "-t", "-s"})

	fs := flag.NewFlagSet("vaultkeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "path to the vault database")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "path to the log file")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")
	idle := fs.Int("t", int(cfg.IdleSessionTimeout.Seconds()), "idle session timeout (in seconds)")
	display := fs.Int("s", int(cfg.CredentialDisplayDuration.Seconds()), "credential display duration (in seconds)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.IdleSessionTimeout = time.Duration(*idle) * time.Second
	cfg.CredentialDisplayDuration = time.Duration(*display) * time.Second
	return nil
}
