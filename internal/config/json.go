package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/loganmanery/vaultkeeper/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// are whole seconds.
type JsonConfig struct {
	DBPath                    string `json:"db_path"`
	LogPath                   string `json:"log_path"`
	LogLevel                  string `json:"log_level"`
	IdleSessionTimeout        int    `json:"idle_session_timeout"`
	CredentialDisplayDuration int    `json:"credential_display_duration"`
}

// parseJson overlays cfg with the fields present in the file named by
// -c/-config. Absent fields keep their current values.
func parseJson(cfg *Config, args []string) error {
	path := flagx.JsonConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if jc.DBPath != "" {
		cfg.DBPath = jc.DBPath
	}
	if jc.LogPath != "" {
		cfg.LogPath = jc.LogPath
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	if jc.IdleSessionTimeout != 0 {
		cfg.IdleSessionTimeout = time.Duration(jc.IdleSessionTimeout) * time.Second
	}
	if jc.CredentialDisplayDuration != 0 {
		cfg.CredentialDisplayDuration = time.Duration(jc.CredentialDisplayDuration) * time.Second
	}
	return nil
}
