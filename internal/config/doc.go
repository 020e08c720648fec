// Package config loads runtime configuration for the vaultkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-d string   path to the vault database
//	-l string   path to the log file
//	-v string   log level (debug, info, warn, error)
//	-t int      idle session timeout in seconds
//	-s int      credential display duration in seconds
//
// # JSON schema
//
//	{
//	  "db_path": "/home/me/.vaultkeeper/vault.db",
//	  "log_path": "/home/me/.vaultkeeper/vaultkeeper.log",
//	  "log_level": "info",
//	  "idle_session_timeout": 600,
//	  "credential_display_duration": 30
//	}
//
// The two durations only seed a newly created vault. An existing vault keeps
// its own settings, which can be changed from the menu.
package config
