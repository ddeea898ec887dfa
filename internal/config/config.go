// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for monsoon.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.monsoon/config.toml
//   - ~/.monsoon/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Ensemplix/Monsoon/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete monsoon configuration.
type Config struct {
	Dispatch    DispatchConfig    `toml:"dispatch" json:"dispatch"`
	Log         LogConfig         `toml:"log" json:"log"`
	Shell       ShellConfig       `toml:"shell" json:"shell"`
	History     HistoryConfig     `toml:"history" json:"history"`
	Permissions PermissionsConfig `toml:"permissions" json:"permissions"`
	Server      ServerConfig      `toml:"server" json:"server"`
	Tasks       TasksConfig       `toml:"tasks" json:"tasks"`
}

// DispatchConfig configures the command dispatcher.
type DispatchConfig struct {
	// Prefix is stripped from command lines, e.g. "/". Empty disables it.
	Prefix string `toml:"prefix" json:"prefix"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// File sends logs to a file instead of stderr
	File string `toml:"file" json:"file"`
}

// ShellConfig configures the interactive console.
type ShellConfig struct {
	Prompt string `toml:"prompt" json:"prompt"`
	// User is the sender name of the console
	User string `toml:"user" json:"user"`
	// HistoryFile keeps line editor history between sessions
	HistoryFile string `toml:"history_file" json:"history_file"`
}

// HistoryConfig configures the command history database.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// PermissionsConfig configures the grants file.
type PermissionsConfig struct {
	File string `toml:"file" json:"file"`
	// Watch reloads the grants file when it changes
	Watch bool `toml:"watch" json:"watch"`
	// DefaultAllow applies when the grants file does not exist
	DefaultAllow bool `toml:"default_allow" json:"default_allow"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr       string `toml:"addr" json:"addr"`
	Token      string `toml:"token" json:"token"`
	EnableCORS bool   `toml:"enable_cors" json:"enable_cors"`
	// RateLimit is requests per second per client address, 0 disables limiting
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	Burst     int     `toml:"burst" json:"burst"`
	// PresenceSecs is how long an HTTP sender stays online after its last request
	PresenceSecs int `toml:"presence_timeout" json:"presence_timeout"`
}

// TasksConfig configures background jobs.
type TasksConfig struct {
	MaxConcurrent int `toml:"max_concurrent" json:"max_concurrent"`
	// TimeoutSecs bounds a single job, 0 means no timeout
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	MaxHistory  int `toml:"max_history" json:"max_history"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with default values.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".monsoon"
	}
	return &Config{
		Dispatch: DispatchConfig{
			Prefix: "",
		},
		Log: LogConfig{
			Level: "info",
		},
		Shell: ShellConfig{
			Prompt:      "monsoon> ",
			User:        "console",
			HistoryFile: filepath.Join(dir, "shell_history"),
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "history.db"),
		},
		Permissions: PermissionsConfig{
			File:         filepath.Join(dir, "grants.toml"),
			Watch:        true,
			DefaultAllow: true,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8765",
			EnableCORS:   false,
			RateLimit:    5,
			Burst:        10,
			PresenceSecs: 300,
		},
		Tasks: TasksConfig{
			MaxConcurrent: 4,
			TimeoutSecs:   300,
			MaxHistory:    100,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the monsoon configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".monsoon"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
// Paths ending in .json are read as JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config from %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config from %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML config from %s: %w", path, err)
		}
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in values a file explicitly left empty.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	if cfg.Shell.Prompt == "" {
		cfg.Shell.Prompt = defaults.Shell.Prompt
	}
	if cfg.Shell.User == "" {
		cfg.Shell.User = defaults.Shell.User
	}
	if cfg.Shell.HistoryFile == "" {
		cfg.Shell.HistoryFile = defaults.Shell.HistoryFile
	}

	if cfg.History.Path == "" {
		cfg.History.Path = defaults.History.Path
	}

	if cfg.Permissions.File == "" {
		cfg.Permissions.File = defaults.Permissions.File
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = defaults.Server.Burst
	}
	if cfg.Server.PresenceSecs == 0 {
		cfg.Server.PresenceSecs = defaults.Server.PresenceSecs
	}

	if cfg.Tasks.MaxConcurrent == 0 {
		cfg.Tasks.MaxConcurrent = defaults.Tasks.MaxConcurrent
	}
	if cfg.Tasks.MaxHistory == 0 {
		cfg.Tasks.MaxHistory = defaults.Tasks.MaxHistory
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# monsoon configuration file\n\n")
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if strings.ContainsAny(c.Dispatch.Prefix, " \t") {
		errs = append(errs, ValidationError{
			Field:   "dispatch.prefix",
			Message: "prefix must not contain whitespace",
		})
	}

	if strings.TrimSpace(c.Shell.User) == "" || strings.ContainsAny(c.Shell.User, " \t") {
		errs = append(errs, ValidationError{
			Field:   "shell.user",
			Message: fmt.Sprintf("invalid sender name '%s'", c.Shell.User),
		})
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit",
			Message: "must not be negative",
		})
	}
	if c.Server.Burst < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.burst",
			Message: "must be at least 1",
		})
	}
	if c.Server.PresenceSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.presence_timeout",
			Message: "must not be negative",
		})
	}

	if c.Tasks.MaxConcurrent < 1 || c.Tasks.MaxConcurrent > 64 {
		errs = append(errs, ValidationError{
			Field:   "tasks.max_concurrent",
			Message: fmt.Sprintf("must be between 1 and 64, got %d", c.Tasks.MaxConcurrent),
		})
	}
	if c.Tasks.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "tasks.timeout_secs",
			Message: "must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - MONSOON_PREFIX: overrides dispatch.prefix
//   - MONSOON_LOG_LEVEL: overrides log.level
//   - MONSOON_USER: overrides shell.user
//   - MONSOON_GRANTS: overrides permissions.file
//   - MONSOON_ADDR: overrides server.addr
//   - MONSOON_TOKEN: overrides server.token
//   - MONSOON_RATE_LIMIT: overrides server.rate_limit
//   - MONSOON_HISTORY: "0" or "false" disables the history database
func (c *Config) ApplyEnvOverrides() {
	if prefix, ok := os.LookupEnv("MONSOON_PREFIX"); ok {
		c.Dispatch.Prefix = prefix
	}
	if level := os.Getenv("MONSOON_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
	if user := os.Getenv("MONSOON_USER"); user != "" {
		c.Shell.User = user
	}
	if grants := os.Getenv("MONSOON_GRANTS"); grants != "" {
		c.Permissions.File = grants
	}
	if addr := os.Getenv("MONSOON_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if token := os.Getenv("MONSOON_TOKEN"); token != "" {
		c.Server.Token = token
	}
	if rate := os.Getenv("MONSOON_RATE_LIMIT"); rate != "" {
		if v, err := strconv.ParseFloat(rate, 64); err == nil {
			c.Server.RateLimit = v
		}
	}
	if history := os.Getenv("MONSOON_HISTORY"); history != "" {
		c.History.Enabled = !(history == "0" || strings.EqualFold(history, "false"))
	}
}
