// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads monsoon settings from a TOML or JSON file, applies
// MONSOON_* environment overrides and validates the result.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - DispatchConfig: Command prefix handling
//   - PermissionsConfig: Grants file location and reload behavior
//   - ServerConfig: HTTP transport address, token and rate limits
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command line flags (bound through viper in cmd/monsoon)
//   - Environment variables (MONSOON_*)
//   - ~/.monsoon/config.toml
//   - ~/.monsoon/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	prefix := cfg.Dispatch.Prefix
package config
