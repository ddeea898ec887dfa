// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the console transport for the command dispatcher.
//
// A Session binds a console sender to a dispatcher, records every line in
// the history store and prints replies and errors. Shell wraps a Session in
// a liner prompt with tab completion, or reads lines from stdin when it is
// not a terminal.
//
// # Output
//
// Replies are rendered with glamour when colors are enabled. Errors carry
// a "did you mean" hint for mistyped command names. GetExitCode maps errors
// to process exit codes for one-shot use.
package cli
