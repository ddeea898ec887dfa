// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Ensemplix/Monsoon/internal/commands"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the sender was not allowed to run the action
	ExitAuthError = 4
	// ExitNotFoundError indicates the command or action does not exist
	ExitNotFoundError = 7
	// ExitUnsuccessful indicates the action ran and reported failure
	ExitUnsuccessful = 9
)

// ErrUnsuccessful is returned when an action ran but reported failure.
var ErrUnsuccessful = errors.New("command was not successful")

// ConfigError marks errors loading or validating configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	var cfgErr *ConfigError
	var regErr *commands.RegistrationError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, commands.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, commands.ErrAccessDenied):
		return ExitAuthError
	case errors.As(err, &regErr):
		return ExitUsageError
	case errors.Is(err, ErrUnsuccessful):
		return ExitUnsuccessful
	}
	return ExitGeneralError
}

// DescribeError turns a dispatch error into a message for the sender.
// names feeds the "did you mean" hint for unknown commands.
func DescribeError(err error, names []string) string {
	var nf *commands.NotFoundError
	var denied *commands.AccessError
	var inv *commands.InvocationError

	switch {
	case errors.As(err, &nf):
		switch {
		case nf.Command == "":
			return "Type a command, or help for a list"
		case nf.Action != "":
			return fmt.Sprintf("Unknown action %q for %s. Try help %s", nf.Action, nf.Command, nf.Command)
		case names == nil:
			return fmt.Sprintf("Unknown command %q", nf.Command)
		}
		msg := fmt.Sprintf("Unknown command %q", nf.Command)
		if s := SuggestCommand(nf.Command, names); s != "" {
			msg += fmt.Sprintf(". Did you mean %s?", RenderConditional(HighlightStyle, s))
		}
		return msg
	case errors.As(err, &denied):
		return "You are not allowed to do that"
	case errors.As(err, &inv):
		return fmt.Sprintf("%s failed: %v", inv.Command, inv.Err)
	case errors.Is(err, ErrUnsuccessful):
		return ""
	}
	return err.Error()
}

// DisplayError writes err to w. In JSON mode a structured object is written.
func DisplayError(w io.Writer, err error, names []string, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(w, err)
		return
	}
	msg := DescribeError(err, names)
	if msg == "" {
		return
	}
	label := RenderConditional(ErrorStyle, "[ERROR]")
	if errors.Is(err, commands.ErrAccessDenied) {
		label = RenderConditional(WarningStyle, "[DENIED]")
	}
	fmt.Fprintln(w, label+" "+msg)
}

// DisplayErrorJSON writes err as a JSON object.
func DisplayErrorJSON(w io.Writer, err error) {
	output := map[string]interface{}{
		"error":   err.Error(),
		"success": false,
	}

	var nf *commands.NotFoundError
	var denied *commands.AccessError
	var inv *commands.InvocationError
	switch {
	case errors.As(err, &nf):
		output["error_type"] = "not_found"
		output["command"] = nf.Command
		output["action"] = nf.Action
	case errors.As(err, &denied):
		output["error_type"] = "access_denied"
		output["command"] = denied.Command
		output["action"] = denied.Action
	case errors.As(err, &inv):
		output["error_type"] = "invocation_failure"
		output["command"] = inv.Command
		output["action"] = inv.Action
	case errors.Is(err, ErrUnsuccessful):
		output["error_type"] = "unsuccessful"
	default:
		output["error_type"] = "generic_error"
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(output)
}

// ErrorScope extracts the command and action a dispatch error refers to.
func ErrorScope(err error) (command, action string) {
	var nf *commands.NotFoundError
	var denied *commands.AccessError
	var inv *commands.InvocationError
	switch {
	case errors.As(err, &nf):
		return nf.Command, nf.Action
	case errors.As(err, &denied):
		return denied.Command, denied.Action
	case errors.As(err, &inv):
		return inv.Command, inv.Action
	}
	return "", ""
}
