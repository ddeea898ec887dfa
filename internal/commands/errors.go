// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINELS
// =============================================================================

// Match these with errors.Is. Every structured error below reports one of them.
var (
	ErrNotFound            = errors.New("command not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrInvalidRegistration = errors.New("invalid command registration")
	ErrInvocationFailure   = errors.New("command invocation failed")
)

// =============================================================================
// DISPATCH ERRORS
// =============================================================================

// NotFoundError is returned for empty input, unknown commands and command
// lines that do not resolve to an action.
type NotFoundError struct {
	Command string // empty when the input was empty
	Action  string // first unmatched token, if the command itself exists
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Command == "":
		return ErrNotFound.Error()
	case e.Action != "":
		return fmt.Sprintf("%s: no action %q", e.Command, e.Action)
	default:
		return fmt.Sprintf("%s: %s", ErrNotFound, e.Command)
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AccessError is returned when the sender declines a permission check.
type AccessError struct {
	Command string
	Action  string
}

func (e *AccessError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("%s: %s", ErrAccessDenied, e.Command)
	}
	return fmt.Sprintf("%s: %s %s", ErrAccessDenied, e.Command, e.Action)
}

func (e *AccessError) Is(target error) bool {
	return target == ErrAccessDenied
}

// InvocationError wraps whatever the handler failed with.
type InvocationError struct {
	Command string
	Action  string
	Err     error
}

func (e *InvocationError) Error() string {
	name := e.Command
	if e.Action != "" {
		name += " " + e.Action
	}
	return fmt.Sprintf("%s: %s: %v", name, ErrInvocationFailure, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

func (e *InvocationError) Is(target error) bool {
	return target == ErrInvocationFailure
}

// =============================================================================
// REGISTRATION ERRORS
// =============================================================================

// RegistrationKind tells which shape rule a registration broke.
type RegistrationKind int

const (
	KindEmptyName RegistrationKind = iota + 1
	KindWhitespaceName
	KindDuplicateName
	KindBadReturn
	KindNoSender
	KindMisplacedCollection
	KindNoParser
	KindNoActions
	KindNilSource
	KindNilHandler
)

var kindNames = map[RegistrationKind]string{
	KindEmptyName:           "empty name",
	KindWhitespaceName:      "name contains whitespace",
	KindDuplicateName:       "duplicate name",
	KindBadReturn:           "bad return type",
	KindNoSender:            "missing sender parameter",
	KindMisplacedCollection: "collection parameter not last",
	KindNoParser:            "no parser for parameter type",
	KindNoActions:           "no actions declared",
	KindNilSource:           "nil action source",
	KindNilHandler:          "nil handler",
}

func (k RegistrationKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("RegistrationKind(%d)", int(k))
}

// RegistrationError is returned by Register. Nothing is registered when it is.
type RegistrationError struct {
	Kind    RegistrationKind
	Command string
	Action  string
	Param   int // index into Action.Params, -1 when not about a parameter
	Type    TypeKey
}

func (e *RegistrationError) Error() string {
	msg := "register"
	if e.Command != "" {
		msg += " " + e.Command
	}
	if e.Action != "" {
		msg += " " + e.Action
	}
	msg += ": " + e.Kind.String()
	if e.Param > 0 {
		msg += fmt.Sprintf(" (parameter %d", e.Param)
		if e.Type != "" {
			msg += fmt.Sprintf(", type %q", e.Type)
		}
		msg += ")"
	}
	return msg
}

func (e *RegistrationError) Is(target error) bool {
	return target == ErrInvalidRegistration
}

func regError(kind RegistrationKind, command, action string) *RegistrationError {
	return &RegistrationError{Kind: kind, Command: command, Action: action, Param: -1}
}

// IsRegistrationKind reports whether err is a RegistrationError of the given kind.
func IsRegistrationKind(err error, kind RegistrationKind) bool {
	var re *RegistrationError
	return errors.As(err, &re) && re.Kind == kind
}
