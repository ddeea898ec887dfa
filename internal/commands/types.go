// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

// =============================================================================
// SENDER
// =============================================================================

// Sender is whoever typed the command line. The dispatcher only ever asks it
// one question. An empty action means the main action of the command.
type Sender interface {
	CanUseCommand(command, action string) bool
}

// SenderFunc adapts a plain function to the Sender interface.
type SenderFunc func(command, action string) bool

// CanUseCommand implements Sender.
func (f SenderFunc) CanUseCommand(command, action string) bool {
	return f(command, action)
}

// =============================================================================
// PARAMETER DESCRIPTORS
// =============================================================================

// TypeKey names a parameter type in the parser and completer registries.
type TypeKey string

// Built-in type keys. TypeSender is only valid as the first parameter.
const (
	TypeSender TypeKey = "sender"
	TypeString TypeKey = "string"
	TypeInt    TypeKey = "int"
	TypeBool   TypeKey = "bool"
	TypeFloat  TypeKey = "float"
	TypeDouble TypeKey = "double"
)

// ParamKind decides what the handler receives for a parameter.
type ParamKind int

const (
	Plain             ParamKind = iota // the parsed value
	Wrapped                            // *Argument
	Collection                         // []any of parsed values, must be last
	WrappedCollection                  // []*Argument, must be last
)

// IsCollection reports whether the parameter consumes every remaining token.
func (k ParamKind) IsCollection() bool {
	return k == Collection || k == WrappedCollection
}

// IsWrapped reports whether the handler receives *Argument values.
func (k ParamKind) IsWrapped() bool {
	return k == Wrapped || k == WrappedCollection
}

// Param describes one declared parameter. Name only shows up in usage text.
type Param struct {
	Name string
	Type TypeKey
	Kind ParamKind
}

// SenderParam is the mandatory first parameter of every action.
func SenderParam() Param {
	return Param{Name: "sender", Type: TypeSender}
}

// P declares a plain parameter.
func P(name string, t TypeKey) Param {
	return Param{Name: name, Type: t, Kind: Plain}
}

// Arg declares a parameter the handler receives as *Argument.
func Arg(name string, t TypeKey) Param {
	return Param{Name: name, Type: t, Kind: Wrapped}
}

// Rest declares a trailing parameter that takes all remaining tokens.
func Rest(name string, t TypeKey) Param {
	return Param{Name: name, Type: t, Kind: Collection}
}

// RestArgs is Rest with each element kept as *Argument.
func RestArgs(name string, t TypeKey) Param {
	return Param{Name: name, Type: t, Kind: WrappedCollection}
}

// =============================================================================
// ACTION DESCRIPTORS
// =============================================================================

// ReturnKind is the declared result of an action. Only ReturnVoid and
// ReturnBool are accepted at registration.
type ReturnKind string

const (
	ReturnVoid ReturnKind = ""
	ReturnBool ReturnKind = "bool"
)

// HandlerFunc runs an action. The bool is ignored for ReturnVoid actions.
type HandlerFunc func(sender Sender, args Values) (bool, error)

// Action is the declaration of one invokable unit of a command.
type Action struct {
	// Name is the sub-name typed after the command. A main action may leave
	// it empty, in which case it is reachable only as the default.
	Name string

	// Main marks a default action used when no sub-name is given.
	Main bool

	// Permission asks the sender before the action resolves.
	Permission bool

	// Description is shown by help output.
	Description string

	// Params lists the declared parameters, sender first.
	Params []Param

	Returns ReturnKind
	Handler HandlerFunc
}

// Source is a set of declared actions registered together. Sources are
// compared by identity on Unregister, so implementations must be comparable;
// pointer types are.
type Source interface {
	Actions() []Action
}

// ActionSet is the stock Source.
type ActionSet struct {
	actions []Action
}

// NewActionSet creates a source from the given actions.
func NewActionSet(actions ...Action) *ActionSet {
	return &ActionSet{actions: actions}
}

// Actions implements Source.
func (s *ActionSet) Actions() []Action {
	return s.actions
}
