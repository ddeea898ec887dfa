// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the command dispatcher: registration, resolution,
// argument binding and tab completion for line-oriented commands.
//
// A host describes its commands as Action descriptors grouped in a Source,
// registers them under one or more names, and feeds raw lines from any
// transport into Call or Complete.
//
// # Key Types
//
//   - Dispatcher: owns the parser, completer and command registries
//   - Action: descriptor of one invokable unit (sender first, then typed params)
//   - Entry: what a name resolves to (main actions plus sub-name overloads)
//   - Context: resolved command line (entry, action, remaining tokens)
//   - Argument: one bound parameter with its result and consumed text
//
// # Resolution
//
// The first token picks the entry. If the second token is a sub-name, the
// overload with the smallest arity still covering the remaining tokens is
// chosen, falling back to the largest arity. Otherwise the main action, if
// any, takes every token after the command name.
//
// # Usage
//
// Register and call a command:
//
//	d := commands.New(commands.WithPrefix("/"))
//	err := d.Register(commands.NewActionSet(commands.Action{
//	    Name:    "here",
//	    Params:  []commands.Param{commands.SenderParam(), commands.P("player", "player")},
//	    Handler: teleportHere,
//	}), "tp", "teleport")
//
//	result, err := d.Call(sender, "/tp here bob")
//
// Get completions:
//
//	d.Complete(sender, "/tp h")
//	// Returns ["here"]
package commands
