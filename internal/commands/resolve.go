// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

// Context is the outcome of resolving one command line.
type Context struct {
	// Command is the primary name of the resolved entry.
	Command string

	// Label is the name that was typed, which may be an alias.
	Label string

	// ActionName is the resolved sub-name. It is empty when a main action
	// was chosen or nothing resolved.
	ActionName string

	// Action is nil when the line names a command but no action.
	Action *CommandAction

	// Args are the tokens left after the command and sub-name.
	Args []string

	Entry  *Entry
	Sender Sender
}

// Validate resolves text to an entry and action and checks permission.
func (d *Dispatcher) Validate(sender Sender, text string) (*Context, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.validate(sender, text)
}

func (d *Dispatcher) validate(sender Sender, text string) (*Context, error) {
	tokens := d.tokenize(text)
	if len(tokens) == 0 {
		return nil, &NotFoundError{}
	}

	label := canonical(tokens[0])
	entry, ok := d.commands[label]
	if !ok {
		return nil, &NotFoundError{Command: tokens[0]}
	}

	ctx := &Context{
		Command: entry.name,
		Label:   label,
		Entry:   entry,
		Sender:  sender,
	}

	rest := tokens[1:]
	if len(rest) > 0 {
		if overloads, ok := entry.actions[canonical(rest[0])]; ok {
			ctx.Args = rest[1:]
			ctx.Action = selectOverload(overloads, len(ctx.Args))
			if !ctx.Action.main {
				ctx.ActionName = ctx.Action.name
			}
		}
	}
	if ctx.Action == nil {
		ctx.Args = rest
		if len(entry.mains) > 0 {
			ctx.Action = selectOverload(entry.mains, len(rest))
		}
	}

	if ctx.Action != nil && ctx.Action.permission {
		if sender == nil || !sender.CanUseCommand(entry.name, ctx.ActionName) {
			return nil, &AccessError{Command: entry.name, Action: ctx.ActionName}
		}
	}
	return ctx, nil
}

// selectOverload picks the action with the smallest arity that still covers
// supplied tokens, else the one with the largest arity. The first scanned
// wins ties.
func selectOverload(actions []*CommandAction, supplied int) *CommandAction {
	if len(actions) == 1 {
		return actions[0]
	}

	var best *CommandAction
	for _, a := range actions {
		if a.Arity() >= supplied && (best == nil || a.Arity() < best.Arity()) {
			best = a
		}
	}
	if best != nil {
		return best
	}

	for _, a := range actions {
		if best == nil || a.Arity() > best.Arity() {
			best = a
		}
	}
	return best
}
