// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
)

// CallResult is the outcome of a successful dispatch.
type CallResult struct {
	Context   *Context
	Arguments []*Argument
	Success   bool
}

// Call resolves text, binds its arguments and runs the action. Handler
// failures and panics come back as *InvocationError.
func (d *Dispatcher) Call(sender Sender, text string) (*CallResult, error) {
	d.mu.RLock()
	ctx, err := d.validate(sender, text)
	if err != nil {
		d.mu.RUnlock()
		return nil, err
	}
	if ctx.Action == nil {
		d.mu.RUnlock()
		nf := &NotFoundError{Command: ctx.Command}
		if len(ctx.Args) > 0 {
			nf.Action = ctx.Args[0]
		}
		return nil, nf
	}
	parsers, err := d.parsersFor(ctx)
	d.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	values, arguments := bind(ctx, parsers)

	ok, err := invoke(ctx, values)
	if err != nil {
		d.logger.Warn("command failed", "command", ctx.Command, "action", ctx.ActionName, "error", err)
		return nil, err
	}
	return &CallResult{Context: ctx, Arguments: arguments, Success: ok}, nil
}

// parsersFor looks up the parser of every declared parameter. It runs under
// the read lock so parsing itself can call back into the dispatcher.
func (d *Dispatcher) parsersFor(ctx *Context) ([]ArgumentParser, error) {
	params := ctx.Action.params
	parsers := make([]ArgumentParser, len(params))
	for i, p := range params {
		parser, ok := d.parsers[p.Type]
		if !ok {
			return nil, &InvocationError{
				Command: ctx.Command,
				Action:  ctx.ActionName,
				Err:     fmt.Errorf("no parser bound for type %q", p.Type),
			}
		}
		parsers[i] = parser
	}
	return parsers, nil
}

// bind converts ctx.Args into handler values. Every produced argument is
// also returned for reporting.
func bind(ctx *Context, parsers []ArgumentParser) (Values, []*Argument) {
	params := ctx.Action.params
	values := make(Values, len(params))
	arguments := make([]*Argument, 0, len(ctx.Args))

	for i, p := range params {
		parser := parsers[i]

		if p.Kind.IsCollection() {
			var plain []any
			var wrapped []*Argument
			for j := i; j < len(ctx.Args); j++ {
				arg := parseToken(parser, ctx, j, Raw{Text: ctx.Args[j]})
				arguments = append(arguments, arg)
				if p.Kind.IsWrapped() {
					wrapped = append(wrapped, arg)
				} else {
					plain = append(plain, arg.Value)
				}
			}
			if p.Kind.IsWrapped() {
				if wrapped == nil {
					wrapped = []*Argument{}
				}
				values[i] = wrapped
			} else {
				if plain == nil {
					plain = []any{}
				}
				values[i] = plain
			}
			continue
		}

		raw := Raw{Absent: true}
		if i < len(ctx.Args) {
			raw = Raw{Text: ctx.Args[i]}
		}
		arg := parseToken(parser, ctx, i, raw)
		arguments = append(arguments, arg)
		if p.Kind.IsWrapped() {
			values[i] = arg
		} else {
			values[i] = arg.Value
		}
	}
	return values, arguments
}

func parseToken(parser ArgumentParser, ctx *Context, index int, raw Raw) *Argument {
	arg := parser.ParseArgument(ctx, index, raw)
	if arg == nil {
		arg = Failed(nil)
	}
	if !raw.Absent && !arg.HasText {
		arg.Text = raw.Text
		arg.HasText = true
	}
	return arg
}

func invoke(ctx *Context, values Values) (ok bool, err error) {
	action := ctx.Action
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &InvocationError{Command: ctx.Command, Action: ctx.ActionName, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	ok, err = action.handler(ctx.Sender, values)
	if err != nil {
		return false, &InvocationError{Command: ctx.Command, Action: ctx.ActionName, Err: err}
	}
	if action.returns == ReturnVoid {
		ok = true
	}
	return ok, nil
}
