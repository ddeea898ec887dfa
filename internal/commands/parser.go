// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strconv"
	"strings"
)

// =============================================================================
// PARSER PROTOCOL
// =============================================================================

// ArgumentParser turns one token into a typed value. index is the position
// of the token in ctx.Args. A nil result is treated as a failed argument.
type ArgumentParser interface {
	ParseArgument(ctx *Context, index int, raw Raw) *Argument
}

// ParserFunc adapts a function to the ArgumentParser interface.
type ParserFunc func(ctx *Context, index int, raw Raw) *Argument

// ParseArgument implements ArgumentParser.
func (f ParserFunc) ParseArgument(ctx *Context, index int, raw Raw) *Argument {
	return f(ctx, index, raw)
}

func (d *Dispatcher) bindBuiltinParsers() {
	d.parsers[TypeString] = ParserFunc(parseString)
	d.parsers[TypeInt] = ParserFunc(parseInt)
	d.parsers[TypeBool] = ParserFunc(parseBool)
	d.parsers[TypeFloat] = ParserFunc(parseFloat)
	d.parsers[TypeDouble] = ParserFunc(parseDouble)
}

// =============================================================================
// BUILT-IN PARSERS
// =============================================================================

func parseString(_ *Context, _ int, raw Raw) *Argument {
	if raw.Absent {
		return Failed(nil)
	}
	return Succeed(raw.Text)
}

func parseInt(_ *Context, _ int, raw Raw) *Argument {
	if raw.Absent {
		return Failed(0)
	}
	n, err := strconv.Atoi(raw.Text)
	if err != nil {
		return Failed(0)
	}
	return Succeed(n)
}

func parseBool(_ *Context, _ int, raw Raw) *Argument {
	if raw.Absent {
		return Failed(false)
	}
	switch strings.ToLower(raw.Text) {
	case "true", "yes", "on", "1":
		return Succeed(true)
	case "false", "no", "off", "0":
		return Succeed(false)
	}
	return Failed(false)
}

func parseFloat(_ *Context, _ int, raw Raw) *Argument {
	if raw.Absent {
		return Failed(float32(0))
	}
	f, err := strconv.ParseFloat(raw.Text, 32)
	if err != nil {
		return Failed(float32(0))
	}
	return Succeed(float32(f))
}

func parseDouble(_ *Context, _ int, raw Raw) *Argument {
	if raw.Absent {
		return Failed(0.0)
	}
	f, err := strconv.ParseFloat(raw.Text, 64)
	if err != nil {
		return Failed(0.0)
	}
	return Succeed(f)
}

// EnumParser accepts one of values, case-insensitively, and yields the value
// as declared.
func EnumParser(values ...string) ArgumentParser {
	return ParserFunc(func(_ *Context, _ int, raw Raw) *Argument {
		if raw.Absent {
			return Failed(nil)
		}
		for _, v := range values {
			if strings.EqualFold(v, raw.Text) {
				return Succeed(v)
			}
		}
		return Failed(nil)
	})
}

// =============================================================================
// TOKENIZING
// =============================================================================

// tokenize strips the prefix and splits on single spaces. Trailing empty
// tokens are dropped, inner ones are kept.
func (d *Dispatcher) tokenize(text string) []string {
	if d.prefix != "" {
		text = strings.TrimPrefix(text, d.prefix)
	}
	if text == "" {
		return nil
	}
	tokens := strings.Split(text, " ")
	for len(tokens) > 0 && tokens[len(tokens)-1] == "" {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// IsCommand reports whether input starts with the dispatcher prefix. Without
// a prefix every non-empty line is a command.
func (d *Dispatcher) IsCommand(input string) bool {
	if input == "" {
		return false
	}
	return d.prefix == "" || strings.HasPrefix(input, d.prefix)
}
