// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strings"
)

// =============================================================================
// COMPLETER PROTOCOL
// =============================================================================

// Completer suggests values for a partially typed token of one type.
type Completer interface {
	Complete(ctx *Context, partial string) []string
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx *Context, partial string) []string

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx *Context, partial string) []string {
	return f(ctx, partial)
}

// ListCompleter completes from whatever values returns at call time,
// matching case-insensitively by prefix and ranking shorter matches first.
func ListCompleter(values func() []string) Completer {
	return CompleterFunc(func(_ *Context, partial string) []string {
		return rankPrefix(values(), partial)
	})
}

// EnumCompleter completes from a fixed list.
func EnumCompleter(values ...string) Completer {
	return ListCompleter(func() []string { return values })
}

// =============================================================================
// DISPATCHER COMPLETION
// =============================================================================

// Complete returns suggestions for the next token of text. It never fails;
// lines that do not resolve fall back to command names.
func (d *Dispatcher) Complete(sender Sender, text string) []string {
	completer, ctx, partial, suggestions := d.completionTarget(sender, text)
	if completer == nil {
		return suggestions
	}
	return completer.Complete(ctx, partial)
}

// completionTarget works out what to complete under the read lock. Either
// suggestions are final or a completer is returned to run outside the lock.
func (d *Dispatcher) completionTarget(sender Sender, text string) (Completer, *Context, string, []string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, err := d.validate(sender, text)
	if err != nil {
		return nil, nil, "", d.completeNames(text)
	}

	trailing := strings.HasSuffix(text, " ")
	rest := d.tokenize(text)[1:]
	entry := ctx.Entry

	if len(rest) == 0 && !trailing {
		return nil, nil, "", nil
	}

	if (len(rest) == 1 && !trailing) || (len(rest) == 0 && trailing) {
		if ctx.ActionName == "" || len(entry.mains) > 0 {
			partial := ""
			if !trailing {
				partial = rest[0]
			}
			if matches := rankPrefix(entry.order, partial); len(matches) > 0 {
				return nil, nil, "", matches
			}
		}
	}

	if ctx.Action == nil {
		if len(entry.mains) == 0 {
			return nil, nil, "", rankPrefix(entry.order, "")
		}
		return nil, nil, "", nil
	}

	index, partial := len(ctx.Args), ""
	if !trailing {
		if len(ctx.Args) == 0 {
			return nil, nil, "", nil
		}
		index = len(ctx.Args) - 1
		partial = ctx.Args[index]
	}

	params := ctx.Action.params
	if len(params) == 0 {
		return nil, nil, "", nil
	}
	if index >= len(params) {
		if !params[len(params)-1].Kind.IsCollection() {
			return nil, nil, "", nil
		}
		index = len(params) - 1
	}

	completer, ok := d.completers[params[index].Type]
	if !ok {
		return nil, nil, "", nil
	}
	return completer, ctx, partial, nil
}

// completeNames is the fallback for lines that do not resolve.
func (d *Dispatcher) completeNames(text string) []string {
	partial := strings.TrimPrefix(text, d.prefix)
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	matches := rankPrefix(names, partial)
	if d.prefix != "" {
		for i := range matches {
			matches[i] = d.prefix + matches[i]
		}
	}
	return matches
}

// =============================================================================
// RANKING
// =============================================================================

type completion struct {
	value string
	score int
}

// rankPrefix keeps values starting with partial, best match first.
func rankPrefix(values []string, partial string) []string {
	lower := strings.ToLower(partial)
	completions := make([]completion, 0, len(values))
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), lower) {
			completions = append(completions, completion{value: v, score: calculateScore(v, partial)})
		}
	}
	sortCompletions(completions)

	out := make([]string, len(completions))
	for i, c := range completions {
		out[i] = c.value
	}
	return out
}

// calculateScore calculates a match score for completion ranking.
// Higher score = better match.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	score := 100

	if value == partial {
		return score + 100
	}

	if strings.HasPrefix(value, partial) {
		score += 50
		// Bonus for shorter completions
		score += 20 - len(value)
	}

	score -= len(value) / 2

	return score
}

// sortCompletions sorts completions by score (descending), then alphabetically.
func sortCompletions(completions []completion) {
	sort.Slice(completions, func(i, j int) bool {
		if completions[i].score != completions[j].score {
			return completions[i].score > completions[j].score
		}
		return completions[i].value < completions[j].value
	})
}
