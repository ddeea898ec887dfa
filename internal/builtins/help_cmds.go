// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package builtins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ensemplix/Monsoon/internal/commands"
	"github.com/Ensemplix/Monsoon/internal/util"
)

const (
	// DefaultHistoryLimit is used when history is run without a limit.
	DefaultHistoryLimit = 10

	historyLineRunes  = 60
	historyErrorWidth = 60
)

func (h *host) help() commands.Source {
	return commands.NewActionSet(commands.Action{
		Main:        true,
		Description: "List commands or show how to use one",
		Params:      params(commands.Arg("command", TypeCommand)),
		Returns:     commands.ReturnBool,
		Handler:     h.showHelp,
	})
}

func (h *host) showHelp(s commands.Sender, args commands.Values) (bool, error) {
	arg := args.Argument(0)
	if !given(arg) {
		var rows [][]string
		for _, e := range h.d.Entries() {
			rows = append(rows, usageRows(h.d.Prefix(), e)...)
		}
		reply(s, strings.TrimSuffix(util.Columns(rows, 2), "\n"))
		return true, nil
	}

	e, ok := commands.As[*commands.Entry](arg)
	if !arg.OK() || !ok {
		replyf(s, "Unknown command %q", arg.Text)
		return false, nil
	}
	out := util.Columns(usageRows(h.d.Prefix(), e), 2)
	if names := e.Names(); len(names) > 1 {
		out += "Aliases: " + strings.Join(names[1:], ", ") + "\n"
	}
	reply(s, strings.TrimSuffix(out, "\n"))
	return true, nil
}

// usageRows pairs every usage line of e with its description.
func usageRows(prefix string, e *commands.Entry) [][]string {
	var rows [][]string
	add := func(a *commands.CommandAction) {
		rows = append(rows, []string{prefix + a.Usage(e.Name()), a.Description()})
	}
	for _, a := range e.Mains() {
		add(a)
	}
	for _, sub := range e.SubNames() {
		for _, a := range e.Overloads(sub) {
			if !a.Main() {
				add(a)
			}
		}
	}
	return rows
}

func (h *host) history() commands.Source {
	return commands.NewActionSet(commands.Action{
		Main:        true,
		Description: "Show your recent commands",
		Params:      params(commands.Arg("limit", commands.TypeInt)),
		Returns:     commands.ReturnBool,
		Handler:     h.showHistory,
	})
}

func (h *host) showHistory(s commands.Sender, args commands.Values) (bool, error) {
	limit := DefaultHistoryLimit
	if arg := args.Argument(0); given(arg) {
		n, ok := commands.As[int](arg)
		if !arg.OK() || !ok || n < 1 {
			replyf(s, "%q is not a positive number", arg.Text)
			return false, nil
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := h.store.Recent(ctx, senderName(s), limit)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		reply(s, "No history")
		return true, nil
	}

	var sb strings.Builder
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		mark := "ok  "
		if !e.Success {
			mark = "fail"
		}
		fmt.Fprintf(&sb, "%s  %s  %s", e.CreatedAt.Format("15:04:05"), mark, util.TruncateRunes(e.Line, historyLineRunes))
		if e.Error != "" {
			fmt.Fprintf(&sb, "  (%s)", util.TruncateWidth(e.Error, historyErrorWidth))
		}
		if i > 0 {
			sb.WriteString("\n")
		}
	}
	reply(s, sb.String())
	return true, nil
}
