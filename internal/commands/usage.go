// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import "strings"

// Usage renders the action as it would be typed after command, e.g.
// "tp player <target> <destination>" or "echo <words...>".
func (a *CommandAction) Usage(command string) string {
	parts := []string{command}
	if a.name != "" && !a.main {
		parts = append(parts, a.name)
	}
	for _, p := range a.params {
		name := p.Name
		if name == "" {
			name = string(p.Type)
		}
		if p.Kind.IsCollection() {
			name += "..."
		}
		parts = append(parts, "<"+name+">")
	}
	return strings.Join(parts, " ")
}

// Usage lists one line per action, mains first, then sub-names in
// declaration order.
func (e *Entry) Usage() []string {
	lines := make([]string, 0, len(e.mains)+len(e.order))
	for _, a := range e.mains {
		lines = append(lines, a.Usage(e.name))
	}
	for _, sub := range e.order {
		for _, a := range e.actions[sub] {
			if a.main {
				continue
			}
			lines = append(lines, a.Usage(e.name))
		}
	}
	return lines
}
