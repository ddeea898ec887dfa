// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

var (
	markdownRenderer     *glamour.TermRenderer
	markdownRendererOnce sync.Once
)

func renderer() *glamour.TermRenderer {
	markdownRendererOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(GetTerminalWidth()-4),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	return markdownRenderer
}

// RenderReply formats command output for the console. Multi-line replies
// are shown as a preformatted block so column layouts survive. Without
// color support single-line replies are only wrapped to the terminal.
func RenderReply(msg string) string {
	if !ColorsEnabled() {
		if IsStdoutTTY() && !strings.Contains(msg, "\n") {
			return WrapText(msg, GetTerminalWidth())
		}
		return msg
	}
	r := renderer()
	if r == nil {
		return msg
	}

	md := msg
	if strings.Contains(msg, "\n") {
		md = "```\n" + msg + "\n```"
	}
	out, err := r.Render(md)
	if err != nil {
		return msg
	}
	return strings.Trim(out, "\n")
}
