// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package builtins is the command set monsoon ships with: teleporting,
// regions, arithmetic, echo, background jobs, help, history and game modes.
package builtins

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/Ensemplix/Monsoon/internal/commands"
	"github.com/Ensemplix/Monsoon/internal/history"
	"github.com/Ensemplix/Monsoon/internal/permission"
	"github.com/Ensemplix/Monsoon/internal/tasks"
)

// Parameter types bound by Install.
const (
	TypePlayer   commands.TypeKey = "player"
	TypeRegion   commands.TypeKey = "region"
	TypeCommand  commands.TypeKey = "command"
	TypeJob      commands.TypeKey = "job"
	TypeGameMode commands.TypeKey = "gamemode"
)

// ConsoleName is the sender name used when a sender has none.
const ConsoleName = "console"

// Replier is a sender that can receive command output.
type Replier interface {
	Reply(msg string)
}

// Named is a sender with a name.
type Named interface {
	Name() string
}

// Deps are the services the built-in commands act on. Commands whose
// dependency is nil are not installed.
type Deps struct {
	World   *World
	Roster  *permission.Roster
	Queue   *tasks.Queue
	Runner  *tasks.Runner
	History *history.Store
	Logger  *log.Logger
}

// Installed records what Install registered so it can be removed again.
type Installed struct {
	d       *commands.Dispatcher
	sources []commands.Source
}

// Uninstall unregisters every command Install added.
func (in *Installed) Uninstall() int {
	n := 0
	for _, src := range in.sources {
		n += in.d.Unregister(src)
	}
	return n
}

type host struct {
	d      *commands.Dispatcher
	world  *World
	roster *permission.Roster
	queue  *tasks.Queue
	runner *tasks.Runner
	store  *history.Store
	logger *log.Logger
}

// Install binds the built-in parameter types and registers the commands.
func Install(d *commands.Dispatcher, deps Deps) (*Installed, error) {
	h := &host{
		d:      d,
		world:  deps.World,
		roster: deps.Roster,
		queue:  deps.Queue,
		runner: deps.Runner,
		store:  deps.History,
		logger: deps.Logger,
	}
	if h.world == nil {
		h.world = NewWorld()
	}
	if h.roster == nil {
		h.roster = permission.NewRoster()
	}
	if h.logger == nil {
		h.logger = log.New(io.Discard)
	}
	h.bindTypes()

	groups := []struct {
		src   commands.Source
		names []string
	}{
		{h.teleport(), []string{"tp", "teleport"}},
		{h.region(), []string{"region", "rg"}},
		{h.math(), []string{"math"}},
		{h.echo(), []string{"echo"}},
		{h.help(), []string{"help", "?"}},
		{h.gamemode(), []string{"gamemode", "gm"}},
	}
	if h.queue != nil && h.runner != nil {
		groups = append(groups, struct {
			src   commands.Source
			names []string
		}{h.job(), []string{"job", "jobs"}})
	}
	if h.store != nil {
		groups = append(groups, struct {
			src   commands.Source
			names []string
		}{h.history(), []string{"history"}})
	}

	in := &Installed{d: d}
	for _, g := range groups {
		if err := d.Register(g.src, g.names...); err != nil {
			in.Uninstall()
			return nil, fmt.Errorf("install %s: %w", g.names[0], err)
		}
		in.sources = append(in.sources, g.src)
	}
	h.logger.Debug("builtins installed", "commands", len(in.sources))
	return in, nil
}

func (h *host) bindTypes() {
	h.d.BindParser(TypePlayer, commands.ParserFunc(h.parsePlayer))
	h.d.BindCompleter(TypePlayer, commands.ListCompleter(h.roster.Names))

	h.d.BindParser(TypeRegion, commands.ParserFunc(h.parseRegion))
	h.d.BindCompleter(TypeRegion, commands.ListCompleter(h.world.RegionNames))

	h.d.BindParser(TypeCommand, commands.ParserFunc(h.parseCommand))
	h.d.BindCompleter(TypeCommand, commands.ListCompleter(h.d.Names))

	h.d.BindParser(TypeGameMode, commands.EnumParser(GameModes...))
	h.d.BindCompleter(TypeGameMode, commands.EnumCompleter(GameModes...))

	if h.queue != nil {
		h.d.BindParser(TypeJob, commands.ParserFunc(h.parseJob))
		h.d.BindCompleter(TypeJob, commands.ListCompleter(h.queue.IDs))
	}
}

func (h *host) parsePlayer(_ *commands.Context, _ int, raw commands.Raw) *commands.Argument {
	if raw.Absent {
		return commands.Failed(nil)
	}
	if p, ok := h.roster.Get(raw.Text); ok {
		return commands.Succeed(p)
	}
	return commands.Failed(nil)
}

func (h *host) parseRegion(_ *commands.Context, _ int, raw commands.Raw) *commands.Argument {
	if raw.Absent {
		return commands.Failed(nil)
	}
	if r, ok := h.world.Region(raw.Text); ok {
		return commands.Succeed(r.Name)
	}
	return commands.Failed(nil)
}

func (h *host) parseCommand(_ *commands.Context, _ int, raw commands.Raw) *commands.Argument {
	if raw.Absent {
		return commands.Failed(nil)
	}
	if e := h.d.Lookup(raw.Text); e != nil {
		return commands.Succeed(e)
	}
	return commands.Failed(nil)
}

func (h *host) parseJob(_ *commands.Context, _ int, raw commands.Raw) *commands.Argument {
	if raw.Absent {
		return commands.Failed(nil)
	}
	t, err := h.queue.Find(raw.Text)
	if err != nil {
		return commands.Failed(nil)
	}
	return commands.Succeed(t)
}

// =============================================================================
// HELPERS
// =============================================================================

func reply(s commands.Sender, msg string) {
	if r, ok := s.(Replier); ok {
		r.Reply(msg)
	}
}

func replyf(s commands.Sender, format string, args ...any) {
	reply(s, fmt.Sprintf(format, args...))
}

func senderName(s commands.Sender) string {
	if n, ok := s.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return ConsoleName
}

// given reports whether the token for arg was typed at all.
func given(arg *commands.Argument) bool {
	return arg != nil && arg.HasText
}

func params(ps ...commands.Param) []commands.Param {
	return append([]commands.Param{commands.SenderParam()}, ps...)
}
