// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package builtins

import (
	"strings"

	"github.com/Ensemplix/Monsoon/internal/commands"
	"github.com/Ensemplix/Monsoon/internal/permission"
)

// =============================================================================
// TELEPORT
// =============================================================================

func (h *host) teleport() commands.Source {
	return commands.NewActionSet(
		commands.Action{
			Name:        "here",
			Permission:  true,
			Description: "Bring a player to your region",
			Params:      params(commands.Arg("player", TypePlayer)),
			Returns:     commands.ReturnBool,
			Handler:     h.tpHere,
		},
		commands.Action{
			Name:        "player",
			Permission:  true,
			Description: "Send a player to another player",
			Params:      params(commands.Arg("target", TypePlayer), commands.Arg("destination", TypePlayer)),
			Returns:     commands.ReturnBool,
			Handler:     h.tpPlayer,
		},
	)
}

func (h *host) tpHere(s commands.Sender, args commands.Values) (bool, error) {
	target, ok := online(s, args.Argument(0))
	if !ok {
		return false, nil
	}
	dest := h.world.Location(senderName(s))
	h.world.Move(target.Name(), dest)
	target.Reply(senderName(s) + " teleported you to " + dest)
	replyf(s, "Teleported %s to %s", target.Name(), dest)
	return true, nil
}

func (h *host) tpPlayer(s commands.Sender, args commands.Values) (bool, error) {
	target, ok := online(s, args.Argument(0))
	if !ok {
		return false, nil
	}
	destination, ok := online(s, args.Argument(1))
	if !ok {
		return false, nil
	}
	dest := h.world.Location(destination.Name())
	h.world.Move(target.Name(), dest)
	target.Reply("You were teleported to " + destination.Name())
	replyf(s, "Teleported %s to %s (%s)", target.Name(), destination.Name(), dest)
	return true, nil
}

func online(s commands.Sender, arg *commands.Argument) (*permission.Principal, bool) {
	if !given(arg) {
		reply(s, "Missing player name")
		return nil, false
	}
	p, ok := commands.As[*permission.Principal](arg)
	if !arg.OK() || !ok {
		replyf(s, "Player %q is not online", arg.Text)
		return nil, false
	}
	return p, true
}

// =============================================================================
// REGION
// =============================================================================

func (h *host) region() commands.Source {
	return commands.NewActionSet(
		commands.Action{
			Name:        "info",
			Main:        true,
			Description: "Show a region",
			Params:      params(commands.Arg("region", TypeRegion)),
			Returns:     commands.ReturnBool,
			Handler:     h.regionInfo,
		},
		commands.Action{
			Name:        "list",
			Description: "List regions",
			Params:      params(),
			Handler:     h.regionList,
		},
		commands.Action{
			Name:        "add",
			Description: "Create a region",
			Params:      params(commands.P("name", commands.TypeString)),
			Returns:     commands.ReturnBool,
			Handler:     h.regionAdd,
		},
		commands.Action{
			Name:        "members",
			Description: "Replace the members of a region",
			Params:      params(commands.Arg("region", TypeRegion), commands.RestArgs("players", TypePlayer)),
			Returns:     commands.ReturnBool,
			Handler:     h.regionMembers,
		},
		commands.Action{
			Name:        "remove",
			Permission:  true,
			Description: "Delete a region",
			Params:      params(commands.Arg("region", TypeRegion)),
			Returns:     commands.ReturnBool,
			Handler:     h.regionRemove,
		},
	)
}

func (h *host) knownRegion(s commands.Sender, arg *commands.Argument) (string, bool) {
	if !given(arg) {
		reply(s, "Missing region name")
		return "", false
	}
	name, ok := commands.As[string](arg)
	if !arg.OK() || !ok {
		replyf(s, "Unknown region %q", arg.Text)
		return "", false
	}
	return name, true
}

func (h *host) regionInfo(s commands.Sender, args commands.Values) (bool, error) {
	name, ok := h.knownRegion(s, args.Argument(0))
	if !ok {
		return false, nil
	}
	r, _ := h.world.Region(name)
	members := "none"
	if len(r.Members) > 0 {
		members = strings.Join(r.Members, ", ")
	}
	replyf(s, "Region %s\nMembers: %s", r.Name, members)
	return true, nil
}

func (h *host) regionList(s commands.Sender, _ commands.Values) (bool, error) {
	reply(s, "Regions: "+strings.Join(h.world.RegionNames(), ", "))
	return true, nil
}

func (h *host) regionAdd(s commands.Sender, args commands.Values) (bool, error) {
	name := args.String(0)
	if err := h.world.AddRegion(name); err != nil {
		reply(s, err.Error())
		return false, nil
	}
	replyf(s, "Created region %s", name)
	return true, nil
}

func (h *host) regionMembers(s commands.Sender, args commands.Values) (bool, error) {
	name, ok := h.knownRegion(s, args.Argument(0))
	if !ok {
		return false, nil
	}
	var members, offline []string
	for _, arg := range args.Arguments(1) {
		members = append(members, arg.Text)
		if !arg.OK() {
			offline = append(offline, arg.Text)
		}
	}
	if err := h.world.SetMembers(name, members); err != nil {
		reply(s, err.Error())
		return false, nil
	}
	msg := "Updated members of " + name
	if len(offline) > 0 {
		msg += " (offline: " + strings.Join(offline, ", ") + ")"
	}
	reply(s, msg)
	return true, nil
}

func (h *host) regionRemove(s commands.Sender, args commands.Values) (bool, error) {
	name, ok := h.knownRegion(s, args.Argument(0))
	if !ok {
		return false, nil
	}
	if err := h.world.RemoveRegion(name); err != nil {
		reply(s, err.Error())
		return false, nil
	}
	replyf(s, "Removed region %s", name)
	return true, nil
}

// =============================================================================
// GAMEMODE
// =============================================================================

func (h *host) gamemode() commands.Source {
	return commands.NewActionSet(commands.Action{
		Main:        true,
		Description: "Show or change your game mode",
		Params:      params(commands.Arg("mode", TypeGameMode)),
		Returns:     commands.ReturnBool,
		Handler:     h.setGameMode,
	})
}

func (h *host) setGameMode(s commands.Sender, args commands.Values) (bool, error) {
	arg := args.Argument(0)
	name := senderName(s)
	if !given(arg) {
		replyf(s, "Game mode: %s", h.world.Mode(name))
		return true, nil
	}
	mode, ok := commands.As[string](arg)
	if !arg.OK() || !ok {
		replyf(s, "Unknown game mode %q (one of %s)", arg.Text, strings.Join(GameModes, ", "))
		return false, nil
	}
	h.world.SetMode(name, mode)
	replyf(s, "Game mode set to %s", mode)
	return true, nil
}
