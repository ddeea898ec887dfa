// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package builtins

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// SpawnRegion always exists and is where players start.
const SpawnRegion = "spawn"

// GameModes are the values accepted by the gamemode command.
var GameModes = []string{"survival", "creative", "adventure", "spectator"}

// Region is a named area with a member list.
type Region struct {
	Name    string
	Members []string
}

// World is the in-memory state the built-in commands act on.
type World struct {
	mu        sync.RWMutex
	regions   map[string]*Region
	locations map[string]string
	modes     map[string]string
}

// NewWorld creates a world containing only the spawn region.
func NewWorld() *World {
	return &World{
		regions:   map[string]*Region{SpawnRegion: {Name: SpawnRegion}},
		locations: make(map[string]string),
		modes:     make(map[string]string),
	}
}

// AddRegion creates a region. Names are case-insensitive.
func (w *World) AddRegion(name string) error {
	key := strings.ToLower(name)
	if key == "" {
		return fmt.Errorf("region name is empty")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.regions[key]; ok {
		return fmt.Errorf("region %q already exists", name)
	}
	w.regions[key] = &Region{Name: name}
	return nil
}

// RemoveRegion deletes a region and sends everyone inside back to spawn.
func (w *World) RemoveRegion(name string) error {
	key := strings.ToLower(name)
	if key == SpawnRegion {
		return fmt.Errorf("the %s region cannot be removed", SpawnRegion)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.regions[key]; !ok {
		return fmt.Errorf("no region %q", name)
	}
	delete(w.regions, key)
	for player, loc := range w.locations {
		if loc == key {
			w.locations[player] = SpawnRegion
		}
	}
	return nil
}

// Region returns a copy of the named region.
func (w *World) Region(name string) (Region, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.regions[strings.ToLower(name)]
	if !ok {
		return Region{}, false
	}
	return Region{Name: r.Name, Members: append([]string(nil), r.Members...)}, true
}

// RegionNames lists regions, sorted.
func (w *World) RegionNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.regions))
	for _, r := range w.regions {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// SetMembers replaces the member list of a region.
func (w *World) SetMembers(region string, members []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.regions[strings.ToLower(region)]
	if !ok {
		return fmt.Errorf("no region %q", region)
	}
	r.Members = append([]string(nil), members...)
	return nil
}

// Location returns the region a player stands in.
func (w *World) Location(player string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if loc, ok := w.locations[strings.ToLower(player)]; ok {
		return loc
	}
	return SpawnRegion
}

// Move puts a player into a region.
func (w *World) Move(player, region string) {
	w.mu.Lock()
	w.locations[strings.ToLower(player)] = strings.ToLower(region)
	w.mu.Unlock()
}

// Mode returns a player's game mode.
func (w *World) Mode(player string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if m, ok := w.modes[strings.ToLower(player)]; ok {
		return m
	}
	return GameModes[0]
}

// SetMode changes a player's game mode.
func (w *World) SetMode(player, mode string) {
	w.mu.Lock()
	w.modes[strings.ToLower(player)] = mode
	w.mu.Unlock()
}
