// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package permission

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Principal is a named sender backed by a policy store. Replies go to the
// output function of whichever transport created it.
type Principal struct {
	name    string
	session string
	store   *Store
	out     func(string)
}

// NewPrincipal creates a sender. A nil out discards replies.
func NewPrincipal(name string, store *Store, out func(string)) *Principal {
	if out == nil {
		out = func(string) {}
	}
	return &Principal{
		name:    name,
		session: uuid.New().String(),
		store:   store,
		out:     out,
	}
}

// Name is the sender name used by grants.
func (p *Principal) Name() string { return p.name }

// Session identifies this login.
func (p *Principal) Session() string { return p.session }

// CanUseCommand asks the policy store.
func (p *Principal) CanUseCommand(command, action string) bool {
	if p.store == nil {
		return false
	}
	return p.store.Allows(p.name, command, action)
}

// Reply sends a message back to the sender.
func (p *Principal) Reply(msg string) {
	p.out(msg)
}

// Roster tracks the principals currently connected.
type Roster struct {
	mu     sync.RWMutex
	online map[string]*Principal
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{online: make(map[string]*Principal)}
}

// Join adds p, replacing an earlier session with the same name.
func (r *Roster) Join(p *Principal) {
	r.mu.Lock()
	r.online[strings.ToLower(p.name)] = p
	r.mu.Unlock()
}

// Leave removes p if it is still the active session for its name.
func (r *Roster) Leave(p *Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(p.name)
	if cur, ok := r.online[key]; ok && cur.session == p.session {
		delete(r.online, key)
	}
}

// Get finds an online principal by name, ignoring case.
func (r *Roster) Get(name string) (*Principal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.online[strings.ToLower(name)]
	return p, ok
}

// Names lists online principals, sorted.
func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.online))
	for _, p := range r.online {
		names = append(names, p.name)
	}
	sort.Strings(names)
	return names
}
