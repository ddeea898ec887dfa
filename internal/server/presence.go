// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Ensemplix/Monsoon/internal/permission"
)

const (
	// PresenceTimeout is used when the config leaves presence_timeout unset.
	PresenceTimeout = 5 * time.Minute

	// maxInbox caps replies held for a sender between requests.
	maxInbox = 100
)

// client is one HTTP sender. Its principal stays on the roster while the
// sender keeps making requests, so other senders can target it.
type client struct {
	principal *permission.Principal
	lastSeen  time.Time

	mu    sync.Mutex
	inbox []string
}

func (c *client) deliver(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbox) == maxInbox {
		c.inbox = c.inbox[1:]
	}
	c.inbox = append(c.inbox, msg)
}

// drain returns and clears the pending replies. It never returns nil.
func (c *client) drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.inbox
	c.inbox = nil
	if out == nil {
		out = []string{}
	}
	return out
}

// presence maps sender names to clients and expires idle ones.
type presence struct {
	mu      sync.Mutex
	roster  *permission.Roster
	grants  *permission.Store
	clients map[string]*client
	idle    time.Duration
	now     func() time.Time
	logger  *log.Logger
}

func newPresence(roster *permission.Roster, grants *permission.Store, idle time.Duration, logger *log.Logger) *presence {
	if idle <= 0 {
		idle = PresenceTimeout
	}
	return &presence{
		roster:  roster,
		grants:  grants,
		clients: make(map[string]*client),
		idle:    idle,
		now:     time.Now,
		logger:  logger,
	}
}

// touch returns the client for name, putting it on the roster on first use.
func (p *presence) touch(name string) *client {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.expireLocked(now)

	key := strings.ToLower(name)
	c, ok := p.clients[key]
	if !ok {
		c = &client{}
		c.principal = permission.NewPrincipal(name, p.grants, c.deliver)
		p.clients[key] = c
		if p.roster != nil {
			p.roster.Join(c.principal)
		}
		p.logger.Debug("sender online", "sender", name, "session", c.principal.Session())
	}
	c.lastSeen = now
	return c
}

func (p *presence) expireLocked(now time.Time) {
	for key, c := range p.clients {
		if now.Sub(c.lastSeen) < p.idle {
			continue
		}
		delete(p.clients, key)
		p.leave(c)
	}
}

func (p *presence) leave(c *client) {
	if p.roster != nil {
		p.roster.Leave(c.principal)
	}
	p.logger.Debug("sender offline", "sender", c.principal.Name(), "session", c.principal.Session())
}

// close takes every client off the roster.
func (p *presence) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, c := range p.clients {
		delete(p.clients, key)
		p.leave(c)
	}
}
