// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package permission decides which senders may run permission-required
// command actions, based on a TOML grants file.
package permission

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Wildcard matches any sender or any command.
const Wildcard = "*"

// Grant lists rules for one sender, or for every sender when Sender is "*".
type Grant struct {
	Sender string   `toml:"sender"`
	Allow  []string `toml:"allow"`
	Deny   []string `toml:"deny"`
}

// Policy is a parsed grants file.
//
// Rules have the forms "cmd" (main action only), "cmd.action", "cmd.*"
// (every action of cmd) and "*". Deny rules win over allow rules. When no
// rule matches, DefaultAllow decides.
type Policy struct {
	DefaultAllow bool    `toml:"default_allow"`
	Grants       []Grant `toml:"grant"`
}

// Parse decodes and checks a grants document.
func Parse(data []byte) (*Policy, error) {
	var p Policy
	if _, err := toml.Decode(string(data), &p); err != nil {
		return nil, fmt.Errorf("parse grants: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadFile reads a grants file.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grants: %w", err)
	}
	return Parse(data)
}

// Validate rejects grants without a sender and malformed rules.
func (p *Policy) Validate() error {
	for i, g := range p.Grants {
		if strings.TrimSpace(g.Sender) == "" {
			return fmt.Errorf("grant %d: sender is required", i+1)
		}
		for _, rule := range append(append([]string(nil), g.Allow...), g.Deny...) {
			if err := checkRule(rule); err != nil {
				return fmt.Errorf("grant %d (%s): %w", i+1, g.Sender, err)
			}
		}
	}
	return nil
}

func checkRule(rule string) error {
	if rule == Wildcard {
		return nil
	}
	cmd, action, _ := strings.Cut(rule, ".")
	if cmd == "" || cmd == Wildcard || strings.ContainsAny(rule, " \t") {
		return fmt.Errorf("invalid rule %q", rule)
	}
	if strings.Contains(action, ".") {
		return fmt.Errorf("invalid rule %q", rule)
	}
	return nil
}

// Allows reports whether sender may run action of command. An empty action
// is the main action.
func (p *Policy) Allows(sender, command, action string) bool {
	if p == nil {
		return false
	}
	allowed := false
	for _, g := range p.Grants {
		if g.Sender != Wildcard && !strings.EqualFold(g.Sender, sender) {
			continue
		}
		for _, rule := range g.Deny {
			if ruleMatches(rule, command, action) {
				return false
			}
		}
		for _, rule := range g.Allow {
			if ruleMatches(rule, command, action) {
				allowed = true
			}
		}
	}
	return allowed || p.DefaultAllow
}

func ruleMatches(rule, command, action string) bool {
	if rule == Wildcard {
		return true
	}
	cmd, sub, hasSub := strings.Cut(strings.ToLower(rule), ".")
	if cmd != strings.ToLower(command) {
		return false
	}
	switch {
	case !hasSub:
		return action == ""
	case sub == Wildcard:
		return true
	default:
		return sub == strings.ToLower(action)
	}
}

// Store holds the current policy and swaps it atomically on reload.
type Store struct {
	mu     sync.RWMutex
	policy *Policy
}

// NewStore wraps an initial policy. A nil policy denies everything.
func NewStore(p *Policy) *Store {
	return &Store{policy: p}
}

// Policy returns the active policy.
func (s *Store) Policy() *Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Set replaces the active policy.
func (s *Store) Set(p *Policy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

// Allows checks the active policy.
func (s *Store) Allows(sender, command, action string) bool {
	return s.Policy().Allows(sender, command, action)
}
