// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"io"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/log"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// COMMAND ACTION
// =============================================================================

// CommandAction is a validated Action. It is immutable once built.
type CommandAction struct {
	name        string
	main        bool
	permission  bool
	description string
	params      []Param // sender excluded
	returns     ReturnKind
	handler     HandlerFunc
}

// Name returns the lowercased sub-name, empty for an unnamed main action.
func (a *CommandAction) Name() string        { return a.name }
func (a *CommandAction) Main() bool          { return a.main }
func (a *CommandAction) Permission() bool    { return a.permission }
func (a *CommandAction) Description() string { return a.description }
func (a *CommandAction) Returns() ReturnKind { return a.returns }

// Params returns the declared parameters without the sender.
func (a *CommandAction) Params() []Param {
	out := make([]Param, len(a.params))
	copy(out, a.params)
	return out
}

// Arity is the declared parameter count, sender excluded.
func (a *CommandAction) Arity() int {
	return len(a.params)
}

// Collection reports whether the last parameter takes all remaining tokens.
func (a *CommandAction) Collection() bool {
	return len(a.params) > 0 && a.params[len(a.params)-1].Kind.IsCollection()
}

// =============================================================================
// COMMAND ENTRY
// =============================================================================

// Entry is everything registered for one action source. All names it was
// registered under point at the same Entry.
type Entry struct {
	name    string
	names   []string
	owner   Source
	mains   []*CommandAction
	actions map[string][]*CommandAction
	order   []string
}

// Name returns the canonical primary name.
func (e *Entry) Name() string { return e.name }

// Names returns every name the entry answers to, primary first.
func (e *Entry) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Owner returns the source the entry was built from.
func (e *Entry) Owner() Source { return e.owner }

// Mains returns the default actions.
func (e *Entry) Mains() []*CommandAction {
	out := make([]*CommandAction, len(e.mains))
	copy(out, e.mains)
	return out
}

// SubNames returns the sub-names in declaration order.
func (e *Entry) SubNames() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Overloads returns the actions sharing a sub-name.
func (e *Entry) Overloads(sub string) []*CommandAction {
	actions := e.actions[canonical(sub)]
	out := make([]*CommandAction, len(actions))
	copy(out, actions)
	return out
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher owns the parser, completer and command registries.
//
// The registries are guarded for basic read consistency only. Hosts are
// expected to register at startup or plugin boundaries.
type Dispatcher struct {
	mu         sync.RWMutex
	parsers    map[TypeKey]ArgumentParser
	completers map[TypeKey]Completer
	commands   map[string]*Entry

	prefix string
	logger *log.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for registration and invocation events.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithPrefix makes the dispatcher strip prefix (e.g. "/") from command lines
// and prepend it to command name suggestions.
func WithPrefix(prefix string) Option {
	return func(d *Dispatcher) {
		d.prefix = prefix
	}
}

// New creates a dispatcher with the built-in parsers bound.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		parsers:    make(map[TypeKey]ArgumentParser),
		completers: make(map[TypeKey]Completer),
		commands:   make(map[string]*Entry),
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.bindBuiltinParsers()
	return d
}

// Prefix returns the configured command prefix.
func (d *Dispatcher) Prefix() string {
	return d.prefix
}

// BindParser sets the parser for a type. A nil parser is ignored.
func (d *Dispatcher) BindParser(t TypeKey, p ArgumentParser) {
	if p == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.parsers[t] = p
}

// BindCompleter sets the completer for a type. A nil completer is ignored.
func (d *Dispatcher) BindCompleter(t TypeKey, c Completer) {
	if c == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completers[t] = c
}

// =============================================================================
// REGISTRATION
// =============================================================================

// Register validates the actions of src and binds one entry under every name.
// The first name is the primary one. Either everything is registered or
// nothing is.
func (d *Dispatcher) Register(src Source, names ...string) error {
	if src == nil {
		return regError(KindNilSource, "", "")
	}
	if len(names) == 0 {
		return regError(KindEmptyName, "", "")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	canon := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if err := checkName(name, name, ""); err != nil {
			return err
		}
		c := canonical(name)
		if _, exists := d.commands[c]; exists || seen[c] {
			return regError(KindDuplicateName, name, "")
		}
		seen[c] = true
		canon = append(canon, c)
	}

	entry, err := d.buildEntry(src, canon[0])
	if err != nil {
		return err
	}
	entry.names = canon
	for _, c := range canon {
		d.commands[c] = entry
	}

	d.logger.Debug("registered command",
		"command", entry.name,
		"aliases", canon[1:],
		"mains", len(entry.mains),
		"subs", len(entry.order))
	return nil
}

// Unregister removes every name bound to an entry owned by src and returns
// how many names were removed.
func (d *Dispatcher) Unregister(src Source) int {
	if src == nil {
		return 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for name, entry := range d.commands {
		if entry.owner == src {
			delete(d.commands, name)
			removed++
		}
	}
	if removed > 0 {
		d.logger.Debug("unregistered command source", "names", removed)
	}
	return removed
}

func (d *Dispatcher) buildEntry(src Source, name string) (*Entry, error) {
	declared := src.Actions()
	if len(declared) == 0 {
		return nil, regError(KindNoActions, name, "")
	}

	entry := &Entry{
		name:    name,
		owner:   src,
		actions: make(map[string][]*CommandAction),
	}
	for _, decl := range declared {
		action, err := d.buildAction(name, decl)
		if err != nil {
			return nil, err
		}
		if action.main {
			entry.mains = append(entry.mains, action)
		}
		if action.name == "" {
			continue
		}
		if _, ok := entry.actions[action.name]; !ok {
			entry.order = append(entry.order, action.name)
		}
		entry.actions[action.name] = append(entry.actions[action.name], action)
	}
	return entry, nil
}

func (d *Dispatcher) buildAction(command string, decl Action) (*CommandAction, error) {
	label := decl.Name
	if label == "" && !decl.Main {
		return nil, regError(KindEmptyName, command, "")
	}
	if label != "" {
		if err := checkName(label, command, label); err != nil {
			return nil, err
		}
	}
	if label == "" {
		label = "main"
	}

	if decl.Returns != ReturnVoid && decl.Returns != ReturnBool {
		return nil, regError(KindBadReturn, command, label)
	}
	if len(decl.Params) == 0 || decl.Params[0].Type != TypeSender {
		return nil, regError(KindNoSender, command, label)
	}

	params := decl.Params[1:]
	for i, p := range params {
		if p.Kind.IsCollection() && i != len(params)-1 {
			return nil, &RegistrationError{Kind: KindMisplacedCollection, Command: command, Action: label, Param: i + 1, Type: p.Type}
		}
		if _, ok := d.parsers[p.Type]; !ok {
			return nil, &RegistrationError{Kind: KindNoParser, Command: command, Action: label, Param: i + 1, Type: p.Type}
		}
	}
	if decl.Handler == nil {
		return nil, regError(KindNilHandler, command, label)
	}

	return &CommandAction{
		name:        canonical(decl.Name),
		main:        decl.Main,
		permission:  decl.Permission,
		description: decl.Description,
		params:      append([]Param(nil), params...),
		returns:     decl.Returns,
		handler:     decl.Handler,
	}, nil
}

func checkName(name, command, action string) error {
	if name == "" {
		return regError(KindEmptyName, command, action)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return regError(KindWhitespaceName, command, action)
	}
	return nil
}

// =============================================================================
// LOOKUP
// =============================================================================

// Lookup returns the entry registered under name, or nil.
func (d *Dispatcher) Lookup(name string) *Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.commands[canonical(strings.TrimPrefix(name, d.prefix))]
}

// Names returns every registered name, aliases included, sorted.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns each registered entry once, sorted by primary name.
func (d *Dispatcher) Entries() []*Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	seen := make(map[*Entry]bool)
	entries := make([]*Entry, 0, len(d.commands))
	for _, entry := range d.commands {
		if seen[entry] {
			continue
		}
		seen[entry] = true
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].name < entries[j].name
	})
	return entries
}

// canonical is the registry key form of a command or sub-name.
func canonical(s string) string {
	return norm.NFC.String(strings.ToLower(s))
}
