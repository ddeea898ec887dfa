// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package permission

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grants = `
default_allow = false

[[grant]]
sender = "alice"
allow = ["tp.*", "region.*"]
deny = ["region.remove"]

[[grant]]
sender = "*"
allow = ["echo", "region.list"]

[[grant]]
sender = "root"
allow = ["*"]
`

func TestPolicyAllows(t *testing.T) {
	p, err := Parse([]byte(grants))
	require.NoError(t, err)

	tests := []struct {
		sender, command, action string
		want                    bool
	}{
		{"alice", "tp", "here", true},
		{"Alice", "TP", "player", true},
		{"alice", "tp", "", true},
		{"alice", "region", "add", true},
		{"alice", "region", "remove", false},
		{"bob", "region", "list", true},
		{"bob", "region", "add", false},
		{"bob", "echo", "", true},
		{"bob", "echo", "upper", false},
		{"root", "region", "remove", true},
		{"nobody", "math", "add", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Allows(tt.sender, tt.command, tt.action),
			"%s %s.%s", tt.sender, tt.command, tt.action)
	}
}

func TestPolicyDefaultAllow(t *testing.T) {
	p, err := Parse([]byte("default_allow = true\n[[grant]]\nsender = \"bob\"\ndeny = [\"tp.*\"]\n"))
	require.NoError(t, err)
	assert.True(t, p.Allows("alice", "tp", "here"))
	assert.False(t, p.Allows("bob", "tp", "here"))
	assert.True(t, p.Allows("bob", "math", "add"))

	var nilPolicy *Policy
	assert.False(t, nilPolicy.Allows("alice", "tp", ""))
}

func TestPolicyValidate(t *testing.T) {
	bad := []string{
		"[[grant]]\nallow = [\"tp\"]\n",
		"[[grant]]\nsender = \"a\"\nallow = [\".here\"]\n",
		"[[grant]]\nsender = \"a\"\nallow = [\"tp.a.b\"]\n",
		"[[grant]]\nsender = \"a\"\ndeny = [\"*.here\"]\n",
		"default_allow = maybe",
	}
	for _, doc := range bad {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestPrincipal(t *testing.T) {
	p, err := Parse([]byte(grants))
	require.NoError(t, err)

	var got []string
	alice := NewPrincipal("alice", NewStore(p), func(s string) { got = append(got, s) })
	assert.True(t, alice.CanUseCommand("tp", "here"))
	assert.False(t, alice.CanUseCommand("region", "remove"))
	assert.NotEmpty(t, alice.Session())

	alice.Reply("hello")
	assert.Equal(t, []string{"hello"}, got)

	orphan := NewPrincipal("x", nil, nil)
	assert.False(t, orphan.CanUseCommand("echo", ""))
	orphan.Reply("dropped")
}

func TestRoster(t *testing.T) {
	r := NewRoster()
	first := NewPrincipal("Bob", nil, nil)
	second := NewPrincipal("bob", nil, nil)
	r.Join(NewPrincipal("alice", nil, nil))
	r.Join(first)
	r.Join(second)

	assert.Equal(t, []string{"alice", "bob"}, r.Names())

	r.Leave(first)
	_, ok := r.Get("BOB")
	assert.True(t, ok, "stale session must not remove the new one")

	r.Leave(second)
	_, ok = r.Get("bob")
	assert.False(t, ok)
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grants.toml")
	require.NoError(t, os.WriteFile(path, []byte("default_allow = false\n"), 0600))

	p, err := LoadFile(path)
	require.NoError(t, err)
	store := NewStore(p)

	w, err := NewWatcher(path, store, 20*time.Millisecond, log.New(io.Discard))
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("default_allow = true\n"), 0600))
	assert.Eventually(t, func() bool {
		return store.Allows("anyone", "echo", "")
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("default_allow = [broken"), 0600))
	time.Sleep(200 * time.Millisecond)
	assert.True(t, store.Allows("anyone", "echo", ""), "invalid file keeps the previous policy")
}

func TestReloadKeepsPolicyOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	store := NewStore(&Policy{DefaultAllow: true})
	w, err := NewWatcher(path, store, time.Millisecond, log.New(io.Discard))
	require.NoError(t, err)
	defer w.Close()

	assert.False(t, w.Reload())
	assert.True(t, store.Allows("x", "y", ""))
}
