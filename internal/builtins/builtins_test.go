// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package builtins

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ensemplix/Monsoon/internal/commands"
	"github.com/Ensemplix/Monsoon/internal/history"
	"github.com/Ensemplix/Monsoon/internal/permission"
	"github.com/Ensemplix/Monsoon/internal/tasks"
)

type inbox struct {
	mu   sync.Mutex
	msgs []string
}

func (b *inbox) add(msg string) {
	b.mu.Lock()
	b.msgs = append(b.msgs, msg)
	b.mu.Unlock()
}

func (b *inbox) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.msgs) == 0 {
		return ""
	}
	return b.msgs[len(b.msgs)-1]
}

type fixture struct {
	d      *commands.Dispatcher
	world  *World
	roster *permission.Roster
	queue  *tasks.Queue
	store  *history.Store
	policy *permission.Store
	in     *Installed

	alice, bob     *permission.Principal
	aliceIn, bobIn *inbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(io.Discard)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	queue := tasks.NewQueue(10, 0, logger)
	runner := tasks.NewRunner(queue, 2, time.Minute, logger)
	runner.Start(context.Background())
	t.Cleanup(runner.Stop)

	f := &fixture{
		d:       commands.New(),
		world:   NewWorld(),
		roster:  permission.NewRoster(),
		queue:   queue,
		store:   store,
		policy:  permission.NewStore(&permission.Policy{DefaultAllow: true}),
		aliceIn: &inbox{},
		bobIn:   &inbox{},
	}
	f.alice = permission.NewPrincipal("alice", f.policy, f.aliceIn.add)
	f.bob = permission.NewPrincipal("bob", f.policy, f.bobIn.add)
	f.roster.Join(f.alice)
	f.roster.Join(f.bob)

	f.in, err = Install(f.d, Deps{
		World:   f.world,
		Roster:  f.roster,
		Queue:   queue,
		Runner:  runner,
		History: store,
		Logger:  logger,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) call(t *testing.T, line string) bool {
	t.Helper()
	res, err := f.d.Call(f.alice, line)
	require.NoError(t, err, line)
	return res.Success
}

func TestTeleport(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.world.AddRegion("arena"))
	f.world.Move("alice", "arena")

	assert.True(t, f.call(t, "tp here bob"))
	assert.Equal(t, "arena", f.world.Location("bob"))
	assert.Equal(t, "Teleported bob to arena", f.aliceIn.last())
	assert.Equal(t, "alice teleported you to arena", f.bobIn.last())

	f.world.Move("bob", "spawn")
	assert.True(t, f.call(t, "teleport player alice bob"))
	assert.Equal(t, "spawn", f.world.Location("alice"))

	assert.False(t, f.call(t, "tp here carol"))
	assert.Equal(t, `Player "carol" is not online`, f.aliceIn.last())

	assert.False(t, f.call(t, "tp here"))
	assert.Equal(t, "Missing player name", f.aliceIn.last())
}

func TestTeleportNeedsPermission(t *testing.T) {
	f := newFixture(t)
	f.policy.Set(&permission.Policy{})

	_, err := f.d.Call(f.alice, "tp here bob")
	assert.ErrorIs(t, err, commands.ErrAccessDenied)

	res, err := f.d.Call(f.alice, "echo still works")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestRegion(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.call(t, "region add Arena"))
	assert.False(t, f.call(t, "region add arena"))
	assert.Contains(t, f.aliceIn.last(), "already exists")

	assert.True(t, f.call(t, "rg list"))
	assert.Equal(t, "Regions: Arena, spawn", f.aliceIn.last())

	assert.True(t, f.call(t, "region members arena bob carol"))
	assert.Equal(t, "Updated members of Arena (offline: carol)", f.aliceIn.last())

	assert.True(t, f.call(t, "region arena"))
	assert.Equal(t, "Region Arena\nMembers: bob, carol", f.aliceIn.last())

	assert.False(t, f.call(t, "region nowhere"))
	assert.Equal(t, `Unknown region "nowhere"`, f.aliceIn.last())

	f.world.Move("bob", "arena")
	assert.True(t, f.call(t, "region remove arena"))
	assert.Equal(t, SpawnRegion, f.world.Location("bob"))

	assert.False(t, f.call(t, "region remove spawn"))
}

func TestMath(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.call(t, "math add 2 3"))
	assert.Equal(t, "5", f.aliceIn.last())

	assert.True(t, f.call(t, "math add 2 3 4"))
	assert.Equal(t, "9", f.aliceIn.last())

	assert.False(t, f.call(t, "math add 2 x"))
	assert.Equal(t, `"x" is not a whole number`, f.aliceIn.last())

	assert.False(t, f.call(t, "math add 2"))
	assert.Equal(t, "Missing number", f.aliceIn.last())

	assert.True(t, f.call(t, "math avg 1 2 4.5"))
	assert.Equal(t, "2.5", f.aliceIn.last())

	assert.False(t, f.call(t, "math avg"))
	assert.Equal(t, "Nothing to average", f.aliceIn.last())

	assert.True(t, f.call(t, "math max 1.5 -2 7"))
	assert.Equal(t, "7", f.aliceIn.last())

	assert.True(t, f.call(t, "math max -3 x"))
	assert.Equal(t, "0", f.aliceIn.last())
}

func TestEcho(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.call(t, "echo hello  world"))
	assert.Equal(t, "hello  world", f.aliceIn.last())

	assert.True(t, f.call(t, "echo upper shout it"))
	assert.Equal(t, "SHOUT IT", f.aliceIn.last())
}

func TestHelp(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.call(t, "help"))
	all := f.aliceIn.last()
	for _, want := range []string{"tp here <player>", "math add <a> <b> <c>", "echo <words...>", "job run <name> <seconds>"} {
		assert.Contains(t, all, want)
	}

	assert.True(t, f.call(t, "help teleport"))
	one := f.aliceIn.last()
	assert.Contains(t, one, "tp player <target> <destination>")
	assert.Contains(t, one, "Aliases: teleport")
	assert.NotContains(t, one, "echo")

	assert.False(t, f.call(t, "help nope"))
	assert.Equal(t, `Unknown command "nope"`, f.aliceIn.last())
}

func TestGameMode(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.call(t, "gm"))
	assert.Equal(t, "Game mode: survival", f.aliceIn.last())

	assert.True(t, f.call(t, "gamemode CREATIVE"))
	assert.Equal(t, "creative", f.world.Mode("alice"))

	assert.False(t, f.call(t, "gamemode hardcore"))
	assert.Equal(t, "survival", f.world.Mode("bob"))
}

func TestJobs(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.call(t, "job run nap 60"))
	require.True(t, strings.HasPrefix(f.aliceIn.last(), "Accepted job "))
	all := f.queue.All()
	require.Len(t, all, 1)
	job := all[0]
	assert.Equal(t, "alice", job.Sender)

	assert.False(t, f.call(t, "job run nap 0"))

	assert.True(t, f.call(t, "jobs list"))
	listing := strings.Split(f.aliceIn.last(), "\n")
	require.Len(t, listing, 2)
	assert.True(t, strings.HasPrefix(listing[0], "Total: 1 | "), listing[0])
	assert.Contains(t, listing[1], "nap")

	assert.Equal(t, []string{job.ShortID()}, f.d.Complete(f.alice, "job cancel "+job.ID[:2]))

	assert.True(t, f.call(t, "job cancel "+job.ShortID()))
	assert.Equal(t, tasks.StatusCanceled, job.Status())

	assert.False(t, f.call(t, "job cancel "+job.ShortID()))
	assert.False(t, f.call(t, "job cancel zzzzzzzz"))
}

func TestRelay(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Relay(ctx, f.queue, f.roster)

	assert.True(t, f.call(t, "job run quick 1"))
	job := f.queue.All()[0]

	assert.Eventually(t, func() bool {
		return f.aliceIn.last() == "Job "+job.ShortID()+" (quick) complete"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Record(ctx, history.Entry{Sender: "alice", Line: "echo one", Success: true})
	require.NoError(t, err)
	_, err = f.store.Record(ctx, history.Entry{Sender: "alice", Line: "math add x", Error: "bad"})
	require.NoError(t, err)
	_, err = f.store.Record(ctx, history.Entry{Sender: "bob", Line: "echo bob"})
	require.NoError(t, err)

	assert.True(t, f.call(t, "history"))
	out := f.aliceIn.last()
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "echo one")
	assert.Contains(t, lines[1], "math add x  (bad)")

	assert.True(t, f.call(t, "history 1"))
	assert.NotContains(t, f.aliceIn.last(), "echo one")

	assert.False(t, f.call(t, "history -3"))
}

func TestCompletion(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{"bob", "alice"}, f.d.Complete(f.alice, "tp here "))
	assert.Equal(t, []string{"bob"}, f.d.Complete(f.alice, "tp player alice b"))
	assert.Equal(t, []string{"survival", "spectator"}, f.d.Complete(f.alice, "gm s"))
	assert.ElementsMatch(t, []string{"teleport", "tp"}, f.d.Complete(f.alice, "help t"))
	assert.Equal(t, []string{"spawn"}, f.d.Complete(f.alice, "region sp"))
	assert.Contains(t, f.d.Complete(f.alice, "region "), "members")
}

func TestUninstall(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 13, f.in.Uninstall())
	assert.Empty(t, f.d.Names())
}
