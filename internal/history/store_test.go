// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	lines := []Entry{
		{Sender: "alice", Line: "tp here bob", Command: "tp", Action: "here", Success: true},
		{Sender: "bob", Line: "region list", Command: "region", Action: "list", Success: true},
		{Sender: "alice", Line: "math add 1 x", Command: "math", Action: "add", Error: "bad number"},
	}
	for _, e := range lines {
		id, err := s.Record(ctx, e)
		require.NoError(t, err)
		assert.Positive(t, id)
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recent, err := s.Recent(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "math add 1 x", recent[0].Line)
	assert.False(t, recent[0].Success)
	assert.Equal(t, "bad number", recent[0].Error)
	assert.Equal(t, "tp here bob", recent[1].Line)
	assert.False(t, recent[1].CreatedAt.IsZero())

	all, err := s.Recent(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSearchEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, line := range []string{"echo 100%", "echo 100 percent", "echo_x", "echoes"} {
		_, err := s.Record(ctx, Entry{Sender: "a", Line: line})
		require.NoError(t, err)
	}

	got, err := s.Search(ctx, "echo 100%", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "echo 100%", got[0].Line)

	got, err = s.Search(ctx, "echo_", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "echo_x", got[0].Line)

	got, err = s.Search(ctx, "echo", 0)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Record(context.Background(), Entry{Line: "x"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Recent(context.Background(), "", 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseWhileRecording(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := s.Record(ctx, Entry{Sender: "bot", Line: fmt.Sprintf("echo %d %d", i, j)})
				if err != nil {
					assert.ErrorIs(t, err, ErrClosed)
					return
				}
			}
		}(i)
	}
	require.NoError(t, s.Close())
	wg.Wait()

	_, err := s.Count(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
