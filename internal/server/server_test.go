// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ensemplix/Monsoon/internal/builtins"
	"github.com/Ensemplix/Monsoon/internal/commands"
	"github.com/Ensemplix/Monsoon/internal/config"
	"github.com/Ensemplix/Monsoon/internal/history"
	"github.com/Ensemplix/Monsoon/internal/permission"
	"github.com/Ensemplix/Monsoon/internal/tasks"
)

const testGrants = `
default_allow = false

[[grant]]
sender = "alice"
allow = ["admin.*"]
`

type replier interface {
	Reply(msg string)
}

func newTestDispatcher(t *testing.T) *commands.Dispatcher {
	t.Helper()
	d := commands.New()
	params := func(ps ...commands.Param) []commands.Param {
		return append([]commands.Param{commands.SenderParam()}, ps...)
	}

	require.NoError(t, d.Register(commands.NewActionSet(commands.Action{
		Main:   true,
		Params: params(commands.Rest("words", commands.TypeString)),
		Handler: func(s commands.Sender, v commands.Values) (bool, error) {
			s.(replier).Reply(strings.Join(v.Strings(0), " "))
			return true, nil
		},
	}), "echo"))

	require.NoError(t, d.Register(commands.NewActionSet(
		commands.Action{
			Name:       "kick",
			Permission: true,
			Params:     params(commands.P("who", commands.TypeString)),
			Handler: func(s commands.Sender, v commands.Values) (bool, error) {
				s.(replier).Reply("kicked " + v.String(0))
				return true, nil
			},
		},
	), "admin"))

	require.NoError(t, d.Register(commands.NewActionSet(commands.Action{
		Main:    true,
		Params:  params(),
		Returns: commands.ReturnBool,
		Handler: func(commands.Sender, commands.Values) (bool, error) {
			return false, nil
		},
	}), "nope"))

	require.NoError(t, d.Register(commands.NewActionSet(commands.Action{
		Main:   true,
		Params: params(),
		Handler: func(commands.Sender, commands.Values) (bool, error) {
			return false, errors.New("kaboom")
		},
	}), "boom"))

	return d
}

func newTestServer(t *testing.T, cfg config.ServerConfig, opts Options) *Server {
	t.Helper()
	if opts.Dispatcher == nil {
		opts.Dispatcher = newTestDispatcher(t)
	}
	if opts.Grants == nil {
		policy, err := permission.Parse([]byte(testGrants))
		require.NoError(t, err)
		opts.Grants = permission.NewStore(policy)
	}
	return New(cfg, opts)
}

func do(t *testing.T, s *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// DISPATCH TESTS
// =============================================================================

func TestCall(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, Options{})

	rec := do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "bob", Line: "echo hello there"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[CallResponse](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, "echo", res.Command)
	assert.Equal(t, []string{"hello", "there"}, res.Arguments)
	assert.Equal(t, []string{"hello there"}, res.Replies)
}

func TestCallUnsuccessful(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, Options{})

	rec := do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "bob", Line: "nope"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[CallResponse](t, rec).Success)
}

func TestCallErrors(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, Options{})

	tests := []struct {
		name   string
		sender string
		line   string
		status int
		code   string
	}{
		{"unknown command", "bob", "ech", http.StatusNotFound, "not_found"},
		{"unknown action", "bob", "admin ban x", http.StatusNotFound, "not_found"},
		{"empty line", "bob", "", http.StatusNotFound, "not_found"},
		{"denied", "bob", "admin kick carol", http.StatusForbidden, "access_denied"},
		{"handler error", "bob", "boom", http.StatusInternalServerError, "invocation_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: tt.sender, Line: tt.line}, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Error.Code)
		})
	}

	rec := do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "bob", Line: "ech"}, nil)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error.Message, "Did you mean echo?")

	rec = do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "bob", Line: "boom"}, nil)
	assert.Equal(t, "boom failed: kaboom", decode[ErrorResponse](t, rec).Error.Message)
}

func TestCallGrantedAction(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, Options{})

	rec := do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "alice", Line: "admin kick carol"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"kicked carol"}, decode[CallResponse](t, rec).Replies)
}

func TestSenderHeader(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, Options{})

	rec := do(t, s, http.MethodPost, "/v1/call", LineRequest{Line: "admin kick carol"},
		map[string]string{SenderHeader: "alice"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/call", LineRequest{Line: "echo hi"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_sender", decode[ErrorResponse](t, rec).Error.Code)
}

func TestInvalidBody(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/call", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := LineRequest{Sender: "bob", Line: strings.Repeat("a", MaxRequestBodySize)}
	rec = do(t, s, http.MethodPost, "/v1/call", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	long := LineRequest{Sender: "bob", Line: "echo " + strings.Repeat("a", MaxLineLength)}
	rec = do(t, s, http.MethodPost, "/v1/call", long, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "line_too_long", decode[ErrorResponse](t, rec).Error.Code)
}

func TestComplete(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, Options{})

	rec := do(t, s, http.MethodPost, "/v1/complete", LineRequest{Sender: "alice", Line: "admin k"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"kick"}, decode[CompleteResponse](t, rec).Completions)

	rec = do(t, s, http.MethodPost, "/v1/complete", LineRequest{Sender: "bob", Line: "zzz"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{}, decode[CompleteResponse](t, rec).Completions)
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestAuth(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{Token: "secret"}, Options{})
	body := LineRequest{Sender: "bob", Line: "echo hi"}

	rec := do(t, s, http.MethodPost, "/v1/call", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/call", body, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/call", body, map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateBearerToken(t *testing.T) {
	assert.True(t, ValidateBearerToken("abc", "abc"))
	assert.False(t, ValidateBearerToken("abc", "abd"))
	assert.False(t, ValidateBearerToken("", ""))
	assert.False(t, ValidateBearerToken("abc", ""))
}

func TestRateLimitPerClient(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{RateLimit: 0.001, Burst: 2}, Options{})
	from := func(ip string) map[string]string { return map[string]string{"X-Real-IP": ip} }

	// rotating sender names does not buy more requests
	for i := 0; i < 2; i++ {
		body := LineRequest{Sender: fmt.Sprintf("bot%d", i), Line: "echo hi"}
		rec := do(t, s, http.MethodPost, "/v1/call", body, from("10.0.0.1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "bot2", Line: "echo hi"}, from("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "bot2", Line: "echo hi"}, from("10.0.0.2"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, s.limiters.size())
}

func TestClientLimitersEvictIdle(t *testing.T) {
	l := newClientLimiters(0.001, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))

	now = now.Add(LimiterIdleTimeout + time.Second)
	assert.True(t, l.allow("10.0.0.2"))
	assert.Equal(t, 1, l.size())

	// an evicted client starts with a fresh bucket
	assert.True(t, l.allow("10.0.0.1"))

	disabled := newClientLimiters(0, 1)
	assert.True(t, disabled.allow("anyone"))
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{EnableCORS: true}, Options{})

	rec := do(t, s, http.MethodGet, "/health", nil, map[string]string{"Origin": "http://example.com"})
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// =============================================================================
// DISCOVERY, HISTORY AND TASK TESTS
// =============================================================================

func TestHealthAndCommands(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, Options{Version: "1.2.3"})

	rec := do(t, s, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "1.2.3", health["version"])
	assert.Equal(t, float64(4), health["commands"])

	rec = do(t, s, http.MethodGet, "/v1/commands", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	infos := decode[[]CommandInfo](t, rec)
	require.Len(t, infos, 4)
	assert.Equal(t, "admin", infos[0].Name)
	assert.NotEmpty(t, infos[0].Usage)
}

func TestHistory(t *testing.T) {
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	s := newTestServer(t, config.ServerConfig{}, Options{History: store})
	do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "bob", Line: "echo one"}, nil)
	do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "alice", Line: "boom"}, nil)

	rec := do(t, s, http.MethodGet, "/v1/history?sender=alice", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]history.Entry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].Line)
	assert.False(t, entries[0].Success)
	assert.NotEmpty(t, entries[0].Error)

	rec = do(t, s, http.MethodGet, "/v1/history?q=echo", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]history.Entry](t, rec), 1)

	rec = do(t, s, http.MethodGet, "/v1/history?limit=zero", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryDisabled(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, Options{})
	rec := do(t, s, http.MethodGet, "/v1/history", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTasks(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, Options{})
	rec := do(t, s, http.MethodGet, "/v1/tasks", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	queue := tasks.NewQueue(10, 10, log.New(io.Discard))
	require.NoError(t, queue.Add(tasks.New("build", "bob", func(context.Context, *tasks.Task) error { return nil })))

	s = newTestServer(t, config.ServerConfig{}, Options{Queue: queue})
	rec = do(t, s, http.MethodGet, "/v1/tasks", nil, nil)
	infos := decode[[]tasks.Info](t, rec)
	require.Len(t, infos, 1)
	assert.Equal(t, "build", infos[0].Name)
	assert.Equal(t, tasks.StatusQueued, infos[0].Status)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{Addr: "127.0.0.1:0"}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}

// =============================================================================
// PRESENCE TESTS
// =============================================================================

func newWorldServer(t *testing.T) (*Server, *permission.Roster) {
	t.Helper()
	d := commands.New()
	roster := permission.NewRoster()
	_, err := builtins.Install(d, builtins.Deps{Roster: roster})
	require.NoError(t, err)

	grants := permission.NewStore(&permission.Policy{DefaultAllow: true})
	s := newTestServer(t, config.ServerConfig{PresenceSecs: 60}, Options{
		Dispatcher: d,
		Grants:     grants,
		Roster:     roster,
	})
	return s, roster
}

func TestSendersJoinRoster(t *testing.T) {
	s, roster := newWorldServer(t)

	rec := do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "bob", Line: "echo hi"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"hi"}, decode[CallResponse](t, rec).Replies)
	assert.Equal(t, []string{"bob"}, roster.Names())

	rec = do(t, s, http.MethodPost, "/v1/complete", LineRequest{Sender: "alice", Line: "tp here b"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"bob"}, decode[CompleteResponse](t, rec).Completions)

	rec = do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "alice", Line: "tp here bob"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CallResponse](t, rec)
	assert.True(t, resp.Success, resp.Replies)
	require.Len(t, resp.Replies, 1)
	assert.True(t, strings.HasPrefix(resp.Replies[0], "Teleported bob to "), resp.Replies[0])

	// bob gets the notice with his next call
	rec = do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "bob", Line: "echo ok"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	replies := decode[CallResponse](t, rec).Replies
	require.Len(t, replies, 2)
	assert.True(t, strings.HasPrefix(replies[0], "alice teleported you to "), replies[0])
	assert.Equal(t, "ok", replies[1])
}

func TestIdleSendersLeaveRoster(t *testing.T) {
	s, roster := newWorldServer(t)
	now := time.Now()
	s.presence.now = func() time.Time { return now }

	do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "bob", Line: "echo hi"}, nil)
	require.Equal(t, []string{"bob"}, roster.Names())

	now = now.Add(61 * time.Second)
	rec := do(t, s, http.MethodPost, "/v1/call", LineRequest{Sender: "alice", Line: "tp here bob"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CallResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, []string{"alice"}, roster.Names())

	s.presence.close()
	assert.Empty(t, roster.Names())
}
