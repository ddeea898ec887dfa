// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Ensemplix/Monsoon/internal/cli"
	"github.com/Ensemplix/Monsoon/internal/commands"
	"github.com/Ensemplix/Monsoon/internal/history"
	"github.com/Ensemplix/Monsoon/internal/tasks"
)

// LineRequest is the body of call and complete.
type LineRequest struct {
	Sender string `json:"sender"`
	Line   string `json:"line"`
}

// CallResponse reports a dispatched line. Success is the handler's own
// verdict; dispatch failures use ErrorResponse instead. Replies also carry
// messages queued for the sender since its previous call, such as job
// notices.
type CallResponse struct {
	Success   bool     `json:"success"`
	Command   string   `json:"command"`
	Action    string   `json:"action"`
	Arguments []string `json:"arguments"`
	Replies   []string `json:"replies"`
}

// CompleteResponse lists completion candidates.
type CompleteResponse struct {
	Completions []string `json:"completions"`
}

// CommandInfo describes one registered entry.
type CommandInfo struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
	Usage   []string `json:"usage"`
}

// ============================================================================
// HEALTH AND DISCOVERY
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        s.opts.Version,
		"commands":       len(s.opts.Dispatcher.Entries()),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	entries := s.opts.Dispatcher.Entries()
	infos := make([]CommandInfo, 0, len(entries))
	for _, e := range entries {
		names := e.Names()
		infos = append(infos, CommandInfo{
			Name:    names[0],
			Aliases: names[1:],
			Usage:   e.Usage(),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

// ============================================================================
// DISPATCH
// ============================================================================

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeLine(w, r)
	if !ok {
		return
	}

	c := s.presence.touch(req.Sender)
	res, err := s.opts.Dispatcher.Call(c.principal, req.Line)
	s.record(r.Context(), req, res, err)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	args := make([]string, 0, len(res.Arguments))
	for _, a := range res.Arguments {
		args = append(args, a.Text)
	}
	writeJSON(w, http.StatusOK, CallResponse{
		Success:   res.Success,
		Command:   res.Context.Command,
		Action:    res.Context.ActionName,
		Arguments: args,
		Replies:   c.drain(),
	})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeLine(w, r)
	if !ok {
		return
	}
	c := s.presence.touch(req.Sender)
	completions := s.opts.Dispatcher.Complete(c.principal, req.Line)
	if completions == nil {
		completions = []string{}
	}
	writeJSON(w, http.StatusOK, CompleteResponse{Completions: completions})
}

// decodeLine applies the rate limit, then reads a LineRequest and resolves
// the sender. It writes the error response itself when it returns false.
func (s *Server) decodeLine(w http.ResponseWriter, r *http.Request) (LineRequest, bool) {
	var req LineRequest
	if !s.limiters.allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
		return req, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large",
				fmt.Sprintf("Request body exceeds %d bytes", MaxRequestBodySize))
			return req, false
		}
		s.logger.Debug("invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request format")
		return req, false
	}

	if req.Sender == "" {
		req.Sender = r.Header.Get(SenderHeader)
	}
	req.Sender = strings.TrimSpace(req.Sender)
	if req.Sender == "" {
		writeError(w, http.StatusBadRequest, "missing_sender",
			"Sender must be set in the body or the "+SenderHeader+" header")
		return req, false
	}
	if len(req.Line) > MaxLineLength {
		writeError(w, http.StatusBadRequest, "line_too_long",
			fmt.Sprintf("Line exceeds %d bytes", MaxLineLength))
		return req, false
	}
	return req, true
}

func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, commands.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, commands.ErrAccessDenied):
		status, code = http.StatusForbidden, "access_denied"
	case errors.Is(err, commands.ErrInvocationFailure):
		status, code = http.StatusInternalServerError, "invocation_failure"
	}

	msg := cli.DescribeError(err, nil)
	var nf *commands.NotFoundError
	if errors.As(err, &nf) && nf.Command != "" && nf.Action == "" {
		if suggestion := cli.SuggestCommand(nf.Command, s.opts.Dispatcher.Names()); suggestion != "" {
			msg += fmt.Sprintf(". Did you mean %s?", suggestion)
		}
	}

	command, action := cli.ErrorScope(err)
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:    code,
		Message: msg,
		Command: command,
		Action:  action,
	}})
}

func (s *Server) record(ctx context.Context, req LineRequest, res *commands.CallResult, err error) {
	if s.opts.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := s.opts.History.Record(ctx, cli.HistoryEntry(req.Sender, req.Line, res, err)); err != nil {
		s.logger.Warn("history not recorded", "error", err)
	}
}

// ============================================================================
// HISTORY AND TASKS
// ============================================================================

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history_disabled", "History is not enabled")
		return
	}

	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	var entries []history.Entry
	var err error
	if prefix := query.Get("q"); prefix != "" {
		entries, err = s.opts.History.Search(r.Context(), prefix, limit)
	} else {
		entries, err = s.opts.History.Recent(r.Context(), query.Get("sender"), limit)
	}
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history_failed", "History query failed")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	infos := []tasks.Info{}
	if s.opts.Queue != nil {
		infos = append(infos, s.opts.Queue.Infos()...)
	}
	writeJSON(w, http.StatusOK, infos)
}
