// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Ensemplix/Monsoon/internal/commands"
	"github.com/Ensemplix/Monsoon/internal/history"
	"github.com/Ensemplix/Monsoon/internal/permission"
)

// Session runs command lines for one console sender.
type Session struct {
	Dispatcher *commands.Dispatcher
	Sender     *permission.Principal
	History    *history.Store
	Out        io.Writer
	Err        io.Writer
	JSON       bool
	Logger     *log.Logger
}

// NewSession creates a session whose sender replies to out.
func NewSession(d *commands.Dispatcher, name string, store *permission.Store, out, errOut io.Writer) *Session {
	s := &Session{
		Dispatcher: d,
		Out:        out,
		Err:        errOut,
		Logger:     log.New(io.Discard),
	}
	s.Sender = permission.NewPrincipal(name, store, s.reply)
	return s
}

func (s *Session) reply(msg string) {
	if s.JSON {
		return
	}
	fmt.Fprintln(s.Out, RenderReply(msg))
}

// Execute dispatches one line, records it and reports the outcome. A line
// that ran but returned false yields ErrUnsuccessful.
func (s *Session) Execute(line string) error {
	res, err := s.Dispatcher.Call(s.Sender, line)
	s.record(line, res, err)

	if err == nil && !res.Success {
		err = ErrUnsuccessful
	}
	if err != nil {
		DisplayError(s.Err, err, s.Dispatcher.Names(), s.JSON)
		return err
	}
	if s.JSON {
		s.writeJSON(res)
	}
	return nil
}

func (s *Session) writeJSON(res *commands.CallResult) {
	args := make([]string, 0, len(res.Arguments))
	for _, a := range res.Arguments {
		args = append(args, a.Text)
	}
	encoder := json.NewEncoder(s.Out)
	encoder.SetIndent("", "  ")
	encoder.Encode(map[string]interface{}{
		"success":   res.Success,
		"command":   res.Context.Command,
		"action":    res.Context.ActionName,
		"arguments": args,
	})
}

func (s *Session) record(line string, res *commands.CallResult, err error) {
	if s.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.History.Record(ctx, HistoryEntry(s.Sender.Name(), line, res, err)); err != nil {
		s.Logger.Warn("history not recorded", "error", err)
	}
}

// HistoryEntry describes the outcome of one Call for the history log.
func HistoryEntry(sender, line string, res *commands.CallResult, err error) history.Entry {
	e := history.Entry{Sender: sender, Line: line}
	if res != nil {
		e.Command = res.Context.Command
		e.Action = res.Context.ActionName
		e.Success = res.Success
	}
	if err != nil {
		e.Command, e.Action = ErrorScope(err)
		e.Error = err.Error()
	}
	return e
}

// Complete returns full-line candidates for line, the shape line editors
// expect.
func (s *Session) Complete(line string) []string {
	suggestions := s.Dispatcher.Complete(s.Sender, line)
	if len(suggestions) == 0 {
		return nil
	}
	head := line[:strings.LastIndex(line, " ")+1]
	candidates := make([]string, len(suggestions))
	for i, sug := range suggestions {
		candidates[i] = head + sug
	}
	return candidates
}
