// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package builtins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ensemplix/Monsoon/internal/commands"
	"github.com/Ensemplix/Monsoon/internal/permission"
	"github.com/Ensemplix/Monsoon/internal/tasks"
	"github.com/Ensemplix/Monsoon/internal/util"
)

// MaxJobSeconds bounds job run.
const MaxJobSeconds = 3600

func (h *host) job() commands.Source {
	return commands.NewActionSet(
		commands.Action{
			Name:        "run",
			Description: "Start a background job that sleeps for the given seconds",
			Params:      params(commands.P("name", commands.TypeString), commands.Arg("seconds", commands.TypeInt)),
			Returns:     commands.ReturnBool,
			Handler:     h.jobRun,
		},
		commands.Action{
			Name:        "list",
			Description: "List background jobs",
			Params:      params(),
			Handler:     h.jobList,
		},
		commands.Action{
			Name:        "cancel",
			Description: "Cancel a background job",
			Params:      params(commands.Arg("job", TypeJob)),
			Returns:     commands.ReturnBool,
			Handler:     h.jobCancel,
		},
	)
}

func (h *host) jobRun(s commands.Sender, args commands.Values) (bool, error) {
	name := args.String(0)
	if name == "" {
		reply(s, "Missing job name")
		return false, nil
	}
	arg := args.Argument(1)
	secs, ok := commands.As[int](arg)
	if !arg.OK() || !ok || secs < 1 || secs > MaxJobSeconds {
		replyf(s, "Seconds must be a whole number from 1 to %d", MaxJobSeconds)
		return false, nil
	}

	t, err := h.runner.Submit(name, senderName(s), tasks.Sleep(time.Duration(secs)*time.Second))
	if err != nil {
		return false, err
	}
	replyf(s, "Accepted job %s (%s)", t.ShortID(), name)
	return true, nil
}

func (h *host) jobList(s commands.Sender, _ commands.Values) (bool, error) {
	all := h.queue.All()
	if len(all) == 0 {
		reply(s, "No jobs")
		return true, nil
	}
	lines := make([]string, 0, len(all)+1)
	lines = append(lines, fmt.Sprintf("Total: %d | %s", h.queue.Count(), h.queue.Summary()))
	for _, t := range all {
		lines = append(lines, t.Summary())
	}
	reply(s, strings.Join(lines, "\n"))
	return true, nil
}

func (h *host) jobCancel(s commands.Sender, args commands.Values) (bool, error) {
	arg := args.Argument(0)
	t, ok := commands.As[*tasks.Task](arg)
	if !arg.OK() || !ok {
		replyf(s, "No job %q", arg.Text)
		return false, nil
	}
	canceled, err := h.queue.Cancel(t.ID)
	if err != nil {
		return false, err
	}
	if !canceled {
		replyf(s, "Job %s already %s", t.ShortID(), t.Status())
		return false, nil
	}
	replyf(s, "Canceled job %s", t.ShortID())
	return true, nil
}

// Relay tells each job's sender that the job ended, if the sender is still
// in the roster. It returns when ctx is done.
func Relay(ctx context.Context, queue *tasks.Queue, roster *permission.Roster) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-queue.Notifications():
			p, ok := roster.Get(n.Task.Sender)
			if !ok {
				continue
			}
			p.Reply(notice(n))
		}
	}
}

func notice(n tasks.Notification) string {
	id := n.Task.ID
	if len(id) > 8 {
		id = id[:8]
	}
	msg := fmt.Sprintf("Job %s (%s) %s", id, util.TruncateRunes(n.Task.Name, 32), n.Status)
	if n.Task.Error != "" {
		msg += ": " + n.Task.Error
	}
	return msg
}
