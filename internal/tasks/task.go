// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// Status is the lifecycle state of a background job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusCanceled
}

// =============================================================================
// TASK
// =============================================================================

// Job is the work behind a task. It should return promptly once ctx is done.
type Job func(ctx context.Context, t *Task) error

// Task is one backgrounded piece of work started by a command.
type Task struct {
	ID     string
	Name   string
	Sender string

	mu       sync.RWMutex
	status   Status
	created  time.Time
	started  time.Time
	ended    time.Time
	err      string
	progress int
	job      Job
	cancel   context.CancelFunc
}

// Info is a point-in-time copy of a task, safe to hand to other goroutines
// and to encode as JSON.
type Info struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Sender   string    `json:"sender"`
	Status   Status    `json:"status"`
	Error    string    `json:"error,omitempty"`
	Progress int       `json:"progress"`
	Created  time.Time `json:"created"`
	Started  time.Time `json:"started,omitempty"`
	Ended    time.Time `json:"ended,omitempty"`
}

// New creates a queued task.
func New(name, sender string, job Job) *Task {
	return &Task{
		ID:      uuid.New().String(),
		Name:    name,
		Sender:  sender,
		status:  StatusQueued,
		created: time.Now(),
		job:     job,
	}
}

// ShortID is the prefix shown to users and accepted by Queue.Find.
func (t *Task) ShortID() string {
	return t.ID[:8]
}

// Status returns the current state.
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// SetProgress records a completion percentage, clamped to 0..100.
func (t *Task) SetProgress(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	t.mu.Lock()
	t.progress = p
	t.mu.Unlock()
}

// start moves a queued task to running. It fails for any other state so a
// task canceled while queued never runs.
func (t *Task) start(cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusQueued {
		return false
	}
	t.status = StatusRunning
	t.started = time.Now()
	t.cancel = cancel
	return true
}

// finish records the job outcome unless the task already ended.
func (t *Task) finish(status Status, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return false
	}
	t.status = status
	t.ended = time.Now()
	if err != nil {
		t.err = err.Error()
	}
	if status == StatusComplete {
		t.progress = 100
	}
	return true
}

// Cancel stops a queued or running task. It reports false when the task has
// already ended.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return false
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.status = StatusCanceled
	t.ended = time.Now()
	return true
}

// Duration is the run time so far, or the total once ended.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.started.IsZero() {
		return 0
	}
	if t.ended.IsZero() {
		return time.Since(t.started)
	}
	return t.ended.Sub(t.started)
}

// Info snapshots the task.
func (t *Task) Info() Info {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Info{
		ID:       t.ID,
		Name:     t.Name,
		Sender:   t.Sender,
		Status:   t.status,
		Error:    t.err,
		Progress: t.progress,
		Created:  t.created,
		Started:  t.started,
		Ended:    t.ended,
	}
}

// Summary returns a one-line description for console output.
func (t *Task) Summary() string {
	info := t.Info()
	s := fmt.Sprintf("[%s] %s - %s", t.ShortID(), info.Name, info.Status)
	if info.Status == StatusRunning && info.Progress > 0 {
		s += fmt.Sprintf(" %d%%", info.Progress)
	}
	if d := t.Duration(); d > 0 {
		s += fmt.Sprintf(" (%.1fs)", d.Seconds())
	}
	if info.Error != "" {
		s += ": " + info.Error
	}
	return s
}
