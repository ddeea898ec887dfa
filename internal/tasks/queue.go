// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrQueueFull is returned by Add when the queued limit is reached.
var ErrQueueFull = errors.New("task queue is full")

// Notification reports that a task ended.
type Notification struct {
	Task   Info
	Status Status
}

// Queue holds queued, running and recently finished tasks in FIFO order.
type Queue struct {
	mu         sync.Mutex
	tasks      []*Task
	maxHistory int
	maxQueued  int
	wake       chan struct{}
	notify     chan Notification
	logger     *log.Logger
}

// NewQueue creates a queue keeping at most maxHistory finished tasks
// (0 keeps all) and at most maxQueued waiting tasks (0 is unlimited).
func NewQueue(maxHistory, maxQueued int, logger *log.Logger) *Queue {
	if logger == nil {
		logger = log.Default()
	}
	return &Queue{
		maxHistory: maxHistory,
		maxQueued:  maxQueued,
		wake:       make(chan struct{}, 1),
		notify:     make(chan Notification, 64),
		logger:     logger,
	}
}

// Add appends a task.
func (q *Queue) Add(t *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxQueued > 0 {
		queued := 0
		for _, existing := range q.tasks {
			if existing.Status() == StatusQueued {
				queued++
			}
		}
		if queued >= q.maxQueued {
			return fmt.Errorf("%w: %d waiting", ErrQueueFull, queued)
		}
	}

	q.tasks = append(q.tasks, t)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Next returns the oldest queued task, or nil.
func (q *Queue) Next() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.Status() == StatusQueued {
			return t
		}
	}
	return nil
}

// Get returns the task with exactly this ID.
func (q *Queue) Get(id string) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Find resolves a full ID or an unambiguous ID prefix.
func (q *Queue) Find(prefix string) (*Task, error) {
	if prefix == "" {
		return nil, errors.New("empty task id")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var found *Task
	for _, t := range q.tasks {
		if t.ID == prefix {
			return t, nil
		}
		if strings.HasPrefix(t.ID, prefix) {
			if found != nil {
				return nil, fmt.Errorf("task id %q is ambiguous", prefix)
			}
			found = t
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no task %q", prefix)
	}
	return found, nil
}

// Cancel cancels a task by ID or prefix.
func (q *Queue) Cancel(id string) (bool, error) {
	t, err := q.Find(id)
	if err != nil {
		return false, err
	}
	if !t.Cancel() {
		return false, nil
	}
	q.finished(t, StatusCanceled)
	return true, nil
}

// complete records the outcome of a job run.
func (q *Queue) complete(t *Task, status Status, err error) {
	if !t.finish(status, err) {
		return
	}
	q.finished(t, status)
}

func (q *Queue) finished(t *Task, status Status) {
	select {
	case q.notify <- Notification{Task: t.Info(), Status: status}:
	default:
		q.logger.Warn("notification channel full", "task", t.ShortID(), "status", status)
	}

	q.mu.Lock()
	q.cleanupLocked()
	q.mu.Unlock()
}

// All returns every tracked task, oldest first.
func (q *Queue) All() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Task(nil), q.tasks...)
}

// Infos snapshots every tracked task.
func (q *Queue) Infos() []Info {
	all := q.All()
	infos := make([]Info, len(all))
	for i, t := range all {
		infos[i] = t.Info()
	}
	return infos
}

// IDs lists short IDs of tasks that can still be canceled.
func (q *Queue) IDs() []string {
	var ids []string
	for _, t := range q.All() {
		if !t.Status().Terminal() {
			ids = append(ids, t.ShortID())
		}
	}
	return ids
}

// Count returns the number of tracked tasks.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Notifications delivers end-of-task events. Events are dropped when nobody
// reads.
func (q *Queue) Notifications() <-chan Notification {
	return q.notify
}

// cleanupLocked drops the oldest finished tasks beyond maxHistory.
func (q *Queue) cleanupLocked() {
	if q.maxHistory <= 0 {
		return
	}
	done := 0
	for _, t := range q.tasks {
		if t.Status().Terminal() {
			done++
		}
	}
	drop := done - q.maxHistory
	if drop <= 0 {
		return
	}
	kept := q.tasks[:0]
	for _, t := range q.tasks {
		if drop > 0 && t.Status().Terminal() {
			drop--
			continue
		}
		kept = append(kept, t)
	}
	q.tasks = kept
}

// Summary counts tasks per status.
func (q *Queue) Summary() string {
	counts := map[Status]int{}
	for _, t := range q.All() {
		counts[t.Status()]++
	}
	return fmt.Sprintf("Running: %d | Queued: %d | Completed: %d | Failed: %d | Canceled: %d",
		counts[StatusRunning], counts[StatusQueued], counts[StatusComplete],
		counts[StatusFailed], counts[StatusCanceled])
}
