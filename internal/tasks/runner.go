// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Runner executes queued tasks with bounded concurrency.
type Runner struct {
	queue         *Queue
	maxConcurrent int
	timeout       time.Duration
	semaphore     chan struct{}
	logger        *log.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a runner. maxConcurrent below 1 means 4; a zero timeout
// lets jobs run until canceled.
func NewRunner(queue *Queue, maxConcurrent int, timeout time.Duration, logger *log.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		queue:         queue,
		maxConcurrent: maxConcurrent,
		timeout:       timeout,
		semaphore:     make(chan struct{}, maxConcurrent),
		logger:        logger,
	}
}

// Start processes the queue until ctx is done or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx)
}

// Stop cancels running jobs and waits for them to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.wg.Wait()
}

// Submit queues a job on behalf of sender and returns its task.
func (r *Runner) Submit(name, sender string, job Job) (*Task, error) {
	t := New(name, sender, job)
	if err := r.queue.Add(t); err != nil {
		return nil, err
	}
	r.logger.Debug("task queued", "task", t.ShortID(), "name", name, "sender", sender)
	return t, nil
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.queue.wake:
		case <-ticker.C:
		}
		r.drain(ctx)
	}
}

// drain starts queued tasks until the queue is empty or all slots are busy.
func (r *Runner) drain(ctx context.Context) {
	for {
		select {
		case r.semaphore <- struct{}{}:
		case <-ctx.Done():
			return
		}

		t := r.queue.Next()
		if t == nil {
			<-r.semaphore
			return
		}

		var jobCtx context.Context
		var cancel context.CancelFunc
		if r.timeout > 0 {
			jobCtx, cancel = context.WithTimeout(ctx, r.timeout)
		} else {
			jobCtx, cancel = context.WithCancel(ctx)
		}
		if !t.start(cancel) {
			cancel()
			<-r.semaphore
			continue
		}

		r.wg.Add(1)
		go r.execute(jobCtx, cancel, t)
	}
}

func (r *Runner) execute(ctx context.Context, cancel context.CancelFunc, t *Task) {
	defer r.wg.Done()
	defer func() { <-r.semaphore }()
	defer cancel()

	err := runJob(ctx, t)
	switch {
	case err == nil:
		r.queue.complete(t, StatusComplete, nil)
	case errors.Is(ctx.Err(), context.Canceled):
		r.queue.complete(t, StatusCanceled, nil)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.queue.complete(t, StatusFailed, fmt.Errorf("timed out after %v", r.timeout))
	default:
		r.queue.complete(t, StatusFailed, err)
	}
	r.logger.Debug("task ended", "task", t.ShortID(), "status", t.Status())
}

func runJob(ctx context.Context, t *Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if t.job == nil {
		return errors.New("task has no job")
	}
	return t.job(ctx, t)
}

// Sleep returns a job that waits for d while reporting progress.
func Sleep(d time.Duration) Job {
	return func(ctx context.Context, t *Task) error {
		start := time.Now()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			elapsed := time.Since(start)
			if elapsed >= d {
				return nil
			}
			t.SetProgress(int(elapsed * 100 / d))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}
