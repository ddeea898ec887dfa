// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs long command actions in the background.
//
// An action that cannot finish inside its handler submits a Job and reports
// success right away; the task then moves through queued, running and one of
// complete, failed or canceled.
//
// # Key Types
//
//   - Task: one job with status, progress and timestamps
//   - Queue: FIFO of tasks with bounded finished history
//   - Runner: executes queued tasks with a concurrency limit and timeout
//
// # Usage
//
//	q := tasks.NewQueue(100, 0, logger)
//	r := tasks.NewRunner(q, 4, 5*time.Minute, logger)
//	r.Start(ctx)
//	defer r.Stop()
//
//	t, err := r.Submit("backup", "alice", tasks.Sleep(10*time.Second))
package tasks
