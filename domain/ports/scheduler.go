package ports

import "context"

// Task is a unit of work driven to completion by a Scheduler.
type Task func(ctx context.Context) error

// Scheduler spawns tasks. Backends are chosen by the embedding environment:
// a cooperative one for single-threaded hosts, a goroutine pool otherwise.
type Scheduler interface {
	// Go schedules the task. A cooperative backend runs it before returning.
	Go(ctx context.Context, task Task)

	// Wait blocks until every scheduled task has returned and reports the
	// first error.
	Wait() error

	// Concurrent reports whether tasks may run in parallel.
	Concurrent() bool
}
