// Package scheduler provides the task-spawning backends the dispatcher is
// built with.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hpp2334/hol-runtime/domain/ports"
)

// Cooperative runs every task inline on the caller's goroutine. It suits
// single-threaded hosts such as a WASM guest.
type Cooperative struct {
	err error
	mu  sync.Mutex
}

var _ ports.Scheduler = (*Cooperative)(nil)

// NewCooperative creates a Cooperative scheduler.
func NewCooperative() *Cooperative {
	return &Cooperative{}
}

// Go runs task to completion before returning.
func (c *Cooperative) Go(ctx context.Context, task ports.Task) {
	if err := task(ctx); err != nil {
		c.mu.Lock()
		if c.err == nil {
			c.err = err
		}
		c.mu.Unlock()
	}
}

// Wait returns the first task error and clears it.
func (c *Cooperative) Wait() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.err
	c.err = nil
	return err
}

// Concurrent implements ports.Scheduler.
func (c *Cooperative) Concurrent() bool { return false }

// Pool runs tasks on goroutines, optionally bounded.
type Pool struct {
	group errgroup.Group
}

var _ ports.Scheduler = (*Pool)(nil)

// NewPool creates a Pool. A limit <= 0 leaves it unbounded; otherwise Go
// blocks while limit tasks are running.
func NewPool(limit int) *Pool {
	p := &Pool{}
	if limit > 0 {
		p.group.SetLimit(limit)
	}
	return p
}

// Go starts task on a new goroutine.
func (p *Pool) Go(ctx context.Context, task ports.Task) {
	p.group.Go(func() error {
		return task(ctx)
	})
}

// Wait blocks until every started task has returned. It reports the first
// error any task ever returned.
func (p *Pool) Wait() error {
	return p.group.Wait()
}

// Concurrent implements ports.Scheduler.
func (p *Pool) Concurrent() bool { return true }

// Kind names a scheduler backend.
type Kind string

const (
	KindCooperative Kind = "cooperative"
	KindPool        Kind = "pool"
)

// New creates the backend named by kind. workers bounds a pool.
func New(kind Kind, workers int) (ports.Scheduler, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindCooperative, "":
		return NewCooperative(), nil
	case KindPool:
		return NewPool(workers), nil
	}
	return nil, fmt.Errorf("unknown scheduler %q", kind)
}
