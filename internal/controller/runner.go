// ABOUTME: Drives a Controller synchronously for one-shot CLI commands
// ABOUTME: Runs each command inline and feeds its result back until the queue drains

package controller

import (
	"context"
	"sync"
)

// Runner processes events one at a time on the calling goroutine
type Runner struct {
	ctx   context.Context
	c     *Controller
	mu    sync.Mutex
	queue []Event
}

// NewRunner wraps c. Commands run with ctx.
func NewRunner(ctx context.Context, c *Controller) *Runner {
	return &Runner{ctx: ctx, c: c}
}

// Controller returns the wrapped controller
func (r *Runner) Controller() *Controller {
	return r.c
}

// Enqueue adds ev to be processed by the next Dispatch
func (r *Runner) Enqueue(ev Event) {
	r.mu.Lock()
	r.queue = append(r.queue, ev)
	r.mu.Unlock()
}

func (r *Runner) next() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, false
	}
	ev := r.queue[0]
	r.queue = r.queue[1:]
	return ev, true
}

// Dispatch applies ev, runs every follow-up command, and returns the settled state
func (r *Runner) Dispatch(ev Event) State {
	r.Enqueue(ev)
	for {
		ev, ok := r.next()
		if !ok {
			return r.c.State()
		}
		cmd := r.c.Update(ev)
		if cmd == nil {
			continue
		}
		if result := cmd(r.ctx); result != nil {
			r.Enqueue(result)
		}
	}
}
