// ABOUTME: Ordered hand-off of controller events into the bubbletea program
// ABOUTME: A single goroutine drains an unbounded queue so pushes never block

package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// forwarder delivers pushed messages to send one at a time, in push order.
// Push may run inside Update, so it only appends and never waits on send.
type forwarder struct {
	mu      sync.Mutex
	queue   []tea.Msg
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func newForwarder(send func(tea.Msg)) *forwarder {
	f := &forwarder{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go f.loop(send)
	return f
}

// Push queues msg behind every message pushed before it
func (f *forwarder) Push(msg tea.Msg) {
	f.mu.Lock()
	f.queue = append(f.queue, msg)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Stop ends delivery and waits for the drain goroutine. Queued messages
// not yet sent are dropped.
func (f *forwarder) Stop() {
	close(f.done)
	<-f.stopped
}

func (f *forwarder) loop(send func(tea.Msg)) {
	defer close(f.stopped)
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
		}
		for {
			msg, ok := f.next()
			if !ok {
				break
			}
			send(msg)
		}
	}
}

func (f *forwarder) next() (tea.Msg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, false
	}
	msg := f.queue[0]
	f.queue[0] = nil
	f.queue = f.queue[1:]
	return msg, true
}
