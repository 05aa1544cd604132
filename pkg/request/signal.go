package request

import (
	"context"
	"sync"
)

// Signal is an external cancellation source. AddAbortListener registers fn to
// run once when the signal aborts; fn runs immediately if it already has. The
// returned func removes the registration.
type Signal interface {
	AddAbortListener(fn func()) (remove func())
}

// AbortController is a manually triggered Signal.
type AbortController struct {
	mu        sync.Mutex
	aborted   bool
	next      int
	listeners map[int]func()
}

func NewAbortController() *AbortController {
	return &AbortController{listeners: make(map[int]func())}
}

func (c *AbortController) Signal() Signal { return c }

func (c *AbortController) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Abort fires every registered listener once. Later calls do nothing.
func (c *AbortController) Abort() {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return
	}
	c.aborted = true
	listeners := make([]func(), 0, len(c.listeners))
	for i := range c.next {
		if fn, ok := c.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	c.listeners = nil
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (c *AbortController) AddAbortListener(fn func()) func() {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		fn()
		return func() {}
	}
	if c.listeners == nil {
		c.listeners = make(map[int]func())
	}
	id := c.next
	c.next++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// SignalFromContext aborts when ctx is done.
func SignalFromContext(ctx context.Context) Signal {
	return contextSignal{ctx: ctx}
}

type contextSignal struct {
	ctx context.Context
}

func (s contextSignal) AddAbortListener(fn func()) func() {
	stop := context.AfterFunc(s.ctx, fn)
	return func() { stop() }
}
