// Package dispatch provides a serial executor used to give one stream a
// single-threaded, event-loop style delivery order.
package dispatch

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Queue runs submitted operations one at a time in submission order.
//
// The goroutine that finds the queue idle drains it. Operations submitted
// while the queue is draining, including reentrant submissions from inside a
// running operation, are appended and run by the draining goroutine after the
// current operation returns.
type Queue struct {
	mu      sync.Mutex
	ops     []func()
	running bool
	drainer uint64
}

// Do submits op. It runs op (and anything queued behind it) before returning
// unless another call is already draining the queue.
func (q *Queue) Do(op func()) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.drainer = goroutineID()
	q.mu.Unlock()

	// A panicking op unwinds this drainer; whatever is still queued is left
	// for the next caller.
	defer func() {
		q.mu.Lock()
		q.running = false
		q.drainer = 0
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		if len(q.ops) == 0 {
			q.mu.Unlock()
			return
		}
		next := q.ops[0]
		q.ops[0] = nil
		q.ops = q.ops[1:]
		q.mu.Unlock()

		next()
	}
}

// Draining reports whether the calling goroutine is the one running the
// queue, i.e. whether the caller is inside an operation. An operation that
// blocks waiting for work queued behind it never returns.
func (q *Queue) Draining() bool {
	q.mu.Lock()
	running, drainer := q.running, q.drainer
	q.mu.Unlock()
	return running && drainer == goroutineID()
}

// goroutineID parses the id from the "goroutine N [...]" stack header.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
